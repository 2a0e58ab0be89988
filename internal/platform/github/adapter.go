package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/pkg/logger"
	"github.com/content-aggregator/pkg/ratelimit"
)

const (
	platformType = "github"
	baseURL      = "https://api.github.com"
	maxPerPage   = 100
)

// Config is the typed shape of the github platform config bag
type Config struct {
	Token   string `json:"token"`
	BaseURL string `json:"base_url"` // override for GitHub Enterprise / tests
}

// Adapter fetches a user's public activity (events and repositories) from
// the GitHub REST API. Pages are returned in reverse-chronological order;
// the cursor is the next events page number.
type Adapter struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new GitHub adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithPlatform(platformType, "github-api"),
	}
}

// Type returns "github"
func (a *Adapter) Type() string {
	return platformType
}

type ghUser struct {
	ID        int64      `json:"id"`
	Login     string     `json:"login"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar_url"`
	Bio       string     `json:"bio"`
	HTMLURL   string     `json:"html_url"`
	Followers int        `json:"followers"`
	CreatedAt *time.Time `json:"created_at"`
}

type ghEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Action  string `json:"action"`
		Commits []struct {
			Message string `json:"message"`
		} `json:"commits"`
	} `json:"payload"`
}

type ghRepo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	CreatedAt   string `json:"created_at"`
}

// TestConnection validates the token (or anonymous reachability)
func (a *Adapter) TestConnection(ctx context.Context, config map[string]interface{}) error {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return err
	}
	path := "/rate_limit"
	if cfg.Token != "" {
		path = "/user"
	}
	var out json.RawMessage
	return a.get(ctx, cfg, path, &out)
}

// GetUserInfo resolves a GitHub login to a platform user
func (a *Adapter) GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*platform.PlatformUser, error) {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return nil, err
	}

	var user ghUser
	if err := a.get(ctx, cfg, "/users/"+userID, &user); err != nil {
		return nil, err
	}

	displayName := user.Name
	if displayName == "" {
		displayName = user.Login
	}

	return &platform.PlatformUser{
		UserID:        user.Login,
		Username:      user.Login,
		DisplayName:   displayName,
		AvatarURL:     user.AvatarURL,
		Bio:           user.Bio,
		ProfileURL:    user.HTMLURL,
		FollowerCount: user.Followers,
		CreatedAt:     user.CreatedAt,
	}, nil
}

// ValidateUserID checks whether a login exists
func (a *Adapter) ValidateUserID(ctx context.Context, userID string, config map[string]interface{}) (bool, error) {
	_, err := a.GetUserInfo(ctx, userID, config)
	if err != nil {
		if platform.KindOf(err) == platform.ErrKindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetUserContents pages through the user's public events; the first page
// (no cursor) also includes the user's repositories.
func (a *Adapter) GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q platform.ContentQuery) (*platform.FetchResult, error) {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return nil, err
	}

	page := 1
	firstPage := q.Cursor == ""
	if !firstPage {
		p, err := strconv.Atoi(q.Cursor)
		if err != nil || p < 1 {
			return nil, platform.NewError(platformType, platform.ErrKindMalformed,
				fmt.Sprintf("invalid cursor %q", q.Cursor), err)
		}
		page = p
	}

	limit := q.Limit
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}

	var events []ghEvent
	path := fmt.Sprintf("/users/%s/events/public?per_page=%d&page=%d", userID, limit, page)
	if err := a.get(ctx, cfg, path, &events); err != nil {
		return nil, err
	}

	contents := make([]*platform.PlatformContent, 0, len(events))
	for _, ev := range events {
		c := a.convertEvent(ev, userID)
		// cursor resumes an in-progress pagination; the window only
		// applies to windowed (cursor-less continuation) fetches
		if firstPage && !platform.InTimeRange(c.PublishedAt, q.StartTime, q.EndTime) {
			continue
		}
		contents = append(contents, c)
	}

	if firstPage {
		repos, err := a.fetchRepositories(ctx, cfg, userID, limit)
		if err != nil {
			// repos are a secondary listing; a failure degrades, it
			// does not abort the page
			a.log.Warn().Err(err).Str("user", userID).Msg("Failed to fetch repositories")
		} else {
			for _, c := range repos {
				if platform.InTimeRange(c.PublishedAt, q.StartTime, q.EndTime) {
					contents = append(contents, c)
				}
			}
		}
	}

	hasMore := len(events) == limit
	result := &platform.FetchResult{
		Contents:     contents,
		HasMore:      hasMore,
		FetchedCount: len(contents),
	}
	if hasMore {
		result.NextCursor = strconv.Itoa(page + 1)
	}
	return result, nil
}

// GetProfileDetail is unsupported for GitHub
func (a *Adapter) GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error) {
	return nil, nil
}

func (a *Adapter) fetchRepositories(ctx context.Context, cfg Config, userID string, limit int) ([]*platform.PlatformContent, error) {
	var repos []ghRepo
	path := fmt.Sprintf("/users/%s/repos?sort=created&per_page=%d", userID, limit)
	if err := a.get(ctx, cfg, path, &repos); err != nil {
		return nil, err
	}

	contents := make([]*platform.PlatformContent, 0, len(repos))
	for _, repo := range repos {
		contents = append(contents, &platform.PlatformContent{
			ContentID:      "repo-" + strconv.FormatInt(repo.ID, 10),
			Title:          repo.FullName,
			Body:           repo.Description,
			URL:            repo.HTMLURL,
			ContentType:    platform.ContentTypeLink,
			PublishedAt:    parseTime(repo.CreatedAt),
			AuthorID:       userID,
			AuthorUsername: userID,
			Metadata: map[string]interface{}{
				"language": repo.Language,
				"stars":    repo.Stars,
			},
		})
	}
	return contents, nil
}

func (a *Adapter) convertEvent(ev ghEvent, userID string) *platform.PlatformContent {
	title := fmt.Sprintf("%s in %s", ev.Type, ev.Repo.Name)
	body := ""
	for _, commit := range ev.Payload.Commits {
		if body != "" {
			body += "\n"
		}
		body += commit.Message
	}

	return &platform.PlatformContent{
		ContentID:      "event-" + ev.ID,
		Title:          title,
		Body:           body,
		URL:            "https://github.com/" + ev.Repo.Name,
		ContentType:    platform.ContentTypeText,
		PublishedAt:    parseTime(ev.CreatedAt),
		AuthorID:       userID,
		AuthorUsername: userID,
		Metadata: map[string]interface{}{
			"event_type": ev.Type,
			"action":     ev.Payload.Action,
			"repo":       ev.Repo.Name,
		},
	}
}

// parseTime returns nil on unparsable timestamps so one bad item never
// aborts a page
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func (a *Adapter) parseConfig(config map[string]interface{}) (Config, error) {
	var cfg Config
	if err := platform.DecodeConfig(config, &cfg); err != nil {
		return cfg, platform.NewError(platformType, platform.ErrKindMalformed, "invalid github config", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	return cfg, nil
}

// get performs an authenticated GET and decodes the JSON body into out
func (a *Adapter) get(ctx context.Context, cfg Config, path string, out interface{}) error {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterGitHub); err != nil {
		return platform.NewError(platformType, platform.ErrKindRateLimited, "rate limiter wait failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return platform.NewError(platformType, platform.ErrKindNetwork, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	a.log.Debug().Str("path", path).Msg("Making GitHub API request")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return platform.NewError(platformType, platform.ErrKindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return platform.NewError(platformType, platform.ErrKindNotFound, "resource not found: "+path, nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return platform.NewError(platformType, platform.ErrKindAuth, "authentication failed", nil)
	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return platform.NewError(platformType, platform.ErrKindRateLimited, "API rate limit exceeded", nil)
		}
		return platform.NewError(platformType, platform.ErrKindAuth, "access forbidden", nil)
	case resp.StatusCode >= 500:
		return platform.NewError(platformType, platform.ErrKindNetwork,
			fmt.Sprintf("server error: %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return platform.NewError(platformType, platform.ErrKindMalformed,
			fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return platform.NewError(platformType, platform.ErrKindMalformed, "failed to decode response", err)
	}
	return nil
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
