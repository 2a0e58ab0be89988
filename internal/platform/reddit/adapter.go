package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/pkg/logger"
	"github.com/content-aggregator/pkg/ratelimit"
)

const (
	platformType = "reddit"
	apiBaseURL   = "https://oauth.reddit.com"
	tokenURL     = "https://www.reddit.com/api/v1/access_token"
	maxPageSize  = 100
)

// Config is the typed shape of the reddit platform config bag
type Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	UserAgent    string `json:"user_agent"`
	BaseURL      string `json:"base_url"`  // override for tests
	TokenURL     string `json:"token_url"` // override for tests
}

// Adapter fetches a user's submissions from the Reddit API.
// Listings are reverse-chronological; the cursor is Reddit's "after"
// fullname token.
type Adapter struct {
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new Reddit adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		rateLimiter: limiter,
		log:         log.WithPlatform(platformType, "reddit-api"),
	}
}

// Type returns "reddit"
func (a *Adapter) Type() string {
	return platformType
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditListing struct {
	Data struct {
		After    string        `json:"after"`
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"` // fullname, e.g. t3_abc123
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`
	NumComments int    `json:"num_comments"`
	IsVideo    bool    `json:"is_video"`
	PostHint   string  `json:"post_hint"`
}

type redditAbout struct {
	Data struct {
		ID      string  `json:"id"`
		Name    string  `json:"name"`
		IconImg string  `json:"icon_img"`
		Created float64 `json:"created_utc"`
		Subreddit struct {
			PublicDescription string `json:"public_description"`
		} `json:"subreddit"`
	} `json:"data"`
}

// TestConnection validates the OAuth credentials
func (a *Adapter) TestConnection(ctx context.Context, config map[string]interface{}) error {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return err
	}
	var out json.RawMessage
	return a.get(ctx, cfg, "/api/v1/me", &out)
}

// GetUserInfo resolves a Reddit username to a platform user
func (a *Adapter) GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*platform.PlatformUser, error) {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return nil, err
	}

	var about redditAbout
	if err := a.get(ctx, cfg, "/user/"+url.PathEscape(userID)+"/about.json", &about); err != nil {
		return nil, err
	}
	if about.Data.Name == "" {
		return nil, platform.NewError(platformType, platform.ErrKindNotFound, "user not found: "+userID, nil)
	}

	created := time.Unix(int64(about.Data.Created), 0).UTC()
	return &platform.PlatformUser{
		UserID:      about.Data.Name,
		Username:    about.Data.Name,
		DisplayName: about.Data.Name,
		AvatarURL:   about.Data.IconImg,
		Bio:         about.Data.Subreddit.PublicDescription,
		ProfileURL:  "https://www.reddit.com/user/" + about.Data.Name,
		CreatedAt:   &created,
	}, nil
}

// ValidateUserID checks whether a Reddit username exists
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

// GetUserContents pages through the user's submissions, newest first
func (a *Adapter) GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q platform.ContentQuery) (*platform.FetchResult, error) {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	path := fmt.Sprintf("/user/%s/submitted.json?sort=new&limit=%d", url.PathEscape(userID), limit)
	if q.Cursor != "" {
		path += "&after=" + url.QueryEscape(q.Cursor)
	}

	var listing redditListing
	if err := a.get(ctx, cfg, path, &listing); err != nil {
		return nil, err
	}

	contents := make([]*platform.PlatformContent, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		var post redditPost
		if err := json.Unmarshal(child.Data, &post); err != nil {
			a.log.Warn().Err(err).Msg("Skipping malformed listing item")
			continue
		}
		c := convertPost(&post)
		if q.Cursor == "" && !platform.InTimeRange(c.PublishedAt, q.StartTime, q.EndTime) {
			continue
		}
		contents = append(contents, c)
	}

	hasMore := listing.Data.After != ""
	result := &platform.FetchResult{
		Contents:     contents,
		HasMore:      hasMore,
		FetchedCount: len(contents),
	}
	if hasMore {
		result.NextCursor = listing.Data.After
	}
	return result, nil
}

// GetProfileDetail is unsupported for Reddit
func (a *Adapter) GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error) {
	return nil, nil
}

func convertPost(post *redditPost) *platform.PlatformContent {
	var publishedAt *time.Time
	if post.CreatedUTC > 0 {
		t := time.Unix(int64(post.CreatedUTC), 0).UTC()
		publishedAt = &t
	}

	contentType := platform.ContentTypeText
	switch {
	case post.IsVideo:
		contentType = platform.ContentTypeVideo
	case post.PostHint == "image":
		contentType = platform.ContentTypeImage
	case post.PostHint == "link":
		contentType = platform.ContentTypeLink
	}

	var mediaURLs []string
	if contentType == platform.ContentTypeImage || contentType == platform.ContentTypeVideo {
		mediaURLs = []string{post.URL}
	}

	return &platform.PlatformContent{
		ContentID:      post.Name,
		Title:          post.Title,
		Body:           post.Selftext,
		URL:            "https://www.reddit.com" + post.Permalink,
		ContentType:    contentType,
		MediaURLs:      mediaURLs,
		PublishedAt:    publishedAt,
		AuthorID:       post.Author,
		AuthorUsername: post.Author,
		Metadata: map[string]interface{}{
			"score":        post.Score,
			"num_comments": post.NumComments,
			"subreddit":    post.Subreddit,
		},
	}
}

func (a *Adapter) parseConfig(config map[string]interface{}) (Config, error) {
	var cfg Config
	if err := platform.DecodeConfig(config, &cfg); err != nil {
		return cfg, platform.NewError(platformType, platform.ErrKindMalformed, "invalid reddit config", err)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return cfg, platform.NewError(platformType, platform.ErrKindAuth, "client_id and client_secret are required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = apiBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = tokenURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "content-aggregator/1.0"
	}
	return cfg, nil
}

// httpClient builds an OAuth2 client-credentials HTTP client for the config
func (a *Adapter) httpClient(ctx context.Context, cfg Config) *http.Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := cc.Client(ctx)
	client.Timeout = 30 * time.Second
	return client
}

func (a *Adapter) get(ctx context.Context, cfg Config, path string, out interface{}) error {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterReddit); err != nil {
		return platform.NewError(platformType, platform.ErrKindRateLimited, "rate limiter wait failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return platform.NewError(platformType, platform.ErrKindNetwork, "failed to create request", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	a.log.Debug().Str("path", path).Msg("Making Reddit API request")

	resp, err := a.httpClient(ctx, cfg).Do(req)
	if err != nil {
		return platform.NewError(platformType, platform.ErrKindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return platform.NewError(platformType, platform.ErrKindNotFound, "resource not found: "+path, nil)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return platform.NewError(platformType, platform.ErrKindAuth, "authentication failed", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.NewError(platformType, platform.ErrKindRateLimited, "API rate limit exceeded", nil)
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
