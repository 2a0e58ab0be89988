package zsxq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/pkg/logger"
	"github.com/content-aggregator/pkg/ratelimit"
)

const (
	platformType = "zsxq"
	apiBase      = "https://api.zsxq.com/v2"
	pageSize     = 20
)

// zsxqTimeLayout matches timestamps like 2024-01-15T10:30:00.123+0800
const zsxqTimeLayout = "2006-01-02T15:04:05.999-0700"

// Config is the typed shape of the zsxq platform config bag
type Config struct {
	AccessToken string `json:"access_token"`
	GroupID     string `json:"group_id"`
	BaseURL     string `json:"base_url"` // override for tests
}

// Adapter fetches owner topics from a ZSXQ (Zhishi Xingqiu) group.
// Topics come back newest first; the next-page cursor is the create_time of
// the oldest topic on the current page, passed as end_time on the next call.
type Adapter struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// New creates a new ZSXQ adapter
func New(limiter *ratelimit.MultiLimiter, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: limiter,
		log:         log.WithPlatform(platformType, "zsxq-api"),
	}
}

// Type returns "zsxq"
func (a *Adapter) Type() string {
	return platformType
}

type zsxqEnvelope struct {
	Succeeded bool            `json:"succeeded"`
	Code      int             `json:"code"`
	RespData  json.RawMessage `json:"resp_data"`
}

type zsxqOwner struct {
	UserID    json.Number `json:"user_id"`
	Name      string      `json:"name"`
	Alias     string      `json:"alias"`
	AvatarURL string      `json:"avatar_url"`
	Description string    `json:"description"`
}

type zsxqImage struct {
	Original struct {
		URL string `json:"url"`
	} `json:"original"`
	Large struct {
		URL string `json:"url"`
	} `json:"large"`
}

type zsxqFile struct {
	FileID json.Number `json:"file_id"`
	Name   string      `json:"name"`
}

type zsxqTopic struct {
	TopicID    json.Number `json:"topic_id"`
	CreateTime string      `json:"create_time"`
	Title      string      `json:"title"`
	Talk       *struct {
		Owner  zsxqOwner   `json:"owner"`
		Text   string      `json:"text"`
		Images []zsxqImage `json:"images"`
		Files  []zsxqFile  `json:"files"`
		Article *struct {
			Title      string `json:"title"`
			ArticleURL string `json:"article_url"`
		} `json:"article"`
	} `json:"talk"`
	LikesCount    int `json:"likes_count"`
	CommentsCount int `json:"comments_count"`
	ReadingCount  int `json:"reading_count"`
}

// TestConnection validates the token against the configured group
func (a *Adapter) TestConnection(ctx context.Context, config map[string]interface{}) error {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return err
	}
	var out json.RawMessage
	return a.get(ctx, cfg, "/groups/"+cfg.GroupID, &out)
}

// GetUserInfo resolves a ZSXQ user id
func (a *Adapter) GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*platform.PlatformUser, error) {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return nil, err
	}

	var resp struct {
		User zsxqOwner `json:"user"`
	}
	if err := a.get(ctx, cfg, "/users/"+url.PathEscape(userID), &resp); err != nil {
		return nil, err
	}
	if resp.User.UserID == "" {
		return nil, platform.NewError(platformType, platform.ErrKindNotFound, "user not found: "+userID, nil)
	}

	displayName := resp.User.Alias
	if displayName == "" {
		displayName = resp.User.Name
	}

	return &platform.PlatformUser{
		UserID:      resp.User.UserID.String(),
		Username:    resp.User.Name,
		DisplayName: displayName,
		AvatarURL:   resp.User.AvatarURL,
		Bio:         resp.User.Description,
	}, nil
}

// ValidateUserID checks whether a ZSXQ user id resolves
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

// GetUserContents pages through the group's owner topics, newest first
func (a *Adapter) GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q platform.ContentQuery) (*platform.FetchResult, error) {
	cfg, err := a.parseConfig(config)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}

	path := fmt.Sprintf("/groups/%s/topics?scope=by_owner&count=%d", cfg.GroupID, limit)
	if q.Cursor != "" {
		path += "&end_time=" + url.QueryEscape(q.Cursor)
	}

	var resp struct {
		Topics []zsxqTopic `json:"topics"`
	}
	if err := a.get(ctx, cfg, path, &resp); err != nil {
		return nil, err
	}

	contents := make([]*platform.PlatformContent, 0, len(resp.Topics))
	var oldestCreateTime string
	for _, topic := range resp.Topics {
		// the page's last create_time keys the next page, whatever the
		// topic type; skipping q&a topics here must not truncate paging
		oldestCreateTime = topic.CreateTime
		c := a.convertTopic(&topic)
		if c == nil {
			continue
		}
		if q.Cursor == "" && !platform.InTimeRange(c.PublishedAt, q.StartTime, q.EndTime) {
			continue
		}
		contents = append(contents, c)
	}

	// a full page means more history may exist below the oldest topic
	hasMore := len(resp.Topics) == limit && oldestCreateTime != ""
	result := &platform.FetchResult{
		Contents:     contents,
		HasMore:      hasMore,
		FetchedCount: len(contents),
	}
	if hasMore {
		result.NextCursor = oldestCreateTime
	}
	return result, nil
}

// GetProfileDetail returns avatar and self-introduction enrichment fields
func (a *Adapter) GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error) {
	user, err := a.GetUserInfo(ctx, userID, config)
	if err != nil {
		return nil, err
	}
	detail := map[string]string{}
	if user.AvatarURL != "" {
		detail["avatar_url"] = user.AvatarURL
	}
	if user.Bio != "" {
		detail["self_introduction"] = user.Bio
	}
	return detail, nil
}

func (a *Adapter) convertTopic(topic *zsxqTopic) *platform.PlatformContent {
	if topic.Talk == nil {
		return nil
	}

	title := topic.Title
	body := topic.Talk.Text
	contentURL := ""
	if topic.Talk.Article != nil {
		if title == "" {
			title = topic.Talk.Article.Title
		}
		contentURL = topic.Talk.Article.ArticleURL
	}

	var mediaURLs []string
	for _, img := range topic.Talk.Images {
		u := img.Original.URL
		if u == "" {
			u = img.Large.URL
		}
		if u != "" {
			mediaURLs = append(mediaURLs, u)
		}
	}

	var fileIDs []string
	for _, f := range topic.Talk.Files {
		if f.FileID != "" {
			fileIDs = append(fileIDs, f.FileID.String())
		}
	}

	contentType := platform.ContentTypeText
	if len(mediaURLs) > 0 {
		contentType = platform.ContentTypeImage
	}

	metadata := map[string]interface{}{
		"likes_count":    topic.LikesCount,
		"comments_count": topic.CommentsCount,
		"reading_count":  topic.ReadingCount,
	}
	if len(fileIDs) > 0 {
		metadata["file_ids"] = fileIDs
	}

	return &platform.PlatformContent{
		ContentID:      topic.TopicID.String(),
		Title:          title,
		Body:           body,
		URL:            contentURL,
		ContentType:    contentType,
		MediaURLs:      mediaURLs,
		PublishedAt:    parseCreateTime(topic.CreateTime),
		AuthorID:       topic.Talk.Owner.UserID.String(),
		AuthorUsername: topic.Talk.Owner.Name,
		Metadata:       metadata,
	}
}

// parseCreateTime returns nil on unparsable timestamps; the topic is still
// ingested
func parseCreateTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(zsxqTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func (a *Adapter) parseConfig(config map[string]interface{}) (Config, error) {
	var cfg Config
	if err := platform.DecodeConfig(config, &cfg); err != nil {
		return cfg, platform.NewError(platformType, platform.ErrKindMalformed, "invalid zsxq config", err)
	}
	if cfg.AccessToken == "" {
		return cfg, platform.NewError(platformType, platform.ErrKindAuth, "access_token is required", nil)
	}
	if cfg.GroupID == "" {
		return cfg, platform.NewError(platformType, platform.ErrKindMalformed, "group_id is required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = apiBase
	}
	return cfg, nil
}

func (a *Adapter) get(ctx context.Context, cfg Config, path string, out interface{}) error {
	if err := a.rateLimiter.Wait(ctx, ratelimit.LimiterZsxq); err != nil {
		return platform.NewError(platformType, platform.ErrKindRateLimited, "rate limiter wait failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return platform.NewError(platformType, platform.ErrKindNetwork, "failed to create request", err)
	}
	req.Header.Set("Cookie", "zsxq_access_token="+cfg.AccessToken)
	req.Header.Set("Accept", "application/json")

	a.log.Debug().Str("path", path).Msg("Making ZSXQ API request")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return platform.NewError(platformType, platform.ErrKindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return platform.NewError(platformType, platform.ErrKindAuth, "authentication failed", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return platform.NewError(platformType, platform.ErrKindRateLimited, "API rate limit exceeded", nil)
	case resp.StatusCode >= 500:
		return platform.NewError(platformType, platform.ErrKindNetwork,
			fmt.Sprintf("server error: %d", resp.StatusCode), nil)
	}

	var envelope zsxqEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return platform.NewError(platformType, platform.ErrKindMalformed, "failed to decode response", err)
	}
	if !envelope.Succeeded {
		if resp.StatusCode == http.StatusNotFound || envelope.Code == 404 {
			return platform.NewError(platformType, platform.ErrKindNotFound, "resource not found: "+path, nil)
		}
		return platform.NewError(platformType, platform.ErrKindMalformed,
			fmt.Sprintf("API call not succeeded (code %d)", envelope.Code), nil)
	}
	if out != nil && len(envelope.RespData) > 0 {
		if err := json.Unmarshal(envelope.RespData, out); err != nil {
			return platform.NewError(platformType, platform.ErrKindMalformed, "failed to decode resp_data", err)
		}
	}
	return nil
}

// Ensure Adapter implements platform.Adapter
var _ platform.Adapter = (*Adapter)(nil)
