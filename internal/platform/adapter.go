package platform

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// ContentType mirrors the normalized content kinds before persistence
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeLink  ContentType = "link"
)

// PlatformUser is a platform-native identity as reported by an adapter.
// It is transient: projected into a TrackedUser when tracking starts.
type PlatformUser struct {
	UserID        string
	Username      string
	DisplayName   string
	AvatarURL     string
	Bio           string
	ProfileURL    string
	FollowerCount int
	CreatedAt     *time.Time
	Tags          []string
}

// PlatformContent is one normalized content unit returned by an adapter.
// ContentID is the stable platform-native identifier. PublishedAt is nil
// when the platform timestamp could not be parsed.
type PlatformContent struct {
	ContentID      string
	Title          string
	Body           string
	URL            string
	ContentType    ContentType
	MediaURLs      []string
	PublishedAt    *time.Time
	Metadata       map[string]interface{}
	AuthorID       string
	AuthorUsername string
}

// FetchResult is one page of adapter output. When HasMore is false,
// NextCursor is empty. Cursor values are opaque to callers and must be
// passed back unmodified on the next call.
type FetchResult struct {
	Contents   []*PlatformContent
	HasMore    bool
	NextCursor string
	TotalCount int // 0 when the platform does not report it
	FetchedCount int
}

// ContentQuery parameterizes one GetUserContents call. A non-empty Cursor
// resumes an in-progress pagination and the time window is ignored for that
// call. A nil StartTime means "from the beginning of available history",
// a nil EndTime means "up to now". Limit caps the page size.
type ContentQuery struct {
	StartTime *time.Time
	EndTime   *time.Time
	Cursor    string
	Limit     int
}

// Adapter is the contract every platform implements. Config is the open
// platform config bag; each implementation decodes it into its own typed
// config at the boundary.
type Adapter interface {
	// Type returns the registry key for this adapter (e.g. "github")
	Type() string

	// TestConnection validates credentials/reachability
	TestConnection(ctx context.Context, config map[string]interface{}) error

	// GetUserInfo resolves a platform user, failing with ErrKindNotFound
	// when the id does not resolve
	GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*PlatformUser, error)

	// ValidateUserID is a cheap existence check used before tracking
	ValidateUserID(ctx context.Context, userID string, config map[string]interface{}) (bool, error)

	// GetUserContents is the paginated fetch primitive
	GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q ContentQuery) (*FetchResult, error)

	// GetProfileDetail is an enrichment hook; adapters without rich
	// profiles return (nil, nil) and callers treat that as a no-op
	GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error)
}

// Fingerprint computes the deduplication hash for a content item:
// a sha256 over the platform instance ID, the platform-native content ID and
// the normalized title/body. Stable across refetches even when engagement
// counters in metadata drift.
func Fingerprint(platformID string, c *PlatformContent) string {
	data := fmt.Sprintf("%s|%s|%s|%s", platformID, c.ContentID, normalize(c.Title), normalize(c.Body))
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// InTimeRange reports whether a publish time falls inside (start, end].
// A nil publish time always passes so malformed items are not dropped here.
func InTimeRange(publishedAt, start, end *time.Time) bool {
	if publishedAt == nil {
		return true
	}
	if start != nil && !publishedAt.After(*start) {
		return false
	}
	if end != nil && publishedAt.After(*end) {
		return false
	}
	return true
}
