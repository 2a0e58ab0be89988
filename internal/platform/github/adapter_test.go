package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/pkg/logger"
	"github.com/content-aggregator/pkg/ratelimit"
)

func newTestAdapter() *Adapter {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return New(ratelimit.NewMultiLimiter(), log)
}

func TestGetUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/octocat", r.URL.Path)
		fmt.Fprint(w, `{"id":1,"login":"octocat","name":"The Octocat","avatar_url":"https://img","html_url":"https://github.com/octocat","followers":42}`)
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	user, err := adapter.GetUserInfo(context.Background(), "octocat", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)

	assert.Equal(t, "octocat", user.Username)
	assert.Equal(t, "The Octocat", user.DisplayName)
	assert.Equal(t, 42, user.FollowerCount)
}

func TestGetUserInfoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	_, err := adapter.GetUserInfo(context.Background(), "ghost", map[string]interface{}{"base_url": srv.URL})
	require.Error(t, err)
	assert.Equal(t, platform.ErrKindNotFound, platform.KindOf(err))

	valid, err := adapter.ValidateUserID(context.Background(), "ghost", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGetUserContentsPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/octocat/events/public":
			page := r.URL.Query().Get("page")
			if page == "1" {
				// full page of 2 means more to come
				fmt.Fprint(w, `[
					{"id":"100","type":"PushEvent","created_at":"2026-08-01T10:00:00Z","repo":{"name":"octocat/hello"},"payload":{"commits":[{"message":"fix"}]}},
					{"id":"99","type":"WatchEvent","created_at":"2026-08-01T09:00:00Z","repo":{"name":"octocat/hello"},"payload":{}}
				]`)
			} else {
				fmt.Fprint(w, `[{"id":"98","type":"PushEvent","created_at":"2026-07-30T10:00:00Z","repo":{"name":"octocat/hello"},"payload":{}}]`)
			}
		case "/users/octocat/repos":
			fmt.Fprint(w, `[]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	cfg := map[string]interface{}{"base_url": srv.URL}

	first, err := adapter.GetUserContents(context.Background(), "octocat", cfg, platform.ContentQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, first.Contents, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "2", first.NextCursor)
	assert.Equal(t, "event-100", first.Contents[0].ContentID)
	assert.Equal(t, "fix", first.Contents[0].Body)

	second, err := adapter.GetUserContents(context.Background(), "octocat", cfg, platform.ContentQuery{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Len(t, second.Contents, 1)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.NextCursor)
}

func TestGetUserContentsMalformedTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/octocat/events/public":
			fmt.Fprint(w, `[{"id":"7","type":"PushEvent","created_at":"not-a-time","repo":{"name":"octocat/x"},"payload":{}}]`)
		case "/users/octocat/repos":
			fmt.Fprint(w, `[]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	res, err := adapter.GetUserContents(context.Background(), "octocat", map[string]interface{}{"base_url": srv.URL}, platform.ContentQuery{Limit: 10})
	require.NoError(t, err)

	// item kept, timestamp nil
	require.Len(t, res.Contents, 1)
	assert.Nil(t, res.Contents[0].PublishedAt)
}

func TestGetUserContentsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	_, err := adapter.GetUserContents(context.Background(), "octocat", map[string]interface{}{"base_url": srv.URL}, platform.ContentQuery{Limit: 10})
	require.Error(t, err)
	assert.Equal(t, platform.ErrKindRateLimited, platform.KindOf(err))
	assert.True(t, platform.IsRetryable(err))
}

func TestInvalidCursor(t *testing.T) {
	adapter := newTestAdapter()
	_, err := adapter.GetUserContents(context.Background(), "octocat", map[string]interface{}{"base_url": "http://127.0.0.1:0"}, platform.ContentQuery{Cursor: "abc"})
	require.Error(t, err)
	assert.Equal(t, platform.ErrKindMalformed, platform.KindOf(err))
}
