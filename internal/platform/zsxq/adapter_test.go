package zsxq

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

func testConfig(baseURL string) map[string]interface{} {
	return map[string]interface{}{
		"access_token": "tok",
		"group_id":     "g1",
		"base_url":     baseURL,
	}
}

func topicsBody(topics string) string {
	return fmt.Sprintf(`{"succeeded":true,"resp_data":{"topics":[%s]}}`, topics)
}

const talkTopic = `{"topic_id":100,"create_time":"2026-01-10T12:00:00.000+0800","talk":{"owner":{"user_id":1,"name":"alice"},"text":"hello world"},"likes_count":3}`

// topics without a talk payload (q&a, solutions) still carry create_time
const qaTopic1 = `{"topic_id":101,"create_time":"2026-01-09T12:00:00.000+0800"}`
const qaTopic2 = `{"topic_id":102,"create_time":"2026-01-08T12:00:00.000+0800"}`

func TestGetUserContentsMixedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/g1/topics", r.URL.Path)
		fmt.Fprint(w, topicsBody(talkTopic+","+qaTopic1))
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	result, err := adapter.GetUserContents(context.Background(), "1", testConfig(srv.URL),
		platform.ContentQuery{Limit: 2})
	require.NoError(t, err)

	require.Len(t, result.Contents, 1)
	assert.Equal(t, "100", result.Contents[0].ContentID)
	assert.True(t, result.HasMore)
	// cursor is the page's last create_time, not the last talk's
	assert.Equal(t, "2026-01-09T12:00:00.000+0800", result.NextCursor)
}

func TestGetUserContentsFullPageOfNonTalkTopics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, topicsBody(qaTopic1+","+qaTopic2))
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	result, err := adapter.GetUserContents(context.Background(), "1", testConfig(srv.URL),
		platform.ContentQuery{Limit: 2})
	require.NoError(t, err)

	// nothing converts, but paging must continue past the skipped topics
	assert.Empty(t, result.Contents)
	assert.True(t, result.HasMore)
	assert.Equal(t, "2026-01-08T12:00:00.000+0800", result.NextCursor)
}

func TestGetUserContentsCursorForwarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-01-08T12:00:00.000+0800", r.URL.Query().Get("end_time"))
		fmt.Fprint(w, topicsBody(talkTopic))
	}))
	defer srv.Close()

	adapter := newTestAdapter()
	result, err := adapter.GetUserContents(context.Background(), "1", testConfig(srv.URL),
		platform.ContentQuery{Limit: 2, Cursor: "2026-01-08T12:00:00.000+0800"})
	require.NoError(t, err)

	require.Len(t, result.Contents, 1)
	// a short page ends pagination
	assert.False(t, result.HasMore)
	assert.Empty(t, result.NextCursor)
}
