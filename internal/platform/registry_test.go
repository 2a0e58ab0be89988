package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/pkg/logger"
)

type stubAdapter struct {
	typ string
}

func (s *stubAdapter) Type() string { return s.typ }
func (s *stubAdapter) TestConnection(ctx context.Context, config map[string]interface{}) error {
	return nil
}
func (s *stubAdapter) GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*PlatformUser, error) {
	return &PlatformUser{UserID: userID}, nil
}
func (s *stubAdapter) ValidateUserID(ctx context.Context, userID string, config map[string]interface{}) (bool, error) {
	return true, nil
}
func (s *stubAdapter) GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q ContentQuery) (*FetchResult, error) {
	return &FetchResult{}, nil
}
func (s *stubAdapter) GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error) {
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestRegistryResolveCaseInsensitive(t *testing.T) {
	reg := NewRegistry(testLogger(), &stubAdapter{typ: "github"})

	for _, key := range []string{"github", "GITHUB", "GitHub", " github "} {
		adapter, err := reg.Resolve(key)
		require.NoError(t, err, "key %q", key)
		assert.Equal(t, "github", adapter.Type())
	}
}

func TestRegistryDuplicateKeepsFirst(t *testing.T) {
	first := &stubAdapter{typ: "reddit"}
	second := &stubAdapter{typ: "REDDIT"}

	reg := NewRegistry(testLogger(), first, second)

	adapter, err := reg.Resolve("reddit")
	require.NoError(t, err)
	assert.Same(t, first, adapter)
	assert.Len(t, reg.SupportedTypes(), 1)
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry(testLogger(), &stubAdapter{typ: "github"}, &stubAdapter{typ: "medium"})

	_, err := reg.Resolve("twitter")
	require.Error(t, err)
	assert.Equal(t, ErrKindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "GITHUB")
	assert.Contains(t, err.Error(), "MEDIUM")
}

func TestRegistryIsSupported(t *testing.T) {
	reg := NewRegistry(testLogger(), &stubAdapter{typ: "zsxq"})

	assert.True(t, reg.IsSupported("ZSXQ"))
	assert.False(t, reg.IsSupported("github"))
}
