package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/internal/storage/sqlite"
	"github.com/content-aggregator/pkg/logger"
)

// profileAdapter returns canned user info and profile detail
type profileAdapter struct {
	validIDs map[string]bool
	detail   map[string]string
}

func (a *profileAdapter) Type() string { return "fake" }
func (a *profileAdapter) TestConnection(ctx context.Context, config map[string]interface{}) error {
	return nil
}
func (a *profileAdapter) GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*platform.PlatformUser, error) {
	return &platform.PlatformUser{
		UserID:     userID,
		Username:   userID,
		ProfileURL: "https://example.com/" + userID,
	}, nil
}
func (a *profileAdapter) ValidateUserID(ctx context.Context, userID string, config map[string]interface{}) (bool, error) {
	return a.validIDs[userID], nil
}
func (a *profileAdapter) GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error) {
	if a.detail == nil {
		return nil, nil
	}
	return a.detail, nil
}
func (a *profileAdapter) GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q platform.ContentQuery) (*platform.FetchResult, error) {
	return &platform.FetchResult{}, nil
}

func newTestService(t *testing.T, adapter platform.Adapter) (*Service, *models.Platform) {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	p := &models.Platform{Name: "fake-main", Type: "fake", Status: models.PlatformStatusActive}
	require.NoError(t, repo.CreatePlatform(ctx, p))

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	registry := platform.NewRegistry(log, adapter)
	return NewService(repo, registry, log), p
}

func TestAddUserValidatesAndEnriches(t *testing.T) {
	adapter := &profileAdapter{
		validIDs: map[string]bool{"alice": true},
		detail:   map[string]string{"avatar_url": "https://example.com/alice.png", "bio": "hello"},
	}
	svc, p := newTestService(t, adapter)
	ctx := context.Background()

	user, err := svc.AddUser(ctx, p.ID, "alice", []string{"eng", "go"})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsActive)
	assert.Equal(t, models.StringSlice{"eng", "go"}, user.Tags)
	assert.Equal(t, "https://example.com/alice.png", user.AvatarURL)
	assert.Equal(t, "hello", user.Bio)

	got, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAddUserRejectsUnknownID(t *testing.T) {
	adapter := &profileAdapter{validIDs: map[string]bool{}}
	svc, p := newTestService(t, adapter)

	_, err := svc.AddUser(context.Background(), p.ID, "ghost", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestAddUserRejectsDoubleRegistration(t *testing.T) {
	adapter := &profileAdapter{validIDs: map[string]bool{"alice": true}}
	svc, p := newTestService(t, adapter)
	ctx := context.Background()

	_, err := svc.AddUser(ctx, p.ID, "alice", nil)
	require.NoError(t, err)

	_, err = svc.AddUser(ctx, p.ID, "alice", nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateUser)
}

func TestAddUserRejectsInactivePlatform(t *testing.T) {
	adapter := &profileAdapter{validIDs: map[string]bool{"alice": true}}
	svc, p := newTestService(t, adapter)
	ctx := context.Background()

	p.Status = models.PlatformStatusInactive
	require.NoError(t, svc.repo.UpdatePlatform(ctx, p))

	_, err := svc.AddUser(ctx, p.ID, "alice", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestSetActiveTogglesAndListsReflect(t *testing.T) {
	adapter := &profileAdapter{validIDs: map[string]bool{"alice": true, "bob": true}}
	svc, p := newTestService(t, adapter)
	ctx := context.Background()

	alice, err := svc.AddUser(ctx, p.ID, "alice", nil)
	require.NoError(t, err)
	_, err = svc.AddUser(ctx, p.ID, "bob", nil)
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, alice.ID, false))
	// repeated call with the same state is a no-op
	require.NoError(t, svc.SetActive(ctx, alice.ID, false))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].Username)

	all, err := svc.List(ctx, storage.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRemoveUser(t *testing.T) {
	adapter := &profileAdapter{validIDs: map[string]bool{"alice": true}}
	svc, p := newTestService(t, adapter)
	ctx := context.Background()

	alice, err := svc.AddUser(ctx, p.ID, "alice", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, alice.ID))

	_, err = svc.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
