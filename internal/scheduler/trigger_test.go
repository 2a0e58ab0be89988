package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/internal/fetch"
	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/storage/sqlite"
	"github.com/content-aggregator/internal/task"
	"github.com/content-aggregator/pkg/logger"
)

type noopAdapter struct{}

func (noopAdapter) Type() string { return "fake" }
func (noopAdapter) TestConnection(ctx context.Context, config map[string]interface{}) error {
	return nil
}
func (noopAdapter) GetUserInfo(ctx context.Context, userID string, config map[string]interface{}) (*platform.PlatformUser, error) {
	return &platform.PlatformUser{UserID: userID, Username: userID}, nil
}
func (noopAdapter) ValidateUserID(ctx context.Context, userID string, config map[string]interface{}) (bool, error) {
	return true, nil
}
func (noopAdapter) GetProfileDetail(ctx context.Context, userID string, config map[string]interface{}) (map[string]string, error) {
	return nil, nil
}
func (noopAdapter) GetUserContents(ctx context.Context, userID string, config map[string]interface{}, q platform.ContentQuery) (*platform.FetchResult, error) {
	return &platform.FetchResult{}, nil
}

type triggerHarness struct {
	repo    *sqlite.Repository
	trigger *Trigger
}

func newTriggerHarness(t *testing.T) *triggerHarness {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	registry := platform.NewRegistry(log, noopAdapter{})
	tracker := task.NewTracker(repo, log)
	orch := fetch.NewOrchestrator(repo, registry, tracker, fetch.Options{Workers: 2}, log)
	t.Cleanup(orch.Shutdown)

	return &triggerHarness{repo: repo, trigger: NewTrigger(repo, orch, log)}
}

func (h *triggerHarness) addUser(t *testing.T, username string, active bool) *models.TrackedUser {
	t.Helper()
	ctx := context.Background()

	p, err := h.repo.GetPlatformByName(ctx, "fake-main")
	if err != nil {
		p = &models.Platform{Name: "fake-main", Type: "fake", Status: models.PlatformStatusActive}
		require.NoError(t, h.repo.CreatePlatform(ctx, p))
	}
	u := &models.TrackedUser{PlatformID: p.ID, UserID: username, Username: username, IsActive: active}
	require.NoError(t, h.repo.CreateTrackedUser(ctx, u))
	return u
}

func TestTickWithoutGlobalConfigIsNoop(t *testing.T) {
	h := newTriggerHarness(t)
	h.addUser(t, "alice", true)

	summary, err := h.trigger.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &TickSummary{}, summary)
}

func TestTickGlobalDisabledIsNoop(t *testing.T) {
	h := newTriggerHarness(t)
	ctx := context.Background()
	h.addUser(t, "alice", true)
	require.NoError(t, h.trigger.SetGlobalEnabled(ctx, false, ""))

	summary, err := h.trigger.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TickSummary{}, summary)
}

func TestTickSubmitsActiveUsers(t *testing.T) {
	h := newTriggerHarness(t)
	ctx := context.Background()
	h.addUser(t, "alice", true)
	h.addUser(t, "bob", true)
	h.addUser(t, "carol", false)
	require.NoError(t, h.trigger.SetGlobalEnabled(ctx, true, "0 */2 * * *"))

	summary, err := h.trigger.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Eligible)
	assert.Equal(t, 2, summary.Submitted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestTickHonorsUserOverride(t *testing.T) {
	h := newTriggerHarness(t)
	ctx := context.Background()
	h.addUser(t, "alice", true)
	bob := h.addUser(t, "bob", true)
	require.NoError(t, h.trigger.SetGlobalEnabled(ctx, true, ""))
	require.NoError(t, h.trigger.SetUserEnabled(ctx, bob.ID, false))

	summary, err := h.trigger.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Eligible)
	assert.Equal(t, 1, summary.Submitted)
}

func TestSetUserEnabledUpserts(t *testing.T) {
	h := newTriggerHarness(t)
	ctx := context.Background()
	alice := h.addUser(t, "alice", true)

	require.NoError(t, h.trigger.SetUserEnabled(ctx, alice.ID, false))
	cfg, err := h.repo.GetUserSchedule(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled)

	require.NoError(t, h.trigger.SetUserEnabled(ctx, alice.ID, true))
	cfg, err = h.repo.GetUserSchedule(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, cfg.IsEnabled)
}

func TestSetGlobalEnabledKeepsCronWhenOmitted(t *testing.T) {
	h := newTriggerHarness(t)
	ctx := context.Background()

	require.NoError(t, h.trigger.SetGlobalEnabled(ctx, true, "0 */4 * * *"))
	require.NoError(t, h.trigger.SetGlobalEnabled(ctx, false, ""))

	cfg, err := h.repo.GetGlobalSchedule(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled)
	assert.Equal(t, "0 */4 * * *", cfg.Cron)
}
