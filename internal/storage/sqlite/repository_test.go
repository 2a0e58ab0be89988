package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedPlatformAndUser(t *testing.T, repo *Repository) (*models.Platform, *models.TrackedUser) {
	t.Helper()
	ctx := context.Background()

	p := &models.Platform{
		Name:   "github-main",
		Type:   "github",
		Config: models.JSON{"token": "t"},
		Status: models.PlatformStatusActive,
	}
	require.NoError(t, repo.CreatePlatform(ctx, p))

	u := &models.TrackedUser{
		PlatformID: p.ID,
		UserID:     "octocat",
		Username:   "octocat",
		IsActive:   true,
	}
	require.NoError(t, repo.CreateTrackedUser(ctx, u))
	return p, u
}

func TestPlatformRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p, _ := seedPlatformAndUser(t, repo)
	require.NotEqual(t, "", p.ID.String())

	byName, err := repo.GetPlatformByName(ctx, "github-main")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)
	assert.Equal(t, "t", byName.Config["token"])

	_, err = repo.GetPlatformByName(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertContentDuplicateHash(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p, u := seedPlatformAndUser(t, repo)

	c := &models.Content{
		PlatformID: p.ID,
		UserID:     u.ID,
		ContentID:  "event-1",
		Title:      "hello",
		Hash:       "abc123",
	}
	require.NoError(t, repo.InsertContent(ctx, c))

	dup := &models.Content{
		PlatformID: p.ID,
		UserID:     u.ID,
		ContentID:  "event-1",
		Title:      "hello",
		Hash:       "abc123",
	}
	err := repo.InsertContent(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateContent)

	count, err := repo.CountContentsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	exists, err := repo.ExistsByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAdvanceWatermarkMonotonic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, u := seedPlatformAndUser(t, repo)

	t1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AdvanceWatermark(ctx, u.ID, t1))

	got, err := repo.GetTrackedUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastFetchedAt)
	assert.True(t, got.LastFetchedAt.Equal(t1))

	// a stale writer cannot roll the watermark back
	stale := t1.Add(-time.Hour)
	require.NoError(t, repo.AdvanceWatermark(ctx, u.ID, stale))

	got, err = repo.GetTrackedUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastFetchedAt.Equal(t1))

	// moving forward works
	t2 := t1.Add(time.Hour)
	require.NoError(t, repo.AdvanceWatermark(ctx, u.ID, t2))

	got, err = repo.GetTrackedUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.LastFetchedAt.Equal(t2))
}

func TestListFetchTasksNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, u := seedPlatformAndUser(t, repo)

	first := &models.FetchTask{UserID: u.ID, TaskType: models.TaskTypeManual, Status: models.TaskStatusPending}
	require.NoError(t, repo.CreateFetchTask(ctx, first))
	// created_at has second precision in sqlite, force distinct ordering
	second := &models.FetchTask{UserID: u.ID, TaskType: models.TaskTypeScheduled, Status: models.TaskStatusPending}
	second.CreatedAt = time.Now().Add(time.Minute)
	require.NoError(t, repo.CreateFetchTask(ctx, second))

	tasks, err := repo.ListFetchTasks(ctx, storage.TaskFilter{UserID: &u.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)

	status := models.TaskStatusPending
	pending, err := repo.ListFetchTasks(ctx, storage.TaskFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestListTrackedUsersActiveOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p, active := seedPlatformAndUser(t, repo)

	inactive := &models.TrackedUser{
		PlatformID: p.ID,
		UserID:     "ghost",
		Username:   "ghost",
		IsActive:   false,
	}
	require.NoError(t, repo.CreateTrackedUser(ctx, inactive))

	all, err := repo.ListTrackedUsers(ctx, storage.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := repo.ListTrackedUsers(ctx, storage.UserFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)
}

func TestScheduleConfigScopes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, u := seedPlatformAndUser(t, repo)

	_, err := repo.GetGlobalSchedule(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	global := &models.ScheduleConfig{Scope: models.ScheduleScopeGlobal, IsEnabled: true, Cron: "0 */2 * * *"}
	require.NoError(t, repo.SaveSchedule(ctx, global))

	got, err := repo.GetGlobalSchedule(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)

	// toggle via save
	got.IsEnabled = false
	require.NoError(t, repo.SaveSchedule(ctx, got))
	got, err = repo.GetGlobalSchedule(ctx)
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)

	_, err = repo.GetUserSchedule(ctx, u.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	override := &models.ScheduleConfig{Scope: models.ScheduleScopeUser, UserID: &u.ID, IsEnabled: false}
	require.NoError(t, repo.SaveSchedule(ctx, override))

	userCfg, err := repo.GetUserSchedule(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, userCfg.IsEnabled)
}

func TestFindTrackedUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p, u := seedPlatformAndUser(t, repo)

	found, err := repo.FindTrackedUser(ctx, p.ID, "octocat")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = repo.FindTrackedUser(ctx, p.ID, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
