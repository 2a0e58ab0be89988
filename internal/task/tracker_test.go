package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/storage/sqlite"
	"github.com/content-aggregator/pkg/logger"
)

func newTestTracker(t *testing.T) (*Tracker, *models.TrackedUser) {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	p := &models.Platform{Name: "gh", Type: "github", Status: models.PlatformStatusActive}
	require.NoError(t, repo.CreatePlatform(ctx, p))
	u := &models.TrackedUser{PlatformID: p.ID, UserID: "octocat", Username: "octocat", IsActive: true}
	require.NoError(t, repo.CreateTrackedUser(ctx, u))

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewTracker(repo, log), u
}

func TestFetchTaskLifecycle(t *testing.T) {
	tracker, user := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.CreateFetchTask(ctx, user.ID, models.TaskTypeManual, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, created.Status)

	require.NoError(t, tracker.MarkRunning(ctx, created.ID))
	got, err := tracker.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, tracker.MarkSucceeded(ctx, created.ID, 10, 7, 3))
	got, err = tracker.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	assert.Equal(t, 10, got.FetchedCount)
	assert.Equal(t, 7, got.NewCount)
	assert.Equal(t, 3, got.DuplicateCount)
	assert.NotNil(t, got.CompletedAt)
}

func TestTerminalTaskRejectsTransitions(t *testing.T) {
	tracker, user := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.CreateFetchTask(ctx, user.ID, models.TaskTypeManual, nil, nil, "")
	require.NoError(t, err)
	require.NoError(t, tracker.MarkRunning(ctx, created.ID))
	require.NoError(t, tracker.MarkFailed(ctx, created.ID, "network", "boom"))

	assert.ErrorIs(t, tracker.MarkRunning(ctx, created.ID), ErrTerminalState)
	assert.ErrorIs(t, tracker.MarkSucceeded(ctx, created.ID, 1, 1, 0), ErrTerminalState)
	assert.ErrorIs(t, tracker.MarkFailed(ctx, created.ID, "network", "again"), ErrTerminalState)

	got, err := tracker.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Equal(t, "network", got.ErrorKind)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestSucceededRequiresRunning(t *testing.T) {
	tracker, user := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.CreateFetchTask(ctx, user.ID, models.TaskTypeScheduled, nil, nil, "")
	require.NoError(t, err)

	err = tracker.MarkSucceeded(ctx, created.ID, 1, 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transition")
}

func TestPendingTaskMayFail(t *testing.T) {
	tracker, user := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.CreateFetchTask(ctx, user.ID, models.TaskTypeManual, nil, nil, "")
	require.NoError(t, err)

	// a task that never started can still fail (e.g. submit error)
	require.NoError(t, tracker.MarkFailed(ctx, created.ID, "unsupported", "pool shut down"))
	got, err := tracker.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
}

func TestUpdateWindow(t *testing.T) {
	tracker, user := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.CreateFetchTask(ctx, user.ID, models.TaskTypeManual, nil, nil, "")
	require.NoError(t, err)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	require.NoError(t, tracker.UpdateWindow(ctx, created.ID, &start, &end))

	got, err := tracker.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StartTime)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.StartTime.Equal(start))
	assert.True(t, got.EndTime.Equal(end))
}

func TestExportTaskLifecycle(t *testing.T) {
	tracker, user := newTestTracker(t)
	ctx := context.Background()

	created, err := tracker.CreateExportTask(ctx, user.ID, models.ExportFormatCSV, "/tmp/out.csv")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, created.Status)

	require.NoError(t, tracker.MarkExportRunning(ctx, created.ID))
	require.NoError(t, tracker.MarkExportSucceeded(ctx, created.ID, 42, ""))

	got, err := tracker.GetExport(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	assert.Equal(t, 42, got.ExportedCount)
	assert.Equal(t, "/tmp/out.csv", got.Destination)

	assert.ErrorIs(t, tracker.MarkExportFailed(ctx, created.ID, "late"), ErrTerminalState)
}
