package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/storage/sqlite"
	"github.com/content-aggregator/internal/task"
	"github.com/content-aggregator/pkg/logger"
)

func TestCSVWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)
	rows := [][]string{
		Columns,
		{"c1", "github", "alice", "hello", "body", "https://example.com/1", "text", "2026-01-02T15:04:05Z", "2026-01-03T00:00:00Z"},
	}

	dest, err := w.Write(context.Background(), filepath.Join(dir, "out.csv"), rows)
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	got, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Columns, got[0])
	assert.Equal(t, "c1", got[1][0])
	assert.Equal(t, "alice", got[1][2])
}

func TestCSVWriterDefaultDestination(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)

	dest, err := w.Write(context.Background(), "", [][]string{Columns})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(dest))
	assert.Contains(t, filepath.Base(dest), "contents-")

	_, err = os.Stat(dest)
	require.NoError(t, err)
}

func newExportHarness(t *testing.T) (*Service, *models.TrackedUser, *sqlite.Repository) {
	t.Helper()
	ctx := context.Background()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	p := &models.Platform{Name: "github-main", Type: "github", Status: models.PlatformStatusActive}
	require.NoError(t, repo.CreatePlatform(ctx, p))
	u := &models.TrackedUser{PlatformID: p.ID, UserID: "alice", Username: "alice", IsActive: true}
	require.NoError(t, repo.CreateTrackedUser(ctx, u))

	published := time.Now().Add(-time.Hour)
	for _, id := range []string{"c1", "c2"} {
		item := &platform.PlatformContent{ContentID: id, Title: "post " + id, Body: "body " + id}
		content := &models.Content{
			PlatformID:  p.ID,
			UserID:      u.ID,
			ContentID:   id,
			Title:       item.Title,
			Body:        item.Body,
			ContentType: "text",
			PublishedAt: &published,
			Hash:        platform.Fingerprint(p.ID.String(), item),
		}
		require.NoError(t, repo.InsertContent(ctx, content))
	}

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	tracker := task.NewTracker(repo, log)
	svc := NewService(repo, tracker, log, NewCSVWriter(t.TempDir()))
	return svc, u, repo
}

func TestExportWritesAllContentsAndTracksTask(t *testing.T) {
	svc, user, _ := newExportHarness(t)
	ctx := context.Background()

	got, err := svc.Export(ctx, user.ID, models.ExportFormatCSV, "")
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	assert.Equal(t, 2, got.ExportedCount)
	require.NotEmpty(t, got.Destination)

	f, err := os.Open(got.Destination)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "text", rows[1][6])
}

func TestExportUnknownFormat(t *testing.T) {
	svc, user, _ := newExportHarness(t)

	_, err := svc.Export(context.Background(), user.ID, models.ExportFormatSheets, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no export backend")
}
