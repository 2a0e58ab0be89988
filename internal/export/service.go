package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/internal/task"
	"github.com/content-aggregator/pkg/logger"
)

// Columns are the header row shared by all export backends
var Columns = []string{
	"Content ID",
	"Platform",
	"Username",
	"Title",
	"Body Preview",
	"URL",
	"Type",
	"Published At",
	"Fetched At",
}

// Writer is one export backend. It receives the header plus data rows and
// returns the final destination (file path, spreadsheet URL).
type Writer interface {
	Format() models.ExportFormat
	Write(ctx context.Context, destination string, rows [][]string) (string, error)
}

// Service exports a user's stored contents through a configured backend,
// recording progress as an export task.
type Service struct {
	repo    storage.Repository
	tracker *task.Tracker
	writers map[models.ExportFormat]Writer
	log     *logger.Logger
}

// NewService creates an export service with the given backends
func NewService(repo storage.Repository, tracker *task.Tracker, log *logger.Logger, writers ...Writer) *Service {
	m := make(map[models.ExportFormat]Writer, len(writers))
	for _, w := range writers {
		m[w.Format()] = w
	}
	return &Service{
		repo:    repo,
		tracker: tracker,
		writers: m,
		log:     log.WithComponent("export"),
	}
}

// Export writes all of a user's contents to the backend for the format.
// The run is tracked as an export task with the usual lifecycle.
func (s *Service) Export(ctx context.Context, userID uuid.UUID, format models.ExportFormat, destination string) (*models.ExportTask, error) {
	writer, ok := s.writers[format]
	if !ok {
		return nil, fmt.Errorf("no export backend configured for format %q", format)
	}
	user, err := s.repo.GetTrackedUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	t, err := s.tracker.CreateExportTask(ctx, userID, format, destination)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.MarkExportRunning(ctx, t.ID); err != nil {
		return nil, err
	}

	rows, err := s.buildRows(ctx, user)
	if err != nil {
		s.failExport(ctx, t.ID, err)
		return t, err
	}

	dest, err := writer.Write(ctx, destination, rows)
	if err != nil {
		s.failExport(ctx, t.ID, err)
		return t, err
	}

	exported := len(rows) - 1 // minus header
	if err := s.tracker.MarkExportSucceeded(ctx, t.ID, exported, dest); err != nil {
		return t, err
	}

	s.log.Info().
		Str("username", user.Username).
		Str("format", string(format)).
		Str("destination", dest).
		Int("exported", exported).
		Msg("Export completed")
	return s.tracker.GetExport(ctx, t.ID)
}

func (s *Service) failExport(ctx context.Context, id uuid.UUID, cause error) {
	if err := s.tracker.MarkExportFailed(ctx, id, cause.Error()); err != nil {
		s.log.Error().Err(err).Str("task_id", id.String()).Msg("Failed to record export failure")
	}
}

// buildRows projects the user's contents into the shared column layout,
// header first, newest content first.
func (s *Service) buildRows(ctx context.Context, user *models.TrackedUser) ([][]string, error) {
	plat, err := s.repo.GetPlatformByID(ctx, user.PlatformID)
	if err != nil {
		return nil, err
	}

	filter := storage.DefaultContentFilter()
	filter.UserID = &user.ID
	filter.Limit = 0 // export everything
	contents, err := s.repo.ListContents(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(contents)+1)
	rows = append(rows, Columns)
	for _, c := range contents {
		rows = append(rows, []string{
			c.ContentID,
			plat.Type,
			user.Username,
			c.Title,
			preview(c.Body, 200),
			c.URL,
			string(c.ContentType),
			formatTime(c.PublishedAt),
			c.CreatedAt.Format(time.RFC3339),
		})
	}
	return rows, nil
}

func preview(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
