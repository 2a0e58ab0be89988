package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/content-aggregator/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateContent is returned by InsertContent when the content
	// fingerprint already exists; the store's unique index is the final
	// arbiter for deduplication
	ErrDuplicateContent = errors.New("content with this hash already exists")

	// ErrDuplicateUser is returned when a platform user is already tracked
	ErrDuplicateUser = errors.New("user is already tracked")
)

// Repository defines the interface for data persistence
type Repository interface {
	// Platform operations
	CreatePlatform(ctx context.Context, p *models.Platform) error
	GetPlatformByID(ctx context.Context, id uuid.UUID) (*models.Platform, error)
	GetPlatformByName(ctx context.Context, name string) (*models.Platform, error)
	ListPlatforms(ctx context.Context) ([]*models.Platform, error)
	UpdatePlatform(ctx context.Context, p *models.Platform) error

	// Tracked user operations
	CreateTrackedUser(ctx context.Context, u *models.TrackedUser) error
	GetTrackedUserByID(ctx context.Context, id uuid.UUID) (*models.TrackedUser, error)
	FindTrackedUser(ctx context.Context, platformID uuid.UUID, platformUserID string) (*models.TrackedUser, error)
	ListTrackedUsers(ctx context.Context, filter UserFilter) ([]*models.TrackedUser, error)
	UpdateTrackedUser(ctx context.Context, u *models.TrackedUser) error
	DeleteTrackedUser(ctx context.Context, id uuid.UUID) error
	// AdvanceWatermark moves the user's lastFetchedAt forward to the given
	// time; it never moves it backwards (max-wins under concurrent runs)
	AdvanceWatermark(ctx context.Context, userID uuid.UUID, to time.Time) error

	// Content operations
	InsertContent(ctx context.Context, c *models.Content) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	FindByHash(ctx context.Context, hash string) (*models.Content, error)
	ListContents(ctx context.Context, filter ContentFilter) ([]*models.Content, error)
	CountContentsByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Fetch task operations
	CreateFetchTask(ctx context.Context, t *models.FetchTask) error
	GetFetchTaskByID(ctx context.Context, id uuid.UUID) (*models.FetchTask, error)
	UpdateFetchTask(ctx context.Context, t *models.FetchTask) error
	ListFetchTasks(ctx context.Context, filter TaskFilter) ([]*models.FetchTask, error)

	// Export task operations
	CreateExportTask(ctx context.Context, t *models.ExportTask) error
	GetExportTaskByID(ctx context.Context, id uuid.UUID) (*models.ExportTask, error)
	UpdateExportTask(ctx context.Context, t *models.ExportTask) error

	// Schedule config operations
	GetGlobalSchedule(ctx context.Context) (*models.ScheduleConfig, error)
	GetUserSchedule(ctx context.Context, userID uuid.UUID) (*models.ScheduleConfig, error)
	SaveSchedule(ctx context.Context, c *models.ScheduleConfig) error

	// Maintenance
	Migrate() error
	Close() error
}

// UserFilter defines filtering options for tracked users
type UserFilter struct {
	PlatformID *uuid.UUID
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ContentFilter defines filtering options for contents
type ContentFilter struct {
	UserID     *uuid.UUID
	PlatformID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	OrderDesc  bool
}

// TaskFilter defines filtering options for fetch tasks
type TaskFilter struct {
	UserID   *uuid.UUID
	Status   *models.TaskStatus
	TaskType *models.TaskType
	Limit    int
	Offset   int
}

// DefaultContentFilter returns a filter with sensible defaults
func DefaultContentFilter() ContentFilter {
	return ContentFilter{
		Limit:     50,
		OrderDesc: true,
	}
}

// DefaultTaskFilter returns a filter with sensible defaults (newest first)
func DefaultTaskFilter() TaskFilter {
	return TaskFilter{
		Limit: 50,
	}
}
