package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" && !strings.HasPrefix(dsn, ":memory:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Platform{},
		&models.TrackedUser{},
		&models.Content{},
		&models.FetchTask{},
		&models.ExportTask{},
		&models.ScheduleConfig{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Platform operations

func (r *Repository) CreatePlatform(ctx context.Context, p *models.Platform) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) GetPlatformByID(ctx context.Context, id uuid.UUID) (*models.Platform, error) {
	var p models.Platform
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

func (r *Repository) GetPlatformByName(ctx context.Context, name string) (*models.Platform, error) {
	var p models.Platform
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &p, nil
}

func (r *Repository) ListPlatforms(ctx context.Context) ([]*models.Platform, error) {
	var platforms []*models.Platform
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&platforms).Error; err != nil {
		return nil, err
	}
	return platforms, nil
}

func (r *Repository) UpdatePlatform(ctx context.Context, p *models.Platform) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Tracked user operations

func (r *Repository) CreateTrackedUser(ctx context.Context, u *models.TrackedUser) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if err != nil && isUniqueViolation(err) {
		return storage.ErrDuplicateUser
	}
	return err
}

func (r *Repository) GetTrackedUserByID(ctx context.Context, id uuid.UUID) (*models.TrackedUser, error) {
	var u models.TrackedUser
	if err := r.db.WithContext(ctx).Preload("Platform").First(&u, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &u, nil
}

func (r *Repository) FindTrackedUser(ctx context.Context, platformID uuid.UUID, platformUserID string) (*models.TrackedUser, error) {
	var u models.TrackedUser
	err := r.db.WithContext(ctx).
		Where("platform_id = ? AND user_id = ?", platformID, platformUserID).
		First(&u).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &u, nil
}

func (r *Repository) ListTrackedUsers(ctx context.Context, filter storage.UserFilter) ([]*models.TrackedUser, error) {
	var users []*models.TrackedUser
	query := r.db.WithContext(ctx).Model(&models.TrackedUser{}).Preload("Platform")

	if filter.PlatformID != nil {
		query = query.Where("platform_id = ?", *filter.PlatformID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repository) UpdateTrackedUser(ctx context.Context, u *models.TrackedUser) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *Repository) DeleteTrackedUser(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.TrackedUser{}, "id = ?", id).Error
}

// AdvanceWatermark moves lastFetchedAt forward only; a stale writer can
// never roll the watermark back
func (r *Repository) AdvanceWatermark(ctx context.Context, userID uuid.UUID, to time.Time) error {
	return r.db.WithContext(ctx).Model(&models.TrackedUser{}).
		Where("id = ? AND (last_fetched_at IS NULL OR last_fetched_at < ?)", userID, to).
		Update("last_fetched_at", to).Error
}

// Content operations

func (r *Repository) InsertContent(ctx context.Context, c *models.Content) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if err != nil && isUniqueViolation(err) {
		return storage.ErrDuplicateContent
	}
	return err
}

func (r *Repository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("hash = ?", hash).Count(&count).Error
	return count > 0, err
}

func (r *Repository) FindByHash(ctx context.Context, hash string) (*models.Content, error) {
	var c models.Content
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&c).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &c, nil
}

func (r *Repository) ListContents(ctx context.Context, filter storage.ContentFilter) ([]*models.Content, error) {
	var contents []*models.Content
	query := r.db.WithContext(ctx).Model(&models.Content{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.PlatformID != nil {
		query = query.Where("platform_id = ?", *filter.PlatformID)
	}
	if filter.From != nil {
		query = query.Where("published_at > ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("published_at <= ?", *filter.To)
	}

	if filter.OrderDesc {
		query = query.Order("published_at DESC")
	} else {
		query = query.Order("published_at ASC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

func (r *Repository) CountContentsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Content{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Fetch task operations

func (r *Repository) CreateFetchTask(ctx context.Context, t *models.FetchTask) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repository) GetFetchTaskByID(ctx context.Context, id uuid.UUID) (*models.FetchTask, error) {
	var t models.FetchTask
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &t, nil
}

func (r *Repository) UpdateFetchTask(ctx context.Context, t *models.FetchTask) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *Repository) ListFetchTasks(ctx context.Context, filter storage.TaskFilter) ([]*models.FetchTask, error) {
	var tasks []*models.FetchTask
	query := r.db.WithContext(ctx).Model(&models.FetchTask{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.TaskType != nil {
		query = query.Where("task_type = ?", *filter.TaskType)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Export task operations

func (r *Repository) CreateExportTask(ctx context.Context, t *models.ExportTask) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repository) GetExportTaskByID(ctx context.Context, id uuid.UUID) (*models.ExportTask, error) {
	var t models.ExportTask
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &t, nil
}

func (r *Repository) UpdateExportTask(ctx context.Context, t *models.ExportTask) error {
	return r.db.WithContext(ctx).Save(t).Error
}

// Schedule config operations

func (r *Repository) GetGlobalSchedule(ctx context.Context) (*models.ScheduleConfig, error) {
	var c models.ScheduleConfig
	err := r.db.WithContext(ctx).Where("scope = ?", models.ScheduleScopeGlobal).First(&c).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &c, nil
}

func (r *Repository) GetUserSchedule(ctx context.Context, userID uuid.UUID) (*models.ScheduleConfig, error) {
	var c models.ScheduleConfig
	err := r.db.WithContext(ctx).
		Where("scope = ? AND user_id = ?", models.ScheduleScopeUser, userID).
		First(&c).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &c, nil
}

func (r *Repository) SaveSchedule(ctx context.Context, c *models.ScheduleConfig) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
