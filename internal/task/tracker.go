package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/pkg/logger"
)

// ErrTerminalState is returned when a transition is attempted on a task
// that already reached succeeded/failed
var ErrTerminalState = errors.New("task is already in a terminal state")

// Tracker records the lifecycle of fetch and export tasks. Transitions are
// strictly pending -> running -> {succeeded, failed}; anything else is
// rejected.
type Tracker struct {
	repo storage.Repository
	log  *logger.Logger
}

// NewTracker creates a task tracker backed by the repository
func NewTracker(repo storage.Repository, log *logger.Logger) *Tracker {
	return &Tracker{
		repo: repo,
		log:  log.WithComponent("task"),
	}
}

// CreateFetchTask records a new pending fetch task for a user. A non-empty
// cursor resumes an interrupted pagination instead of starting from the top.
func (t *Tracker) CreateFetchTask(ctx context.Context, userID uuid.UUID, taskType models.TaskType, start, end *time.Time, cursor string) (*models.FetchTask, error) {
	task := &models.FetchTask{
		UserID:    userID,
		TaskType:  taskType,
		StartTime: start,
		EndTime:   end,
		Cursor:    cursor,
		Status:    models.TaskStatusPending,
	}
	if err := t.repo.CreateFetchTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create fetch task: %w", err)
	}
	return task, nil
}

// Get returns a fetch task by ID
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*models.FetchTask, error) {
	return t.repo.GetFetchTaskByID(ctx, id)
}

// ListByUser returns a user's fetch tasks, newest first
func (t *Tracker) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.FetchTask, error) {
	filter := storage.DefaultTaskFilter()
	filter.UserID = &userID
	if limit > 0 {
		filter.Limit = limit
	}
	filter.Offset = offset
	return t.repo.ListFetchTasks(ctx, filter)
}

// MarkRunning transitions a pending task to running
func (t *Tracker) MarkRunning(ctx context.Context, id uuid.UUID) error {
	task, err := t.repo.GetFetchTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(task.Status, models.TaskStatusRunning); err != nil {
		return err
	}
	now := time.Now()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	return t.repo.UpdateFetchTask(ctx, task)
}

// MarkSucceeded transitions a running task to succeeded with its counters
func (t *Tracker) MarkSucceeded(ctx context.Context, id uuid.UUID, fetched, newCount, duplicates int) error {
	task, err := t.repo.GetFetchTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(task.Status, models.TaskStatusSucceeded); err != nil {
		return err
	}
	now := time.Now()
	task.Status = models.TaskStatusSucceeded
	task.FetchedCount = fetched
	task.NewCount = newCount
	task.DuplicateCount = duplicates
	task.CompletedAt = &now
	return t.repo.UpdateFetchTask(ctx, task)
}

// MarkFailed transitions a pending/running task to failed with error detail
func (t *Tracker) MarkFailed(ctx context.Context, id uuid.UUID, kind, message string) error {
	task, err := t.repo.GetFetchTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(task.Status, models.TaskStatusFailed); err != nil {
		return err
	}
	now := time.Now()
	task.Status = models.TaskStatusFailed
	task.ErrorKind = kind
	task.ErrorMessage = message
	task.CompletedAt = &now
	return t.repo.UpdateFetchTask(ctx, task)
}

// UpdateWindow records the effective window resolved by the orchestrator
func (t *Tracker) UpdateWindow(ctx context.Context, id uuid.UUID, start, end *time.Time) error {
	task, err := t.repo.GetFetchTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return ErrTerminalState
	}
	task.StartTime = start
	task.EndTime = end
	return t.repo.UpdateFetchTask(ctx, task)
}

// CreateExportTask records a new pending export task for a user
func (t *Tracker) CreateExportTask(ctx context.Context, userID uuid.UUID, format models.ExportFormat, destination string) (*models.ExportTask, error) {
	task := &models.ExportTask{
		UserID:      userID,
		Format:      format,
		Destination: destination,
		Status:      models.TaskStatusPending,
	}
	if err := t.repo.CreateExportTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create export task: %w", err)
	}
	return task, nil
}

// GetExport returns an export task by ID
func (t *Tracker) GetExport(ctx context.Context, id uuid.UUID) (*models.ExportTask, error) {
	return t.repo.GetExportTaskByID(ctx, id)
}

// MarkExportRunning transitions a pending export task to running
func (t *Tracker) MarkExportRunning(ctx context.Context, id uuid.UUID) error {
	task, err := t.repo.GetExportTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(task.Status, models.TaskStatusRunning); err != nil {
		return err
	}
	now := time.Now()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	return t.repo.UpdateExportTask(ctx, task)
}

// MarkExportSucceeded completes an export task with the exported row count
func (t *Tracker) MarkExportSucceeded(ctx context.Context, id uuid.UUID, exported int, destination string) error {
	task, err := t.repo.GetExportTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(task.Status, models.TaskStatusSucceeded); err != nil {
		return err
	}
	now := time.Now()
	task.Status = models.TaskStatusSucceeded
	task.ExportedCount = exported
	if destination != "" {
		task.Destination = destination
	}
	task.CompletedAt = &now
	return t.repo.UpdateExportTask(ctx, task)
}

// MarkExportFailed fails an export task with error detail
func (t *Tracker) MarkExportFailed(ctx context.Context, id uuid.UUID, message string) error {
	task, err := t.repo.GetExportTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(task.Status, models.TaskStatusFailed); err != nil {
		return err
	}
	now := time.Now()
	task.Status = models.TaskStatusFailed
	task.ErrorMessage = message
	task.CompletedAt = &now
	return t.repo.UpdateExportTask(ctx, task)
}

// checkTransition enforces the task state machine
func checkTransition(from, to models.TaskStatus) error {
	if from.IsTerminal() {
		return ErrTerminalState
	}
	switch to {
	case models.TaskStatusRunning:
		if from != models.TaskStatusPending {
			return fmt.Errorf("invalid transition %s -> %s", from, to)
		}
	case models.TaskStatusSucceeded:
		if from != models.TaskStatusRunning {
			return fmt.Errorf("invalid transition %s -> %s", from, to)
		}
	case models.TaskStatusFailed:
		// pending tasks may fail before they ever start (e.g. submit error)
	default:
		return fmt.Errorf("invalid target status %s", to)
	}
	return nil
}
