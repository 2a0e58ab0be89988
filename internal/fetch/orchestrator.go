package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/platform"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/internal/task"
	"github.com/content-aggregator/pkg/logger"
)

var (
	// ErrFetchInProgress is returned when a fetch is already running for the user
	ErrFetchInProgress = errors.New("fetch already in progress for this user")
	// ErrBudgetExceeded is returned when a run hits its page budget before the
	// platform stops reporting more pages
	ErrBudgetExceeded = errors.New("fetch page budget exceeded")
)

// Options controls fetch run behavior
type Options struct {
	PageSize      int
	MaxPages      int
	RunTimeout    time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	Workers       int
}

// DefaultOptions returns the options used when config leaves them unset
func DefaultOptions() Options {
	return Options{
		PageSize:      50,
		MaxPages:      50,
		RunTimeout:    10 * time.Minute,
		RetryAttempts: 3,
		RetryBackoff:  2 * time.Second,
		Workers:       4,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PageSize <= 0 {
		o.PageSize = def.PageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = def.MaxPages
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = def.RunTimeout
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = def.RetryAttempts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	return o
}

// Result summarizes a completed fetch run
type Result struct {
	TaskID     uuid.UUID
	Fetched    int
	New        int
	Duplicates int
	Pages      int
}

// Orchestrator drives content fetches: it resolves the adapter, walks the
// platform's pages, persists new items, and records the task lifecycle. At
// most one fetch runs per user at a time.
type Orchestrator struct {
	repo     storage.Repository
	registry *platform.Registry
	tracker  *task.Tracker
	pool     *Pool
	opts     Options
	log      *logger.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewOrchestrator creates a fetch orchestrator
func NewOrchestrator(repo storage.Repository, registry *platform.Registry, tracker *task.Tracker, opts Options, log *logger.Logger) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		repo:     repo,
		registry: registry,
		tracker:  tracker,
		pool:     NewPool(opts.Workers, log),
		opts:     opts,
		log:      log.WithComponent("fetch"),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Busy reports whether a fetch is currently running for the user
func (o *Orchestrator) Busy(userID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[userID]
	return ok
}

func (o *Orchestrator) acquire(userID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[userID]; ok {
		return false
	}
	o.inflight[userID] = struct{}{}
	return true
}

func (o *Orchestrator) release(userID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, userID)
}

// FetchAsync creates a pending task for the user and schedules it on the
// worker pool. The returned task can be polled for completion. A non-empty
// cursor resumes pagination from a prior run's last position.
func (o *Orchestrator) FetchAsync(ctx context.Context, userID uuid.UUID, taskType models.TaskType, start, end *time.Time, cursor string) (*models.FetchTask, error) {
	user, err := o.repo.GetTrackedUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %s is not active", user.Username)
	}
	if o.Busy(userID) {
		return nil, ErrFetchInProgress
	}

	t, err := o.tracker.CreateFetchTask(ctx, userID, taskType, start, end, cursor)
	if err != nil {
		return nil, err
	}

	taskID := t.ID
	if !o.pool.Submit(func() {
		if _, err := o.Run(context.Background(), taskID); err != nil {
			o.log.Error().Err(err).
				Str("task_id", taskID.String()).
				Msg("Fetch run failed")
		}
	}) {
		if ferr := o.tracker.MarkFailed(ctx, taskID, string(platform.ErrKindNetwork), "worker pool is shut down"); ferr != nil {
			o.log.Error().Err(ferr).Str("task_id", taskID.String()).Msg("Failed to fail task")
		}
		return nil, errors.New("fetch pool is shut down")
	}
	return t, nil
}

// FetchSync creates a task for the user and runs it in the caller's goroutine
func (o *Orchestrator) FetchSync(ctx context.Context, userID uuid.UUID, taskType models.TaskType, start, end *time.Time, cursor string) (*Result, error) {
	user, err := o.repo.GetTrackedUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %s is not active", user.Username)
	}
	if o.Busy(userID) {
		return nil, ErrFetchInProgress
	}
	t, err := o.tracker.CreateFetchTask(ctx, userID, taskType, start, end, cursor)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, t.ID)
}

// Shutdown waits for in-flight fetches to complete
func (o *Orchestrator) Shutdown() {
	o.pool.Shutdown()
}

// Run executes a previously created fetch task to completion. It transitions
// the task to running, walks pages until the platform reports no more (or a
// budget trips), and records the terminal state with counters.
func (o *Orchestrator) Run(ctx context.Context, taskID uuid.UUID) (*Result, error) {
	t, err := o.tracker.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, task.ErrTerminalState
	}

	if !o.acquire(t.UserID) {
		if err := o.tracker.MarkFailed(ctx, taskID, string(platform.ErrKindUnsupported), ErrFetchInProgress.Error()); err != nil {
			o.log.Error().Err(err).Str("task_id", taskID.String()).Msg("Failed to fail task")
		}
		return nil, ErrFetchInProgress
	}
	defer o.release(t.UserID)

	user, err := o.repo.GetTrackedUserByID(ctx, t.UserID)
	if err != nil {
		o.fail(ctx, taskID, string(platform.ErrKindNotFound), err.Error())
		return nil, err
	}
	plat, err := o.repo.GetPlatformByID(ctx, user.PlatformID)
	if err != nil {
		o.fail(ctx, taskID, string(platform.ErrKindNotFound), err.Error())
		return nil, err
	}
	adapter, err := o.registry.Resolve(plat.Type)
	if err != nil {
		o.fail(ctx, taskID, string(platform.ErrKindUnsupported), err.Error())
		return nil, err
	}

	// Resolve the effective window: the watermark opens it, now closes it,
	// explicit bounds on the task win.
	start := t.StartTime
	if start == nil {
		start = user.LastFetchedAt
	}
	end := t.EndTime
	if end == nil {
		now := time.Now()
		end = &now
	}
	if err := o.tracker.UpdateWindow(ctx, taskID, start, end); err != nil {
		return nil, err
	}
	if err := o.tracker.MarkRunning(ctx, taskID); err != nil {
		return nil, err
	}

	log := o.log.WithUserID(user.ID).WithTaskID(taskID)
	log.Info().
		Str("platform", plat.Type).
		Str("platform_user_id", user.UserID).
		Msg("Starting fetch")

	runCtx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	res, runErr := o.walkPages(runCtx, adapter, plat, user, start, end, t.Cursor, log)
	res.TaskID = taskID

	if runErr != nil {
		kind := string(platform.KindOf(runErr))
		msg := runErr.Error()
		switch {
		case errors.Is(runErr, context.DeadlineExceeded):
			kind = string(platform.ErrKindNetwork)
			msg = fmt.Sprintf("run timeout of %s exceeded", o.opts.RunTimeout)
		case errors.Is(runErr, ErrBudgetExceeded):
			kind = string(platform.ErrKindUnsupported)
			msg = fmt.Sprintf("page budget of %d exceeded", o.opts.MaxPages)
		}
		o.fail(ctx, taskID, kind, msg)
		log.Error().Err(runErr).
			Int("fetched", res.Fetched).
			Int("new", res.New).
			Msg("Fetch failed")
		return res, runErr
	}

	if err := o.tracker.MarkSucceeded(ctx, taskID, res.Fetched, res.New, res.Duplicates); err != nil {
		return res, err
	}
	// Advance the watermark only after a fully successful run, and only
	// forward: a stale end never moves it back.
	if err := o.repo.AdvanceWatermark(ctx, user.ID, *end); err != nil {
		log.Error().Err(err).Msg("Failed to advance watermark")
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("new", res.New).
		Int("duplicates", res.Duplicates).
		Int("pages", res.Pages).
		Msg("Fetch completed")
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, taskID uuid.UUID, kind, msg string) {
	if err := o.tracker.MarkFailed(ctx, taskID, kind, msg); err != nil {
		o.log.Error().Err(err).Str("task_id", taskID.String()).Msg("Failed to record task failure")
	}
}

// walkPages pages through the platform until it reports no more content,
// the window is exhausted, or a budget trips. Every page failure is retried
// for retryable error kinds before giving up.
func (o *Orchestrator) walkPages(ctx context.Context, adapter platform.Adapter, plat *models.Platform, user *models.TrackedUser, start, end *time.Time, cursor string, log *logger.Logger) (*Result, error) {
	res := &Result{}

	for {
		if res.Pages >= o.opts.MaxPages {
			return res, ErrBudgetExceeded
		}
		query := platform.ContentQuery{
			StartTime: start,
			EndTime:   end,
			Cursor:    cursor,
			Limit:     o.opts.PageSize,
		}

		page, err := o.fetchPage(ctx, adapter, user.UserID, map[string]interface{}(plat.Config), query)
		if err != nil {
			return res, err
		}
		res.Pages++

		var pageOldest *time.Time
		for _, item := range page.Contents {
			if item.PublishedAt != nil && (pageOldest == nil || item.PublishedAt.Before(*pageOldest)) {
				pageOldest = item.PublishedAt
			}
			if !platform.InTimeRange(item.PublishedAt, start, end) {
				continue
			}
			res.Fetched++
			if err := o.saveContent(ctx, plat, user, item, res); err != nil {
				return res, err
			}
		}

		log.Debug().
			Int("page", res.Pages).
			Int("items", len(page.Contents)).
			Bool("has_more", page.HasMore).
			Msg("Fetched page")

		if !page.HasMore || page.NextCursor == "" {
			return res, nil
		}
		// adapters list newest first, so once a page dips below the window
		// start everything further down is already ingested
		if start != nil && pageOldest != nil && pageOldest.Before(*start) {
			return res, nil
		}
		cursor = page.NextCursor
	}
}

// fetchPage retrieves one page with retry on transient platform errors
func (o *Orchestrator) fetchPage(ctx context.Context, adapter platform.Adapter, userID string, config map[string]interface{}, query platform.ContentQuery) (*platform.FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.RetryAttempts; attempt++ {
		page, err := adapter.GetUserContents(ctx, userID, config, query)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !platform.IsRetryable(err) {
			return nil, err
		}
		o.log.Warn().Err(err).
			Int("attempt", attempt).
			Msg("Page fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.opts.RetryBackoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", o.opts.RetryAttempts, lastErr)
}

// saveContent persists one item; the unique hash index arbitrates duplicates
func (o *Orchestrator) saveContent(ctx context.Context, plat *models.Platform, user *models.TrackedUser, item *platform.PlatformContent, res *Result) error {
	content := &models.Content{
		PlatformID:  plat.ID,
		UserID:      user.ID,
		ContentID:   item.ContentID,
		Title:       item.Title,
		Body:        item.Body,
		URL:         item.URL,
		ContentType: models.ContentType(item.ContentType),
		MediaURLs:   models.StringSlice(item.MediaURLs),
		Metadata:    models.JSON(item.Metadata),
		PublishedAt: item.PublishedAt,
		Hash:        platform.Fingerprint(plat.ID.String(), item),
	}

	err := o.repo.InsertContent(ctx, content)
	switch {
	case err == nil:
		res.New++
	case errors.Is(err, storage.ErrDuplicateContent):
		res.Duplicates++
	default:
		return fmt.Errorf("failed to save content %s: %w", item.ContentID, err)
	}
	return nil
}
