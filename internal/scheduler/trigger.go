package scheduler

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/content-aggregator/internal/fetch"
	"github.com/content-aggregator/internal/models"
	"github.com/content-aggregator/internal/storage"
	"github.com/content-aggregator/pkg/logger"
)

// TickSummary reports what one scheduler tick did
type TickSummary struct {
	Eligible  int
	Submitted int
	Skipped   int
	Failed    int
}

// Trigger fans scheduled fetches out over the active user set. The global
// schedule config gates the whole tick; a per-user config overrides it for
// that user.
type Trigger struct {
	repo         storage.Repository
	orchestrator *fetch.Orchestrator
	log          *logger.Logger
}

// NewTrigger creates a scheduler trigger
func NewTrigger(repo storage.Repository, orchestrator *fetch.Orchestrator, log *logger.Logger) *Trigger {
	return &Trigger{
		repo:         repo,
		orchestrator: orchestrator,
		log:          log.WithComponent("scheduler"),
	}
}

// Tick runs one scheduling pass. Missing or disabled global config makes the
// tick a no-op; per-user failures are counted, never fatal.
func (t *Trigger) Tick(ctx context.Context) (*TickSummary, error) {
	summary := &TickSummary{}

	global, err := t.repo.GetGlobalSchedule(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		t.log.Warn().Msg("No global schedule config, skipping tick")
		return summary, nil
	case err != nil:
		return summary, err
	case !global.IsEnabled:
		t.log.Debug().Msg("Global schedule disabled, skipping tick")
		return summary, nil
	}

	users, err := t.repo.ListTrackedUsers(ctx, storage.UserFilter{ActiveOnly: true})
	if err != nil {
		return summary, err
	}

	for _, user := range users {
		enabled, err := t.userEnabled(ctx, user.ID)
		if err != nil {
			summary.Failed++
			t.log.Error().Err(err).
				Str("user_id", user.ID.String()).
				Msg("Failed to resolve user schedule")
			continue
		}
		if !enabled {
			continue
		}
		summary.Eligible++

		_, err = t.orchestrator.FetchAsync(ctx, user.ID, models.TaskTypeScheduled, nil, nil, "")
		switch {
		case err == nil:
			summary.Submitted++
		case errors.Is(err, fetch.ErrFetchInProgress):
			summary.Skipped++
			t.log.Debug().
				Str("username", user.Username).
				Msg("Fetch already in flight, skipping user")
		default:
			summary.Failed++
			t.log.Error().Err(err).
				Str("username", user.Username).
				Msg("Failed to submit scheduled fetch")
		}
	}

	t.log.Info().
		Int("eligible", summary.Eligible).
		Int("submitted", summary.Submitted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Scheduler tick completed")
	return summary, nil
}

// userEnabled resolves the per-user schedule override; absent means inherit
func (t *Trigger) userEnabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	cfg, err := t.repo.GetUserSchedule(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return cfg.IsEnabled, nil
}

// SetGlobalEnabled creates or updates the global schedule gate
func (t *Trigger) SetGlobalEnabled(ctx context.Context, enabled bool, cron string) error {
	cfg, err := t.repo.GetGlobalSchedule(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		cfg = &models.ScheduleConfig{Scope: models.ScheduleScopeGlobal}
	} else if err != nil {
		return err
	}
	cfg.IsEnabled = enabled
	if cron != "" {
		cfg.Cron = cron
	}
	return t.repo.SaveSchedule(ctx, cfg)
}

// SetUserEnabled creates or updates a per-user schedule override
func (t *Trigger) SetUserEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	cfg, err := t.repo.GetUserSchedule(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		cfg = &models.ScheduleConfig{Scope: models.ScheduleScopeUser, UserID: &userID}
	} else if err != nil {
		return err
	}
	cfg.IsEnabled = enabled
	return t.repo.SaveSchedule(ctx, cfg)
}
