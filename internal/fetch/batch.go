package fetch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/content-aggregator/internal/models"
)

// BatchResult summarizes a batch fetch over multiple users
type BatchResult struct {
	Submitted int
	Skipped   int
	Failed    int
}

// FetchBatch runs a synchronous fetch for each user with bounded parallelism.
// Users with a fetch already in flight are skipped; individual failures are
// counted without aborting the batch.
func (o *Orchestrator) FetchBatch(ctx context.Context, userIDs []uuid.UUID, taskType models.TaskType) (*BatchResult, error) {
	res := &BatchResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			_, err := o.FetchSync(gctx, userID, taskType, nil, nil, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Submitted++
			case errors.Is(err, ErrFetchInProgress):
				res.Skipped++
			default:
				res.Failed++
				o.log.Error().Err(err).
					Str("user_id", userID.String()).
					Msg("Batch fetch failed for user")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
