// Package sweep schedules slow-lane re-checks for revisions that frontpage
// crawls have stopped refreshing.
package sweep

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// DefaultStaleness is how long a revision may go unfetched before the
// sweeper re-checks it.
const DefaultStaleness = 7 * 24 * time.Hour

// Sweeper finds stale revisions and schedules prune-enabled re-checks.
type Sweeper struct {
	revisions watch.RevisionStore
	queue     watch.Queue
	clock     watch.Clock
	staleness time.Duration
	logger    *zap.Logger
}

// NewSweeper constructs a sweeper. A non-positive staleness falls back to
// DefaultStaleness.
func NewSweeper(revisions watch.RevisionStore, queue watch.Queue, clock watch.Clock, staleness time.Duration, logger *zap.Logger) *Sweeper {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Sweeper{
		revisions: revisions,
		queue:     queue,
		clock:     clock,
		staleness: staleness,
		logger:    logger,
	}
}

// Sweep schedules one slow-lane re-check per stale revision. The order is
// shuffled so repeated partial sweeps do not hammer the same site first.
// Re-checks carry both prune flags: an unchanged or mismatched article is
// dropped instead of re-scheduled forever.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.staleness)
	stale, err := s.revisions.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale revisions: %w", err)
	}

	rand.Shuffle(len(stale), func(i, j int) {
		stale[i], stale[j] = stale[j], stale[i]
	})

	for _, rev := range stale {
		job := watch.NewArticleFetchJob(rev.SiteID, rev.URL, true, true)
		if err := s.queue.Enqueue(ctx, watch.LaneSlow, job); err != nil {
			return fmt.Errorf("schedule re-check for %s: %w", rev.URL, err)
		}
	}

	metrics.SweepScheduled(len(stale))
	if len(stale) > 0 {
		s.logger.Info("scheduled stale revision re-checks",
			zap.Int("count", len(stale)),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
