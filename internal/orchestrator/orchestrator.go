// Package orchestrator kicks off one watch cycle: a frontpage crawl per
// configured site plus a staleness sweep.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/sweep"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Orchestrator schedules the entry-point jobs of a cycle. The jobs
// themselves run on workers consuming the lanes.
type Orchestrator struct {
	sites   watch.SiteStore
	queue   watch.Queue
	sweeper *sweep.Sweeper
	logger  *zap.Logger
}

// New constructs an orchestrator.
func New(sites watch.SiteStore, queue watch.Queue, sweeper *sweep.Sweeper, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sites:   sites,
		queue:   queue,
		sweeper: sweeper,
		logger:  logger,
	}
}

// RunCycle schedules a frontpage crawl for every site and then sweeps for
// stale revisions. A failure for one site does not stop the others; all
// failures are reported together.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	sites, err := o.sites.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}

	var errs []error
	for _, site := range sites {
		if err := o.queue.Enqueue(ctx, watch.LaneFast, watch.NewFrontpageCrawlJob(site.ID)); err != nil {
			errs = append(errs, fmt.Errorf("schedule crawl for site %d (%s): %w", site.ID, site.Name, err))
		}
	}
	o.logger.Info("scheduled frontpage crawls", zap.Int("sites", len(sites)))

	if err := o.sweeper.Sweep(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
