package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Drainer is a queue that can be polled without blocking. The in-memory
// queue implements it; the burst runner uses it to detect an empty cycle.
type Drainer interface {
	TryDequeue(lane watch.Lane) (watch.Job, bool)
}

// Burst drains the queue until every lane is empty, then returns. Used by
// the one-shot cycle command: the orchestrator seeds the fast lane, and the
// jobs it spawns (article fetches, notifications) are drained in the same
// run.
//
// Lanes are visited in order, fast before slow before notify, so every job
// a crawl spawns is processed before the burst can observe an empty pass.
func Burst(ctx context.Context, queue Drainer, handler watch.Handler, logger *zap.Logger) error {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		drained := true
		for _, lane := range watch.Lanes() {
			instrumented := Instrumented(lane, handler, logger)
			for {
				job, ok := queue.TryDequeue(lane)
				if !ok {
					break
				}
				drained = false
				processed++
				// Handler failures are logged by the instrumented wrapper;
				// the burst keeps draining like a lane consumer would.
				_ = instrumented.Handle(ctx, job)
			}
		}
		if drained {
			logger.Info("burst drained", zap.Int("jobs", processed))
			return nil
		}
	}
}
