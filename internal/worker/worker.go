// Package worker routes queue jobs to their handlers and runs the
// consuming goroutines.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// FrontpageHandler handles one frontpage crawl job.
type FrontpageHandler interface {
	Handle(ctx context.Context, job watch.FrontpageCrawlJob) error
}

// ArticleHandler handles one article fetch job.
type ArticleHandler interface {
	Handle(ctx context.Context, job watch.ArticleFetchJob) error
}

// NotifyHandler handles one notification job.
type NotifyHandler interface {
	Handle(ctx context.Context, job watch.NotifyChangeJob) error
}

// Dispatcher unwraps job envelopes and routes them to the typed handlers.
type Dispatcher struct {
	frontpage FrontpageHandler
	article   ArticleHandler
	notify    NotifyHandler
	logger    *zap.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(frontpage FrontpageHandler, article ArticleHandler, notify NotifyHandler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		frontpage: frontpage,
		article:   article,
		notify:    notify,
		logger:    logger,
	}
}

// Handle implements watch.Handler. Malformed envelopes fail without
// reaching a typed handler.
func (d *Dispatcher) Handle(ctx context.Context, job watch.Job) error {
	switch job.Kind {
	case watch.KindFrontpageCrawl:
		if job.FrontpageCrawl == nil {
			return fmt.Errorf("job %s: missing frontpage crawl payload", job.ID)
		}
		return d.frontpage.Handle(ctx, *job.FrontpageCrawl)
	case watch.KindArticleFetch:
		if job.ArticleFetch == nil {
			return fmt.Errorf("job %s: missing article fetch payload", job.ID)
		}
		return d.article.Handle(ctx, *job.ArticleFetch)
	case watch.KindNotifyChange:
		if job.NotifyChange == nil {
			return fmt.Errorf("job %s: missing notify payload", job.ID)
		}
		return d.notify.Handle(ctx, *job.NotifyChange)
	default:
		return fmt.Errorf("job %s: unknown kind %q", job.ID, job.Kind)
	}
}

// Instrumented wraps a handler with logging and per-job metrics for one
// lane.
func Instrumented(lane watch.Lane, handler watch.Handler, logger *zap.Logger) watch.Handler {
	return watch.HandlerFunc(func(ctx context.Context, job watch.Job) error {
		metrics.IncActiveWorkers()
		defer metrics.DecActiveWorkers()

		err := handler.Handle(ctx, job)
		status := "ok"
		if err != nil {
			status = "error"
			logger.Error("job failed",
				zap.String("lane", string(lane)),
				zap.String("kind", string(job.Kind)),
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
		metrics.ObserveJob(string(lane), string(job.Kind), status)
		return err
	})
}
