package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Pool fans out lane consumption to worker goroutines and blocks until the
// context finishes.
type Pool struct {
	consumer watch.Consumer
	handler  watch.Handler
	perLane  int
	logger   *zap.Logger
}

// NewPool constructs a pool running perLane consumers on every lane. A
// non-positive perLane runs one.
func NewPool(consumer watch.Consumer, handler watch.Handler, perLane int, logger *zap.Logger) *Pool {
	if perLane <= 0 {
		perLane = 1
	}
	return &Pool{
		consumer: consumer,
		handler:  handler,
		perLane:  perLane,
		logger:   logger,
	}
}

// Run starts the consumers and blocks until the context finishes and every
// consumer has returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, lane := range watch.Lanes() {
		handler := Instrumented(lane, p.handler, p.logger)
		for i := 0; i < p.perLane; i++ {
			wg.Add(1)
			go func(lane watch.Lane) {
				defer wg.Done()
				if err := p.consumer.Consume(ctx, lane, handler); err != nil {
					p.logger.Error("lane consumer stopped",
						zap.String("lane", string(lane)),
						zap.Error(err),
					)
				}
			}(lane)
		}
	}
	p.logger.Info("worker pool started",
		zap.Int("per_lane", p.perLane),
		zap.Int("lanes", len(watch.Lanes())),
	)
	wg.Wait()
}
