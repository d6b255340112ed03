package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/metrics"
	queuememory "github.com/mediawatch/headlinewatch/internal/queue/memory"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type recordingHandlers struct {
	mu         sync.Mutex
	frontpages []watch.FrontpageCrawlJob
	articles   []watch.ArticleFetchJob
	notifies   []watch.NotifyChangeJob
	err        error
}

func (h *recordingHandlers) Handle(_ context.Context, job any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch j := job.(type) {
	case watch.FrontpageCrawlJob:
		h.frontpages = append(h.frontpages, j)
	case watch.ArticleFetchJob:
		h.articles = append(h.articles, j)
	case watch.NotifyChangeJob:
		h.notifies = append(h.notifies, j)
	}
	return h.err
}

type frontpageAdapter struct{ h *recordingHandlers }

func (a frontpageAdapter) Handle(ctx context.Context, job watch.FrontpageCrawlJob) error {
	return a.h.Handle(ctx, job)
}

type articleAdapter struct{ h *recordingHandlers }

func (a articleAdapter) Handle(ctx context.Context, job watch.ArticleFetchJob) error {
	return a.h.Handle(ctx, job)
}

type notifyAdapter struct{ h *recordingHandlers }

func (a notifyAdapter) Handle(ctx context.Context, job watch.NotifyChangeJob) error {
	return a.h.Handle(ctx, job)
}

func newDispatcher(h *recordingHandlers) *Dispatcher {
	return NewDispatcher(frontpageAdapter{h}, articleAdapter{h}, notifyAdapter{h}, zap.NewNop())
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	t.Parallel()

	h := &recordingHandlers{}
	d := newDispatcher(h)
	ctx := context.Background()

	require.NoError(t, d.Handle(ctx, watch.NewFrontpageCrawlJob(1)))
	require.NoError(t, d.Handle(ctx, watch.NewArticleFetchJob(1, "https://news.example/story/1", true, false)))
	require.NoError(t, d.Handle(ctx, watch.NewNotifyChangeJob(1, "https://news.example/story/1", "old", "new")))

	require.Len(t, h.frontpages, 1)
	require.Equal(t, int64(1), h.frontpages[0].SiteID)
	require.Len(t, h.articles, 1)
	require.True(t, h.articles[0].PruneIfUnchanged)
	require.Len(t, h.notifies, 1)
	require.Equal(t, "new", h.notifies[0].NewTitle)
}

func TestDispatcher_RejectsMalformedEnvelopes(t *testing.T) {
	t.Parallel()

	d := newDispatcher(&recordingHandlers{})
	ctx := context.Background()

	require.Error(t, d.Handle(ctx, watch.Job{ID: "x", Kind: watch.KindArticleFetch}))
	require.Error(t, d.Handle(ctx, watch.Job{ID: "x", Kind: watch.KindFrontpageCrawl}))
	require.Error(t, d.Handle(ctx, watch.Job{ID: "x", Kind: watch.KindNotifyChange}))
	require.Error(t, d.Handle(ctx, watch.Job{ID: "x", Kind: "bogus"}))
}

func TestInstrumented_PropagatesHandlerError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("handler exploded")
	handler := Instrumented(watch.LaneFast, watch.HandlerFunc(func(context.Context, watch.Job) error {
		return wantErr
	}), zap.NewNop())

	err := handler.Handle(context.Background(), watch.NewFrontpageCrawlJob(1))
	require.ErrorIs(t, err, wantErr)
}

func TestBurst_DrainsSpawnedJobs(t *testing.T) {
	t.Parallel()

	queue := queuememory.NewQueue(16)
	ctx := context.Background()

	// The fast-lane job spawns a notify-lane job, mimicking an article
	// fetch that detects a change.
	h := &recordingHandlers{}
	handler := watch.HandlerFunc(func(ctx context.Context, job watch.Job) error {
		if job.Kind == watch.KindArticleFetch {
			if err := queue.Enqueue(ctx, watch.LaneNotify, watch.NewNotifyChangeJob(1, job.ArticleFetch.URL, "old", "new")); err != nil {
				return err
			}
		}
		return newDispatcher(h).Handle(ctx, job)
	})

	require.NoError(t, queue.Enqueue(ctx, watch.LaneFast, watch.NewArticleFetchJob(1, "https://news.example/story/1", false, false)))
	require.NoError(t, Burst(ctx, queue, handler, zap.NewNop()))

	require.Len(t, h.articles, 1)
	require.Len(t, h.notifies, 1)
	_, ok := queue.TryDequeue(watch.LaneNotify)
	require.False(t, ok)
}

func TestBurst_FanOutBeyondQueueCapacity(t *testing.T) {
	t.Parallel()

	// A frontpage crawl schedules more article jobs than the queue's
	// capacity hint while the burst runs single-threaded. The enqueues
	// must not block waiting for a consumer that cannot run.
	queue := queuememory.NewQueue(2)
	ctx := context.Background()

	h := &recordingHandlers{}
	handler := watch.HandlerFunc(func(ctx context.Context, job watch.Job) error {
		if job.Kind == watch.KindFrontpageCrawl {
			for i := 1; i <= 3; i++ {
				url := "https://news.example/story/" + string(rune('0'+i))
				if err := queue.Enqueue(ctx, watch.LaneFast, watch.NewArticleFetchJob(job.FrontpageCrawl.SiteID, url, false, false)); err != nil {
					return err
				}
			}
		}
		return newDispatcher(h).Handle(ctx, job)
	})

	require.NoError(t, queue.Enqueue(ctx, watch.LaneFast, watch.NewFrontpageCrawlJob(1)))

	done := make(chan error, 1)
	go func() {
		done <- Burst(ctx, queue, handler, zap.NewNop())
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("burst did not drain the fan-out")
	}

	require.Len(t, h.frontpages, 1)
	require.Len(t, h.articles, 3)
}

func TestBurst_EmptyQueueReturnsImmediately(t *testing.T) {
	t.Parallel()

	queue := queuememory.NewQueue(4)
	require.NoError(t, Burst(context.Background(), queue, watch.HandlerFunc(func(context.Context, watch.Job) error {
		return nil
	}), zap.NewNop()))
}

func TestPool_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	queue := queuememory.NewQueue(4)
	handled := make(chan watch.Job, 4)
	pool := NewPool(queue, watch.HandlerFunc(func(_ context.Context, job watch.Job) error {
		handled <- job
		return nil
	}), 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.NoError(t, queue.Enqueue(ctx, watch.LaneFast, watch.NewFrontpageCrawlJob(1)))
	select {
	case job := <-handled:
		require.Equal(t, watch.KindFrontpageCrawl, job.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not handled")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
