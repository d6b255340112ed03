package orchestrator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/metrics"
	queuememory "github.com/mediawatch/headlinewatch/internal/queue/memory"
	storememory "github.com/mediawatch/headlinewatch/internal/store/memory"
	"github.com/mediawatch/headlinewatch/internal/sweep"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestRunCycle_SchedulesCrawlsAndSweeps(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	sites := storememory.NewSiteStore([]watch.Site{
		{ID: 1, Name: "One", ListingURL: "https://one.example/"},
		{ID: 2, Name: "Two", ListingURL: "https://two.example/"},
	})
	revisions := storememory.NewRevisionStore()
	revisions.Put(watch.ArticleRevision{
		URL:       "https://one.example/story/stale",
		SiteID:    1,
		Title:     "Old headline",
		FetchedAt: now.Add(-10 * 24 * time.Hour),
		ChangedAt: now.Add(-10 * 24 * time.Hour),
	})

	queue := queuememory.NewQueue(16)
	clock := fixedClock{now: now}
	sweeper := sweep.NewSweeper(revisions, queue, clock, sweep.DefaultStaleness, zap.NewNop())
	orch := New(sites, queue, sweeper, zap.NewNop())

	require.NoError(t, orch.RunCycle(context.Background()))

	var crawls []watch.Job
	for {
		job, ok := queue.TryDequeue(watch.LaneFast)
		if !ok {
			break
		}
		crawls = append(crawls, job)
	}
	require.Len(t, crawls, 2)
	require.Equal(t, watch.KindFrontpageCrawl, crawls[0].Kind)
	require.Equal(t, int64(1), crawls[0].FrontpageCrawl.SiteID)
	require.Equal(t, int64(2), crawls[1].FrontpageCrawl.SiteID)

	recheck, ok := queue.TryDequeue(watch.LaneSlow)
	require.True(t, ok)
	require.Equal(t, watch.KindArticleFetch, recheck.Kind)
	require.Equal(t, "https://one.example/story/stale", recheck.ArticleFetch.URL)
}

func TestRunCycle_NoSites(t *testing.T) {
	t.Parallel()

	sites := storememory.NewSiteStore(nil)
	revisions := storememory.NewRevisionStore()
	queue := queuememory.NewQueue(16)
	sweeper := sweep.NewSweeper(revisions, queue, fixedClock{now: time.Now()}, sweep.DefaultStaleness, zap.NewNop())
	orch := New(sites, queue, sweeper, zap.NewNop())

	require.NoError(t, orch.RunCycle(context.Background()))
	_, ok := queue.TryDequeue(watch.LaneFast)
	require.False(t, ok)
}
