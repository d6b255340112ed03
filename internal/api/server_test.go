package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/orchestrator"
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

func newTestServer(t *testing.T, ready ReadinessCheck) (*Server, *queuememory.Queue) {
	t.Helper()
	sites := storememory.NewSiteStore([]watch.Site{
		{
			ID:                1,
			Name:              "News Example",
			ListingURL:        "https://news.example/",
			ArticleURLPattern: `https://news\.example/story/.+`,
			TitleSelector:     "h1.headline",
			WebhookURL:        "https://hooks.example/headlines",
		},
	})
	queue := queuememory.NewQueue(16)
	sweeper := sweep.NewSweeper(storememory.NewRevisionStore(), queue, fixedClock{now: time.Now()}, sweep.DefaultStaleness, zap.NewNop())
	orch := orchestrator.New(sites, queue, sweeper, zap.NewNop())
	return NewServer(sites, queue, orch, ready, zap.NewNop()), queue
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, func(context.Context) error {
		return errors.New("postgres unreachable")
	})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListSites(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/sites")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRunCycleSchedulesJobs(t *testing.T) {
	t.Parallel()

	server, queue := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/cycle", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job, ok := queue.TryDequeue(watch.LaneFast)
	require.True(t, ok)
	require.Equal(t, watch.KindFrontpageCrawl, job.Kind)
}

func TestCrawlSite(t *testing.T) {
	t.Parallel()

	server, queue := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/sites/1/crawl", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job, ok := queue.TryDequeue(watch.LaneFast)
	require.True(t, ok)
	require.Equal(t, int64(1), job.FrontpageCrawl.SiteID)
}

func TestCrawlSiteUnknown(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/sites/99/crawl", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/v1/sites/not-a-number/crawl", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
