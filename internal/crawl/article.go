package crawl

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/htmlx"
	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/title"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Article fetches one article page, extracts its title, and applies the
// revision state machine. Significant changes enqueue a notification on the
// notify lane before the revision update commits.
type Article struct {
	sites     watch.SiteStore
	fetcher   watch.Fetcher
	revisions watch.RevisionStore
	queue     watch.Queue
	clock     watch.Clock
	logger    *zap.Logger

	mu        sync.Mutex
	selectors map[int64]cachedSelector
}

// cachedSelector keeps the raw selector alongside the compiled matcher so a
// site config change invalidates the cache entry.
type cachedSelector struct {
	raw      string
	compiled htmlx.Selector
}

// NewArticle constructs the handler.
func NewArticle(sites watch.SiteStore, fetcher watch.Fetcher, revisions watch.RevisionStore, queue watch.Queue, clock watch.Clock, logger *zap.Logger) *Article {
	return &Article{
		sites:     sites,
		fetcher:   fetcher,
		revisions: revisions,
		queue:     queue,
		clock:     clock,
		logger:    logger,
		selectors: make(map[int64]cachedSelector),
	}
}

// Handle processes one article fetch job.
func (f *Article) Handle(ctx context.Context, job watch.ArticleFetchJob) error {
	site, err := f.sites.GetSite(ctx, job.SiteID)
	if err != nil {
		return err
	}
	pattern, err := site.CompilePattern()
	if err != nil {
		return err
	}

	// Sweeper jobs carry the mismatch flag: a URL that no longer matches the
	// site pattern after a config change is dropped without a fetch.
	if job.PruneIfURLMismatch && !pattern.MatchString(job.URL) {
		f.logger.Info("pruning revision with mismatched url",
			zap.Int64("site_id", site.ID),
			zap.String("url", job.URL),
		)
		metrics.RevisionApplied(string(watch.FetchPruned))
		return f.revisions.DeleteRevision(ctx, job.URL)
	}

	resp, err := f.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		metrics.ObserveFetch(job.URL, "error", 0)
		return err
	}
	metrics.ObserveFetch(job.URL, "success", resp.Duration)

	selector, err := f.titleSelector(site)
	if err != nil {
		return err
	}
	titles, err := htmlx.ExtractText(resp.Body, selector)
	if err != nil {
		return fmt.Errorf("extract title from %s: %w", job.URL, err)
	}
	if len(titles) == 0 {
		return fmt.Errorf("article %s: %w", job.URL, watch.ErrNoTitleFound)
	}
	if len(titles) > 1 {
		f.logger.Warn("title selector matched more than once",
			zap.Int64("site_id", site.ID),
			zap.String("url", job.URL),
			zap.Int("matches", len(titles)),
		)
	}
	extracted := titles[0]

	result, err := f.revisions.ApplyFetch(ctx, watch.RevisionUpdate{
		SiteID:           site.ID,
		RequestURL:       job.URL,
		FinalURL:         resp.FinalURL,
		Title:            extracted,
		Now:              f.clock.Now(),
		PruneIfUnchanged: job.PruneIfUnchanged,
	}, title.Significant, func(ctx context.Context, oldTitle, newTitle string) error {
		return f.queue.Enqueue(ctx, watch.LaneNotify, watch.NewNotifyChangeJob(site.ID, job.URL, oldTitle, newTitle))
	})
	if err != nil {
		return err
	}

	f.recordResult(site, job, extracted, result)
	return nil
}

// titleSelector returns the site's compiled selector, compiling at most once
// per distinct selector string per site.
func (f *Article) titleSelector(site watch.Site) (htmlx.Selector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.selectors[site.ID]; ok && c.raw == site.TitleSelector {
		return c.compiled, nil
	}
	compiled, err := htmlx.CompileSelector(site.TitleSelector)
	if err != nil {
		return htmlx.Selector{}, fmt.Errorf("compile title selector for site %d: %w", site.ID, err)
	}
	f.selectors[site.ID] = cachedSelector{raw: site.TitleSelector, compiled: compiled}
	return compiled, nil
}

func (f *Article) recordResult(site watch.Site, job watch.ArticleFetchJob, extracted string, result watch.FetchResult) {
	metrics.RevisionApplied(string(result.State))
	if result.State == watch.FetchChanged {
		f.logger.Info("headline changed",
			zap.Int64("site_id", site.ID),
			zap.String("url", job.URL),
			zap.String("old_title", result.OldTitle),
			zap.String("new_title", extracted),
		)
	}
}
