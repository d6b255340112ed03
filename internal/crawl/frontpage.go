// Package crawl implements the frontpage crawl and article fetch job
// handlers.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/htmlx"
	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Frontpage crawls a site's listing page and schedules an article fetch for
// every link matching the site's article URL pattern.
type Frontpage struct {
	sites   watch.SiteStore
	fetcher watch.Fetcher
	queue   watch.Queue
	logger  *zap.Logger
}

// NewFrontpage constructs the handler.
func NewFrontpage(sites watch.SiteStore, fetcher watch.Fetcher, queue watch.Queue, logger *zap.Logger) *Frontpage {
	return &Frontpage{
		sites:   sites,
		fetcher: fetcher,
		queue:   queue,
		logger:  logger,
	}
}

// Handle crawls one listing page. Matching links are scheduled without
// intra-crawl deduplication; the article fetch tolerates duplicates. Zero
// matches is a configuration problem and fails the job loudly.
func (c *Frontpage) Handle(ctx context.Context, job watch.FrontpageCrawlJob) error {
	site, err := c.sites.GetSite(ctx, job.SiteID)
	if err != nil {
		return err
	}
	pattern, err := site.CompilePattern()
	if err != nil {
		return err
	}

	resp, err := c.fetcher.Fetch(ctx, site.ListingURL)
	if err != nil {
		metrics.ObserveFetch(site.ListingURL, "error", 0)
		return err
	}
	metrics.ObserveFetch(site.ListingURL, "success", resp.Duration)

	// Relative links resolve against the final URL after redirects, not the
	// configured listing URL.
	base, err := url.Parse(resp.FinalURL)
	if err != nil {
		return fmt.Errorf("parse final url %q: %w", resp.FinalURL, err)
	}

	hrefs, err := htmlx.ExtractLinks(resp.Body)
	if err != nil {
		return fmt.Errorf("extract links from %s: %w", site.ListingURL, err)
	}

	found := false
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}
		target, err := base.Parse(href)
		if err != nil {
			c.logger.Debug("skipping unparsable link",
				zap.String("listing_url", site.ListingURL),
				zap.String("href", href),
			)
			continue
		}
		target.RawQuery = ""
		target.Fragment = ""
		target.RawFragment = ""
		candidate := target.String()

		if !pattern.MatchString(candidate) {
			continue
		}
		found = true
		if err := c.queue.Enqueue(ctx, watch.LaneFast, watch.NewArticleFetchJob(site.ID, candidate, false, false)); err != nil {
			return fmt.Errorf("schedule article fetch for %s: %w", candidate, err)
		}
	}

	if !found {
		return fmt.Errorf("crawl %s: %w", site.ListingURL, watch.ErrNoArticlesFound)
	}
	return nil
}
