package watch

import "github.com/google/uuid"

// Lane is a named queue partition isolating job classes with different
// latency characteristics.
type Lane string

// Lanes. Frontpage crawls and frontpage-driven article fetches run on the
// fast lane, sweeper re-checks on the slow lane, and notification dispatch
// on its own lane so a slow render-and-post never delays crawl work.
const (
	LaneFast   Lane = "fast"
	LaneSlow   Lane = "slow"
	LaneNotify Lane = "notify"
)

// Lanes lists every lane a worker pool must serve.
func Lanes() []Lane {
	return []Lane{LaneFast, LaneSlow, LaneNotify}
}

// Kind discriminates job payloads.
type Kind string

// Job kinds.
const (
	KindFrontpageCrawl Kind = "frontpage_crawl"
	KindArticleFetch   Kind = "article_fetch"
	KindNotifyChange   Kind = "notify_change"
)

// Job is the queue envelope. Exactly one payload field matching Kind is set.
type Job struct {
	ID             string             `json:"id"`
	Kind           Kind               `json:"kind"`
	FrontpageCrawl *FrontpageCrawlJob `json:"frontpage_crawl,omitempty"`
	ArticleFetch   *ArticleFetchJob   `json:"article_fetch,omitempty"`
	NotifyChange   *NotifyChangeJob   `json:"notify_change,omitempty"`
}

// FrontpageCrawlJob asks for one listing-page crawl of a site.
type FrontpageCrawlJob struct {
	SiteID int64 `json:"site_id"`
}

// ArticleFetchJob asks for one article fetch. The prune flags are set only
// on sweeper-driven re-checks.
type ArticleFetchJob struct {
	SiteID             int64  `json:"site_id"`
	URL                string `json:"url"`
	PruneIfUnchanged   bool   `json:"prune_if_unchanged,omitempty"`
	PruneIfURLMismatch bool   `json:"prune_if_url_mismatch,omitempty"`
}

// NotifyChangeJob carries one significant title change toward dispatch.
type NotifyChangeJob struct {
	SiteID   int64  `json:"site_id"`
	URL      string `json:"url"`
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
}

// NewFrontpageCrawlJob builds a fast-lane crawl envelope.
func NewFrontpageCrawlJob(siteID int64) Job {
	return Job{
		ID:             uuid.NewString(),
		Kind:           KindFrontpageCrawl,
		FrontpageCrawl: &FrontpageCrawlJob{SiteID: siteID},
	}
}

// NewArticleFetchJob builds an article fetch envelope.
func NewArticleFetchJob(siteID int64, url string, pruneIfUnchanged, pruneIfURLMismatch bool) Job {
	return Job{
		ID:   uuid.NewString(),
		Kind: KindArticleFetch,
		ArticleFetch: &ArticleFetchJob{
			SiteID:             siteID,
			URL:                url,
			PruneIfUnchanged:   pruneIfUnchanged,
			PruneIfURLMismatch: pruneIfURLMismatch,
		},
	}
}

// NewNotifyChangeJob builds a notification envelope.
func NewNotifyChangeJob(siteID int64, url, oldTitle, newTitle string) Job {
	return Job{
		ID:   uuid.NewString(),
		Kind: KindNotifyChange,
		NotifyChange: &NotifyChangeJob{
			SiteID:   siteID,
			URL:      url,
			OldTitle: oldTitle,
			NewTitle: newTitle,
		},
	}
}
