// Package watch defines core types shared across subsystems.
package watch

import (
	"fmt"
	"regexp"
	"time"
)

// Site is one watched newspaper, managed externally and read-only here.
type Site struct {
	ID                int64  `json:"id" mapstructure:"id"`
	Name              string `json:"name" mapstructure:"name"`
	ListingURL        string `json:"listing_url" mapstructure:"listing_url"`
	ArticleURLPattern string `json:"article_url_pattern" mapstructure:"article_url_pattern"`
	TitleSelector     string `json:"title_selector" mapstructure:"title_selector"`
	WebhookURL        string `json:"webhook_url" mapstructure:"webhook_url"`
	WebhookToken      string `json:"webhook_token" mapstructure:"webhook_token"`
}

// HasCredentials reports whether the site can be notified at all.
// Absent credentials make notification dispatch a no-op, not an error.
func (s Site) HasCredentials() bool {
	return s.WebhookURL != ""
}

// CompilePattern compiles the article URL pattern anchored at the start of
// the candidate string. The pattern need not consume the whole URL.
func (s Site) CompilePattern() (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + s.ArticleURLPattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("compile article url pattern for site %d: %w", s.ID, err)
	}
	return re, nil
}

// ArticleRevision is the stored state of one tracked article URL: the last
// significant title observed and the fetch/change timestamps.
// ChangedAt never exceeds FetchedAt.
type ArticleRevision struct {
	URL       string    `json:"url"`
	SiteID    int64     `json:"site_id"`
	Title     string    `json:"title"`
	FetchedAt time.Time `json:"fetched_at"`
	ChangedAt time.Time `json:"changed_at"`
}

// RevisionUpdate carries one observed fetch into the revision state machine.
type RevisionUpdate struct {
	SiteID int64
	// RequestURL is the URL the fetch was issued for. A revision created by
	// this fetch is keyed under it.
	RequestURL string
	// FinalURL is the URL after redirects. Lookups check it first, then
	// RequestURL.
	FinalURL string
	Title    string
	Now      time.Time
	// PruneIfUnchanged deletes the revision instead of refreshing FetchedAt
	// when the title did not change significantly. Set by the sweeper.
	PruneIfUnchanged bool
}

// FetchState describes what the state machine did with an update.
type FetchState string

const (
	// FetchCreated means no revision existed and one was created.
	FetchCreated FetchState = "created"
	// FetchChanged means the title changed significantly.
	FetchChanged FetchState = "changed"
	// FetchUnchanged means only FetchedAt was refreshed.
	FetchUnchanged FetchState = "unchanged"
	// FetchPruned means the unchanged revision was deleted on request.
	FetchPruned FetchState = "pruned"
)

// FetchResult reports the applied transition. OldTitle is set for
// FetchChanged and holds the title the revision carried before the update.
type FetchResult struct {
	State    FetchState
	OldTitle string
}
