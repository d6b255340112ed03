package watch

import (
	"context"
	"time"
)

// Queue enqueues job envelopes into named lanes. Delivery is at-least-once;
// neither ordering nor single delivery is guaranteed.
type Queue interface {
	Enqueue(ctx context.Context, lane Lane, job Job) error
}

// Handler executes one job to completion. A returned error surfaces the job
// to the transport's redelivery policy; handlers never retry locally.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Consumer pulls jobs from one lane and feeds them to a handler until the
// context finishes.
type Consumer interface {
	Consume(ctx context.Context, lane Lane, handler Handler) error
}

// SiteStore reads the externally managed site configuration.
type SiteStore interface {
	ListSites(ctx context.Context) ([]Site, error)
	GetSite(ctx context.Context, id int64) (Site, error)
}

// RevisionStore persists per-article revision state.
//
// ApplyFetch runs the full read-compare-write transition for one fetch as a
// single atomic unit: it reads the prior revision (checking FinalURL then
// RequestURL), consults significant over the prior and new titles, and calls
// onChange with (old, new) before the write is committed when the change is
// significant. Two concurrent fetches of the same URL must not both observe
// the same prior title.
type RevisionStore interface {
	ApplyFetch(
		ctx context.Context,
		update RevisionUpdate,
		significant func(oldTitle, newTitle string) bool,
		onChange func(ctx context.Context, oldTitle, newTitle string) error,
	) (FetchResult, error)

	// DeleteRevision removes a revision by URL. Missing rows are not an error.
	DeleteRevision(ctx context.Context, url string) error

	// ListStale returns all revisions whose FetchedAt is before the cutoff.
	ListStale(ctx context.Context, before time.Time) ([]ArticleRevision, error)
}

// DebounceStore persists write-once notification fingerprints.
type DebounceStore interface {
	// MarkOnce records the fingerprint and reports whether this call was the
	// first to do so.
	MarkOnce(ctx context.Context, fingerprint string) (bool, error)
}

// FetchResponse is the result of one HTTP page fetch.
type FetchResponse struct {
	// RequestURL is the URL the fetch was issued for.
	RequestURL string
	// FinalURL is the URL after redirects.
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves one page. Non-2xx responses and transport failures
// return a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
