package watch

import (
	"errors"
	"fmt"
)

// ErrNoArticlesFound means a frontpage crawl matched zero links against the
// site's article URL pattern. Almost always a broken pattern or selector
// configuration; surfaced, never swallowed.
var ErrNoArticlesFound = errors.New("no articles found on frontpage")

// ErrNoTitleFound means the title selector matched nothing on an article page.
var ErrNoTitleFound = errors.New("no title found on article page")

// FetchError reports a failed page fetch: a non-2xx response or a transport
// failure. StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap exposes the underlying transport error, if any.
func (e *FetchError) Unwrap() error {
	return e.Err
}
