// Package collyfetcher implements watch.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Config controls collector behavior. Cookies are sent with every request;
// some sites only serve articles once a consent cookie is present.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Cookies   map[string]string
}

// Fetcher fetches single pages with a cloned Colly collector per request.
type Fetcher struct {
	cfg           Config
	cookieHeader  string
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	return &Fetcher{
		cfg:           cfg,
		cookieHeader:  buildCookieHeader(cfg.Cookies),
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET and reports the pre-redirect and
// post-redirect URLs alongside the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (watch.FetchResponse, error) {
	var (
		result   watch.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		if f.cookieHeader != "" {
			r.Headers.Set("Cookie", f.cookieHeader)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = watch.FetchResponse{
			RequestURL: url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &watch.FetchError{URL: url, StatusCode: status, Err: err}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return watch.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return watch.FetchResponse{}, fetchErr
		}
		if err != nil {
			return watch.FetchResponse{}, &watch.FetchError{URL: url, Err: err}
		}
	}
	return result, nil
}

func buildCookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+cookies[name])
	}
	return strings.Join(pairs, "; ")
}
