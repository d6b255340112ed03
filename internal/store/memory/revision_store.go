// Package memory provides in-memory store implementations for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// RevisionStore keeps article revisions in a mutex-guarded map. The mutex
// makes every ApplyFetch a single atomic read-compare-write, matching the
// transactional guarantee of the Postgres store.
type RevisionStore struct {
	mu        sync.Mutex
	revisions map[string]watch.ArticleRevision
}

// NewRevisionStore constructs an empty store.
func NewRevisionStore() *RevisionStore {
	return &RevisionStore{revisions: make(map[string]watch.ArticleRevision)}
}

// ApplyFetch implements watch.RevisionStore.
func (s *RevisionStore) ApplyFetch(
	ctx context.Context,
	update watch.RevisionUpdate,
	significant func(oldTitle, newTitle string) bool,
	onChange func(ctx context.Context, oldTitle, newTitle string) error,
) (watch.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := update.FinalURL
	rev, ok := s.revisions[key]
	if ok {
		// A second row under the pre-redirect URL is a stray duplicate.
		if update.RequestURL != update.FinalURL {
			delete(s.revisions, update.RequestURL)
		}
	} else {
		key = update.RequestURL
		rev, ok = s.revisions[key]
	}

	if !ok {
		s.revisions[update.RequestURL] = watch.ArticleRevision{
			URL:       update.RequestURL,
			SiteID:    update.SiteID,
			Title:     update.Title,
			FetchedAt: update.Now,
			ChangedAt: update.Now,
		}
		return watch.FetchResult{State: watch.FetchCreated}, nil
	}

	if significant(rev.Title, update.Title) {
		if onChange != nil {
			if err := onChange(ctx, rev.Title, update.Title); err != nil {
				return watch.FetchResult{}, err
			}
		}
		old := rev.Title
		delete(s.revisions, key)
		rev.URL = update.FinalURL
		rev.Title = update.Title
		rev.FetchedAt = update.Now
		rev.ChangedAt = update.Now
		s.revisions[update.FinalURL] = rev
		return watch.FetchResult{State: watch.FetchChanged, OldTitle: old}, nil
	}

	if update.PruneIfUnchanged {
		delete(s.revisions, key)
		return watch.FetchResult{State: watch.FetchPruned}, nil
	}

	delete(s.revisions, key)
	rev.URL = update.FinalURL
	rev.FetchedAt = update.Now
	s.revisions[update.FinalURL] = rev
	return watch.FetchResult{State: watch.FetchUnchanged}, nil
}

// DeleteRevision implements watch.RevisionStore.
func (s *RevisionStore) DeleteRevision(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.revisions, url)
	return nil
}

// ListStale implements watch.RevisionStore.
func (s *RevisionStore) ListStale(_ context.Context, before time.Time) ([]watch.ArticleRevision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []watch.ArticleRevision
	for _, rev := range s.revisions {
		if rev.FetchedAt.Before(before) {
			stale = append(stale, rev)
		}
	}
	return stale, nil
}

// Get returns the revision stored under url.
func (s *RevisionStore) Get(url string) (watch.ArticleRevision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.revisions[url]
	return rev, ok
}

// Put seeds a revision directly, bypassing the state machine.
func (s *RevisionStore) Put(rev watch.ArticleRevision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revisions[rev.URL] = rev
}

// Len reports the number of stored revisions.
func (s *RevisionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.revisions)
}
