package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

func always(_, _ string) bool { return true }
func never(_, _ string) bool  { return false }

func TestApplyFetch_CreatesRevision(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	res, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:     1,
		RequestURL: "https://news.example/story/1",
		FinalURL:   "https://news.example/story/1",
		Title:      "first title",
		Now:        now,
	}, never, nil)
	require.NoError(t, err)
	require.Equal(t, watch.FetchCreated, res.State)

	rev, ok := s.Get("https://news.example/story/1")
	require.True(t, ok)
	require.Equal(t, "first title", rev.Title)
	require.Equal(t, now, rev.FetchedAt)
	require.Equal(t, rev.FetchedAt, rev.ChangedAt)
}

func TestApplyFetch_InsignificantRefreshesFetchedAtOnly(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{
		URL:       "https://news.example/story/1",
		SiteID:    1,
		Title:     "old title",
		FetchedAt: created,
		ChangedAt: created,
	})

	later := created.Add(2 * time.Hour)
	res, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:     1,
		RequestURL: "https://news.example/story/1",
		FinalURL:   "https://news.example/story/1",
		Title:      "old  title.",
		Now:        later,
	}, never, nil)
	require.NoError(t, err)
	require.Equal(t, watch.FetchUnchanged, res.State)

	rev, ok := s.Get("https://news.example/story/1")
	require.True(t, ok)
	require.Equal(t, "old title", rev.Title)
	require.Equal(t, later, rev.FetchedAt)
	require.Equal(t, created, rev.ChangedAt)
}

func TestApplyFetch_SignificantUpdatesAndCallsOnChange(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{
		URL:       "https://news.example/story/1",
		SiteID:    1,
		Title:     "old title",
		FetchedAt: created,
		ChangedAt: created,
	})

	var gotOld, gotNew string
	calls := 0
	later := created.Add(time.Hour)
	res, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:     1,
		RequestURL: "https://news.example/story/1",
		FinalURL:   "https://news.example/story/1",
		Title:      "completely new headline",
		Now:        later,
	}, always, func(_ context.Context, oldTitle, newTitle string) error {
		calls++
		gotOld, gotNew = oldTitle, newTitle
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, watch.FetchChanged, res.State)
	require.Equal(t, "old title", res.OldTitle)
	require.Equal(t, 1, calls)
	require.Equal(t, "old title", gotOld)
	require.Equal(t, "completely new headline", gotNew)

	rev, ok := s.Get("https://news.example/story/1")
	require.True(t, ok)
	require.Equal(t, "completely new headline", rev.Title)
	require.Equal(t, later, rev.FetchedAt)
	require.Equal(t, later, rev.ChangedAt)
}

func TestApplyFetch_OnChangeFailureAbortsUpdate(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{
		URL:       "https://news.example/story/1",
		SiteID:    1,
		Title:     "old title",
		FetchedAt: created,
		ChangedAt: created,
	})

	boom := errors.New("enqueue failed")
	_, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:     1,
		RequestURL: "https://news.example/story/1",
		FinalURL:   "https://news.example/story/1",
		Title:      "completely new headline",
		Now:        created.Add(time.Hour),
	}, always, func(_ context.Context, _, _ string) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	rev, ok := s.Get("https://news.example/story/1")
	require.True(t, ok)
	require.Equal(t, "old title", rev.Title)
	require.Equal(t, created, rev.FetchedAt)
}

func TestApplyFetch_PruneIfUnchangedDeletes(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{
		URL:       "https://news.example/story/1",
		SiteID:    1,
		Title:     "old title",
		FetchedAt: created,
		ChangedAt: created,
	})

	res, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:           1,
		RequestURL:       "https://news.example/story/1",
		FinalURL:         "https://news.example/story/1",
		Title:            "old title",
		Now:              created.Add(time.Hour),
		PruneIfUnchanged: true,
	}, never, nil)
	require.NoError(t, err)
	require.Equal(t, watch.FetchPruned, res.State)
	require.Zero(t, s.Len())
}

func TestApplyFetch_RekeysRevisionFoundUnderRequestURL(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{
		URL:       "https://news.example/story/1",
		SiteID:    1,
		Title:     "old title",
		FetchedAt: created,
		ChangedAt: created,
	})

	res, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:     1,
		RequestURL: "https://news.example/story/1",
		FinalURL:   "https://news.example/story/1-moved",
		Title:      "old title",
		Now:        created.Add(time.Hour),
	}, never, nil)
	require.NoError(t, err)
	require.Equal(t, watch.FetchUnchanged, res.State)

	_, ok := s.Get("https://news.example/story/1")
	require.False(t, ok)
	rev, ok := s.Get("https://news.example/story/1-moved")
	require.True(t, ok)
	require.Equal(t, "old title", rev.Title)
}

func TestApplyFetch_DeletesStrayRequestRowWhenFinalRowExists(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{URL: "https://news.example/story/1", SiteID: 1, Title: "stray", FetchedAt: created, ChangedAt: created})
	s.Put(watch.ArticleRevision{URL: "https://news.example/story/1-moved", SiteID: 1, Title: "old title", FetchedAt: created, ChangedAt: created})

	res, err := s.ApplyFetch(context.Background(), watch.RevisionUpdate{
		SiteID:     1,
		RequestURL: "https://news.example/story/1",
		FinalURL:   "https://news.example/story/1-moved",
		Title:      "old title",
		Now:        created.Add(time.Hour),
	}, never, nil)
	require.NoError(t, err)
	require.Equal(t, watch.FetchUnchanged, res.State)
	require.Equal(t, 1, s.Len())

	_, ok := s.Get("https://news.example/story/1")
	require.False(t, ok)
}

func TestListStale(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	now := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	s.Put(watch.ArticleRevision{URL: "a", FetchedAt: now.AddDate(0, 0, -9)})
	s.Put(watch.ArticleRevision{URL: "b", FetchedAt: now.AddDate(0, 0, -1)})

	stale, err := s.ListStale(context.Background(), now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "a", stale[0].URL)
}

func TestDeleteRevision_MissingIsNotAnError(t *testing.T) {
	t.Parallel()

	s := NewRevisionStore()
	require.NoError(t, s.DeleteRevision(context.Background(), "https://news.example/story/none"))
}
