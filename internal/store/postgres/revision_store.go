package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// RevisionStore persists article revisions in the article_revision table.
type RevisionStore struct {
	pool Pool
}

// NewRevisionStore constructs a store over an existing pool.
func NewRevisionStore(pool Pool) (*RevisionStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RevisionStore{pool: pool}, nil
}

const selectRevisionForUpdate = `
SELECT url, site_id, title, fetched_at, changed_at
FROM article_revision
WHERE url = $1
FOR UPDATE`

// ApplyFetch implements watch.RevisionStore. The whole read-compare-write
// runs in one transaction with the prior row locked, so concurrent duplicate
// jobs for the same URL cannot both observe the same prior title.
func (s *RevisionStore) ApplyFetch(
	ctx context.Context,
	update watch.RevisionUpdate,
	significant func(oldTitle, newTitle string) bool,
	onChange func(ctx context.Context, oldTitle, newTitle string) error,
) (watch.FetchResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return watch.FetchResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rev, key, found, err := s.lockRevision(ctx, tx, update)
	if err != nil {
		return watch.FetchResult{}, err
	}

	var result watch.FetchResult
	switch {
	case !found:
		_, err = tx.Exec(ctx, `
INSERT INTO article_revision (url, site_id, title, fetched_at, changed_at)
VALUES ($1, $2, $3, $4, $5)`,
			update.RequestURL, update.SiteID, update.Title, update.Now, update.Now)
		if err != nil {
			return watch.FetchResult{}, fmt.Errorf("insert revision: %w", err)
		}
		result = watch.FetchResult{State: watch.FetchCreated}

	case significant(rev.Title, update.Title):
		// The notification job goes out before the commit: a failed commit
		// may duplicate a notification, but never lose one. The debouncer
		// absorbs the duplicate.
		if onChange != nil {
			if err := onChange(ctx, rev.Title, update.Title); err != nil {
				return watch.FetchResult{}, err
			}
		}
		_, err = tx.Exec(ctx, `
UPDATE article_revision
SET url = $1, title = $2, fetched_at = $3, changed_at = $3
WHERE url = $4`,
			update.FinalURL, update.Title, update.Now, key)
		if err != nil {
			return watch.FetchResult{}, fmt.Errorf("update revision: %w", err)
		}
		result = watch.FetchResult{State: watch.FetchChanged, OldTitle: rev.Title}

	case update.PruneIfUnchanged:
		if _, err := tx.Exec(ctx, `DELETE FROM article_revision WHERE url = $1`, key); err != nil {
			return watch.FetchResult{}, fmt.Errorf("prune revision: %w", err)
		}
		result = watch.FetchResult{State: watch.FetchPruned}

	default:
		_, err = tx.Exec(ctx, `
UPDATE article_revision
SET url = $1, fetched_at = $2
WHERE url = $3`,
			update.FinalURL, update.Now, key)
		if err != nil {
			return watch.FetchResult{}, fmt.Errorf("refresh revision: %w", err)
		}
		result = watch.FetchResult{State: watch.FetchUnchanged}
	}

	if err := tx.Commit(ctx); err != nil {
		return watch.FetchResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// lockRevision looks up the prior revision under the final URL first, then
// the pre-redirect request URL; a revision may be keyed under either
// depending on past redirects. When the final-URL row exists, a stray row
// under the request URL is removed.
func (s *RevisionStore) lockRevision(
	ctx context.Context,
	tx pgx.Tx,
	update watch.RevisionUpdate,
) (watch.ArticleRevision, string, bool, error) {
	rev, err := scanRevision(tx.QueryRow(ctx, selectRevisionForUpdate, update.FinalURL))
	switch {
	case err == nil:
		if update.RequestURL != update.FinalURL {
			if _, err := tx.Exec(ctx, `DELETE FROM article_revision WHERE url = $1`, update.RequestURL); err != nil {
				return watch.ArticleRevision{}, "", false, fmt.Errorf("delete stray revision: %w", err)
			}
		}
		return rev, update.FinalURL, true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return watch.ArticleRevision{}, "", false, fmt.Errorf("select revision: %w", err)
	}

	rev, err = scanRevision(tx.QueryRow(ctx, selectRevisionForUpdate, update.RequestURL))
	switch {
	case err == nil:
		return rev, update.RequestURL, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return watch.ArticleRevision{}, "", false, nil
	default:
		return watch.ArticleRevision{}, "", false, fmt.Errorf("select revision: %w", err)
	}
}

// DeleteRevision implements watch.RevisionStore.
func (s *RevisionStore) DeleteRevision(ctx context.Context, url string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM article_revision WHERE url = $1`, url); err != nil {
		return fmt.Errorf("delete revision: %w", err)
	}
	return nil
}

// ListStale implements watch.RevisionStore.
func (s *RevisionStore) ListStale(ctx context.Context, before time.Time) ([]watch.ArticleRevision, error) {
	rows, err := s.pool.Query(ctx, `
SELECT url, site_id, title, fetched_at, changed_at
FROM article_revision
WHERE fetched_at < $1`, before)
	if err != nil {
		return nil, fmt.Errorf("list stale revisions: %w", err)
	}
	defer rows.Close()

	var revisions []watch.ArticleRevision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale revision: %w", err)
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale revisions: %w", err)
	}
	return revisions, nil
}

func scanRevision(row pgx.Row) (watch.ArticleRevision, error) {
	var rev watch.ArticleRevision
	err := row.Scan(&rev.URL, &rev.SiteID, &rev.Title, &rev.FetchedAt, &rev.ChangedAt)
	return rev, err
}
