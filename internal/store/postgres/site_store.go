package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// SiteStore reads the externally managed site table.
type SiteStore struct {
	pool Pool
}

// NewSiteStore constructs a store over an existing pool.
func NewSiteStore(pool Pool) (*SiteStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SiteStore{pool: pool}, nil
}

const selectSites = `
SELECT id, name, listing_url, article_url_pattern, title_selector,
       COALESCE(webhook_url, ''), COALESCE(webhook_token, '')
FROM site`

// ListSites implements watch.SiteStore.
func (s *SiteStore) ListSites(ctx context.Context) ([]watch.Site, error) {
	rows, err := s.pool.Query(ctx, selectSites+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []watch.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// GetSite implements watch.SiteStore.
func (s *SiteStore) GetSite(ctx context.Context, id int64) (watch.Site, error) {
	site, err := scanSite(s.pool.QueryRow(ctx, selectSites+` WHERE id = $1`, id))
	if err != nil {
		return watch.Site{}, fmt.Errorf("get site %d: %w", id, err)
	}
	return site, nil
}

func scanSite(row pgx.Row) (watch.Site, error) {
	var site watch.Site
	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.ListingURL,
		&site.ArticleURLPattern,
		&site.TitleSelector,
		&site.WebhookURL,
		&site.WebhookToken,
	)
	return site, err
}
