package memory

import (
	"context"
	"fmt"

	"github.com/mediawatch/headlinewatch/internal/watch"
)

// SiteStore serves a fixed site list, typically loaded from configuration.
type SiteStore struct {
	sites []watch.Site
	byID  map[int64]watch.Site
}

// NewSiteStore indexes the provided sites.
func NewSiteStore(sites []watch.Site) *SiteStore {
	byID := make(map[int64]watch.Site, len(sites))
	for _, s := range sites {
		byID[s.ID] = s
	}
	return &SiteStore{sites: sites, byID: byID}
}

// ListSites implements watch.SiteStore.
func (s *SiteStore) ListSites(_ context.Context) ([]watch.Site, error) {
	return append([]watch.Site(nil), s.sites...), nil
}

// GetSite implements watch.SiteStore.
func (s *SiteStore) GetSite(_ context.Context, id int64) (watch.Site, error) {
	site, ok := s.byID[id]
	if !ok {
		return watch.Site{}, fmt.Errorf("site %d not found", id)
	}
	return site, nil
}
