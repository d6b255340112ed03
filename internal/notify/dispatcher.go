package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/debounce"
	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// Dispatch outcomes reported to metrics.
const (
	outcomeSent          = "sent"
	outcomeDeduplicated  = "deduplicated"
	outcomeNoCredentials = "no_credentials"
	outcomeFailed        = "failed"
)

// Dispatcher delivers one notification per significant change. The debounce
// marker is written before delivery, so a change is notified at most once;
// a delivery failure after the marker is logged and dropped, never retried.
type Dispatcher struct {
	sites    watch.SiteStore
	markers  watch.DebounceStore
	renderer Renderer
	archive  watch.BlobStore
	poster   Poster
	logger   *zap.Logger
}

// NewDispatcher constructs a dispatcher. The archive may be nil; rendered
// images are then dropped after delivery.
func NewDispatcher(sites watch.SiteStore, markers watch.DebounceStore, renderer Renderer, archive watch.BlobStore, poster Poster, logger *zap.Logger) *Dispatcher {
	if renderer == nil {
		renderer = NoopRenderer{}
	}
	return &Dispatcher{
		sites:    sites,
		markers:  markers,
		renderer: renderer,
		archive:  archive,
		poster:   poster,
		logger:   logger,
	}
}

// Handle processes one notify job.
func (d *Dispatcher) Handle(ctx context.Context, job watch.NotifyChangeJob) error {
	site, err := d.sites.GetSite(ctx, job.SiteID)
	if err != nil {
		return err
	}

	if !site.HasCredentials() {
		d.logger.Debug("site has no webhook configured, dropping notification",
			zap.Int64("site_id", site.ID),
			zap.String("url", job.URL),
		)
		metrics.NotificationDispatched(outcomeNoCredentials)
		return nil
	}

	fingerprint := debounce.Fingerprint(job.SiteID, job.URL, job.OldTitle, job.NewTitle)
	first, err := d.markers.MarkOnce(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("mark notification fingerprint: %w", err)
	}
	if !first {
		d.logger.Debug("duplicate notification suppressed",
			zap.Int64("site_id", site.ID),
			zap.String("url", job.URL),
			zap.String("fingerprint", fingerprint),
		)
		metrics.NotificationDispatched(outcomeDeduplicated)
		return nil
	}

	msg := Message{
		SiteID:   site.ID,
		SiteName: site.Name,
		URL:      job.URL,
		OldTitle: job.OldTitle,
		NewTitle: job.NewTitle,
	}
	msg.ImageURL = d.renderAndArchive(ctx, site.ID, fingerprint, job)

	// The marker is already written: failing the job would retry into the
	// dedupe check and drop silently. Log and count instead.
	if err := d.poster.Post(ctx, site.WebhookURL, site.WebhookToken, msg); err != nil {
		d.logger.Error("webhook delivery failed, notification dropped",
			zap.Int64("site_id", site.ID),
			zap.String("url", job.URL),
			zap.Error(err),
		)
		metrics.NotificationDispatched(outcomeFailed)
		return nil
	}

	metrics.NotificationDispatched(outcomeSent)
	d.logger.Info("notification delivered",
		zap.Int64("site_id", site.ID),
		zap.String("url", job.URL),
		zap.String("old_title", job.OldTitle),
		zap.String("new_title", job.NewTitle),
	)
	return nil
}

// renderAndArchive produces the diff image and stores it, returning the
// archive URI or "" when either step is unavailable or fails. Rendering is
// best effort: the text notification goes out either way.
func (d *Dispatcher) renderAndArchive(ctx context.Context, siteID int64, fingerprint string, job watch.NotifyChangeJob) string {
	if d.archive == nil {
		return ""
	}

	png, err := d.renderer.Render(ctx, job.OldTitle, job.NewTitle)
	if err != nil {
		if !errors.Is(err, ErrRendererDisabled) {
			d.logger.Warn("diff render failed, sending text-only notification",
				zap.Int64("site_id", siteID),
				zap.String("url", job.URL),
				zap.Error(err),
			)
		}
		return ""
	}

	path := fmt.Sprintf("diffs/%d/%s.png", siteID, fingerprint)
	uri, err := d.archive.PutObject(ctx, path, "image/png", png)
	if err != nil {
		d.logger.Warn("diff archive failed, sending text-only notification",
			zap.Int64("site_id", siteID),
			zap.String("url", job.URL),
			zap.Error(err),
		)
		return ""
	}
	return uri
}
