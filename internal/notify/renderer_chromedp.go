package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// RendererConfig controls the headless diff renderer.
type RendererConfig struct {
	// MaxParallel bounds concurrent render tabs. Zero disables rendering.
	MaxParallel int
	Timeout     time.Duration
	Width       int64
	Height      int64
}

// ChromedpRenderer renders title diffs to PNG using headless Chrome.
type ChromedpRenderer struct {
	cfg         RendererConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a renderer using the provided configuration.
func NewChromedpRenderer(cfg RendererConfig) (*ChromedpRenderer, error) {
	if cfg.MaxParallel <= 0 {
		return nil, ErrRendererDisabled
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 400
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpRenderer{
		cfg:         cfg,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (r *ChromedpRenderer) Close() {
	r.allocCancel()
}

// Render implements Renderer. The diff page is served through a data: URL so
// no local HTTP server is needed.
func (r *ChromedpRenderer) Render(ctx context.Context, oldTitle, newTitle string) ([]byte, error) {
	select {
	case r.limiter <- struct{}{}:
		defer func() { <-r.limiter }()
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer cancelTask()

	stop := context.AfterFunc(ctx, cancelTask)
	defer stop()

	page := "data:text/html," + url.PathEscape(diffHTML(oldTitle, newTitle))

	var png []byte
	err := chromedp.Run(taskCtx,
		emulation.SetDeviceMetricsOverride(r.cfg.Width, r.cfg.Height, 2, false),
		chromedp.Navigate(page),
		chromedp.WaitReady("#diff", chromedp.ByID),
		chromedp.Screenshot("#diff", &png, chromedp.NodeVisible, chromedp.ByID),
	)
	if err != nil {
		return nil, fmt.Errorf("render diff: %w", err)
	}
	return png, nil
}
