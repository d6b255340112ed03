package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is the webhook payload for one title change.
type Message struct {
	SiteID   int64  `json:"site_id"`
	SiteName string `json:"site_name"`
	URL      string `json:"url"`
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
	ImageURL string `json:"image_url,omitempty"`
}

// Poster delivers one message to a site's webhook endpoint.
type Poster interface {
	Post(ctx context.Context, endpoint, token string, msg Message) error
}

// HTTPPoster posts JSON messages with bearer authentication.
type HTTPPoster struct {
	client *http.Client
}

// NewHTTPPoster constructs a poster. A zero timeout defaults to 15s.
func NewHTTPPoster(timeout time.Duration) *HTTPPoster {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPoster{client: &http.Client{Timeout: timeout}}
}

// Post implements Poster.
func (p *HTTPPoster) Post(ctx context.Context, endpoint, token string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
