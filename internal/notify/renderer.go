// Package notify turns significant title changes into webhook deliveries,
// with redis-backed deduplication and an optional rendered diff image.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrRendererDisabled indicates rendering has been disabled via
// configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// Renderer produces a PNG image visualizing one title change.
type Renderer interface {
	Render(ctx context.Context, oldTitle, newTitle string) ([]byte, error)
}

// NoopRenderer reports rendering as disabled. Dispatch falls back to
// text-only notifications.
type NoopRenderer struct{}

// Render implements Renderer.
func (NoopRenderer) Render(_ context.Context, _, _ string) ([]byte, error) {
	return nil, ErrRendererDisabled
}

// diffHTML builds the standalone page the renderer screenshots: the old and
// new title with character-level insertions and deletions highlighted.
func diffHTML(oldTitle, newTitle string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldTitle, newTitle, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		text := html.EscapeString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&b, `<del>%s</del>`, text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&b, `<ins>%s</ins>`, text)
		default:
			b.WriteString(text)
		}
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { margin: 0; padding: 24px; font-family: Georgia, serif; background: #fff; }
#diff { font-size: 28px; line-height: 1.4; max-width: 752px; }
del { background: #ffd7d5; color: #82071e; text-decoration: line-through; }
ins { background: #d1f0d1; color: #116329; text-decoration: none; }
</style></head><body><div id="diff">%s</div></body></html>`, b.String())
}
