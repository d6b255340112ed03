// Package debounce suppresses duplicate notifications for the same title
// change. A fingerprint identifies one (site, url, old, new) transition; a
// write-once marker per fingerprint gates dispatch.
package debounce

import (
	"fmt"

	"github.com/mediawatch/headlinewatch/internal/hash/sha256"
)

var hasher = sha256.New()

// Fingerprint derives the deterministic dedupe key for one title change.
func Fingerprint(siteID int64, url, oldTitle, newTitle string) string {
	return hasher.Hash(fmt.Appendf(nil, "%d:%s:%s:%s", siteID, url, oldTitle, newTitle))
}
