// Package title classifies headline edits as significant or cosmetic.
package title

import (
	"sort"
	"strings"
	"unicode"
)

// Significant reports whether the edit from old to new is editorially
// meaningful. Live-ticker titles never are. Both titles are reduced to an
// equality key (upper-cased, whitespace/punctuation/digits dropped, sorted);
// a key length delta above one forces significance, otherwise more than two
// positional mismatches between the paired keys do. Trailing unpaired key
// entries of the longer title are ignored on purpose: only the length-delta
// check sees them.
func Significant(old, new string) bool {
	if isBadTitle(old) || isBadTitle(new) {
		return false
	}

	oldKey := equalityKey(old)
	newKey := equalityKey(new)

	delta := len(oldKey) - len(newKey)
	if delta < 0 {
		delta = -delta
	}
	if delta > 1 {
		return true
	}

	neq := 0
	for i := range min(len(oldKey), len(newKey)) {
		if oldKey[i] != newKey[i] {
			neq++
		}
	}
	return neq > 2
}

// isBadTitle filters live-ticker relabeling, which churns constantly.
func isBadTitle(title string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(title)), "live:")
}

// equalityKey normalizes a title for fuzzy comparison. Sorting makes the
// comparison tolerant of reordering, dropping digits and punctuation makes
// it tolerant of counter updates ("Foo: 42" vs "Foo: 43").
func equalityKey(title string) []rune {
	key := make([]rune, 0, len(title))
	for _, r := range strings.ToUpper(title) {
		if unicode.IsSpace(r) || isNoise(r) {
			continue
		}
		key = append(key, r)
	}
	sort.Slice(key, func(i, j int) bool { return key[i] < key[j] })
	return key
}

// isNoise matches ASCII punctuation and digits.
func isNoise(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= '!' && r <= '/':
		return true
	case r >= ':' && r <= '@':
		return true
	case r >= '[' && r <= '`':
		return true
	case r >= '{' && r <= '~':
		return true
	}
	return false
}
