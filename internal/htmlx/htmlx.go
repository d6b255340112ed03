// Package htmlx wraps goquery behind the two extraction primitives the
// pipeline needs: link targets and selector-matched text.
package htmlx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Selector is a precompiled CSS selector.
type Selector struct {
	matcher cascadia.Selector
}

// CompileSelector precompiles a CSS selector for repeated use.
func CompileSelector(selector string) (Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return Selector{}, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	return Selector{matcher: m}, nil
}

// ExtractLinks returns the raw href attribute values of every hyperlink in
// the document, in document order, untrimmed and unresolved.
func ExtractLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var hrefs []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

// ExtractText returns the text content of every node matching the selector,
// in document order. Zero matches yield an empty slice, not an error.
func ExtractText(body []byte, selector Selector) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var texts []string
	doc.FindMatcher(selector.matcher).Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(sel.Text()))
	})
	return texts, nil
}
