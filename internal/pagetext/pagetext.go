// Package pagetext extracts readable text from an HTML page so a whole page
// can be fed into the summarize mode. Boilerplate elements (scripts, styles,
// navigation chrome) are stripped; the article body is preferred when the
// page marks one up.
package pagetext

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the extracted readable content of one HTML document.
type Page struct {
	Title string
	Text  string
}

// Selectors tried in order for the main content region; the first one with
// meaningful text wins, falling back to body.
var contentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	"#content",
	".content",
}

// Elements that never contribute readable text.
const strippedElements = "script, style, noscript, iframe, svg, nav, header, footer, aside"

// Extract parses HTML from r and returns its readable content.
func Extract(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse HTML: %w", err)
	}

	page := Page{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find(strippedElements).Remove()

	for _, sel := range contentSelectors {
		if text := regionText(doc.Find(sel).First()); text != "" {
			page.Text = text
			return page, nil
		}
	}
	page.Text = regionText(doc.Find("body").First())
	return page, nil
}

// ExtractString is Extract over an in-memory document.
func ExtractString(html string) (Page, error) {
	return Extract(strings.NewReader(html))
}

// regionText collects block-level text from a region, one paragraph per
// line, with whitespace normalized.
func regionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	var parts []string
	blocks := sel.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre")
	if blocks.Length() == 0 {
		return cleanText(sel.Text())
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
