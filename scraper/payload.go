package scraper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PayloadLocator finds the embedded structured payload in a rendered detail
// page. Isolating this behind an interface keeps the page-framework
// convention (currently Next.js) out of the extraction logic.
type PayloadLocator interface {
	Locate(html string) (json.RawMessage, error)
}

// NextDataLocator reads the script#__NEXT_DATA__ node Next.js embeds in
// every server-rendered page.
type NextDataLocator struct{}

func (NextDataLocator) Locate(html string) (json.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	text := doc.Find("script#__NEXT_DATA__").First().Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("script#__NEXT_DATA__ not found: %w", ErrPayloadMissing)
	}
	return json.RawMessage(text), nil
}
