package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"m2_harvester/browser"
	"m2_harvester/config"
	"m2_harvester/models"
)

const (
	readyTimeout   = 15 * time.Second
	descriptionCap = 500
)

// Extractor turns one detail page into a PropertyRecord. Every failure mode
// is converted into an ExtractionFailure; nothing propagates past the
// per-property scope.
type Extractor struct {
	locator PayloadLocator
	ready   []string
	timeout time.Duration
}

func NewExtractor(profile *config.SiteProfile) *Extractor {
	return &Extractor{
		locator: NextDataLocator{},
		ready:   profile.ReadySignals,
		timeout: readyTimeout,
	}
}

// Extract navigates to url on the given page, waits for one of the ready
// signals, locates the embedded payload, and maps it to a record. The second
// return value is non-nil iff the record could not be produced.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, url string) (rec models.PropertyRecord, failure *ExtractionFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &ExtractionFailure{URL: url, Reason: "unexpected failure", Err: fmt.Errorf("%v", r)}
			page.Snapshot("property_error")
		}
	}()

	if err := ctx.Err(); err != nil {
		return rec, &ExtractionFailure{URL: url, Reason: "cancelled", Err: err}
	}

	if err := page.Navigate(url); err != nil {
		page.Snapshot("property_error")
		return rec, &ExtractionFailure{URL: url, Reason: "navigation failed", Err: fmt.Errorf("%w: %v", ErrNavigationFailure, err)}
	}

	if err := e.waitReady(page); err != nil {
		page.Snapshot("property_error")
		return rec, &ExtractionFailure{URL: url, Reason: "page never became ready", Err: err}
	}

	html, err := page.Content()
	if err != nil {
		page.Snapshot("property_error")
		return rec, &ExtractionFailure{URL: url, Reason: "read page source", Err: err}
	}

	payload, err := e.locator.Locate(html)
	if err != nil {
		page.Snapshot("no_listing_data")
		return rec, &ExtractionFailure{URL: url, Reason: "no listing data", Err: err}
	}

	listing, err := listingFromPayload(payload)
	if err != nil {
		log.Printf("No listing data found at %s", url)
		page.Snapshot("no_listing_data")
		return rec, &ExtractionFailure{URL: url, Reason: "no listing data", Err: err}
	}

	return mapListing(url, listing), nil
}

// waitReady accepts either ready signal as sufficient: the title element for
// regular listings, the detail container for layouts that render the title
// late. Both absent within the timeout means the page structure changed.
func (e *Extractor) waitReady(page browser.Page) error {
	var lastErr error
	for _, selector := range e.ready {
		if err := page.WaitVisible(selector, e.timeout); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("%w: no ready signal: %v", ErrStructuralMismatch, lastErr)
}

// listingPayload mirrors the subset of the embedded JSON the record needs.
// Numeric-ish fields arrive as JSON numbers or strings depending on the
// listing, so they are held loosely and normalized below.
type listingPayload struct {
	ID    any    `json:"id"`
	Title string `json:"title"`
	Price struct {
		Value    any    `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	Location struct {
		FormattedAddress string `json:"formattedAddress"`
		Neighborhood     struct {
			Name string `json:"name"`
		} `json:"neighborhood"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
	} `json:"location"`
	PropertyType string   `json:"propertyType"`
	Area         any      `json:"area"`
	Rooms        any      `json:"rooms"`
	Bathrooms    any      `json:"bathrooms"`
	Parking      any      `json:"parking"`
	Stratum      any      `json:"stratum"`
	Status       string   `json:"status"`
	Description  string   `json:"description"`
	Features     []string `json:"features"`
	Broker       struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	} `json:"broker"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	VirtualTourURL string `json:"virtualTourUrl"`
}

func listingFromPayload(payload json.RawMessage) (*listingPayload, error) {
	var envelope struct {
		Props struct {
			PageProps struct {
				Listing json.RawMessage `json:"listing"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMissing, err)
	}

	raw := envelope.Props.PageProps.Listing
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return nil, fmt.Errorf("%w: listing object absent", ErrPayloadMissing)
	}

	var listing listingPayload
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMissing, err)
	}
	return &listing, nil
}

func mapListing(url string, l *listingPayload) models.PropertyRecord {
	currency := l.Price.Currency
	if currency == "" {
		currency = "COP"
	}

	images := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		if img.URL != "" {
			images = append(images, img.URL)
		}
	}

	features := l.Features
	if features == nil {
		features = []string{}
	}

	return models.PropertyRecord{
		URL:          url,
		Title:        l.Title,
		Price:        numericString(l.Price.Value),
		Currency:     currency,
		Address:      l.Location.FormattedAddress,
		Neighborhood: l.Location.Neighborhood.Name,
		City:         l.Location.City.Name,
		PropertyType: l.PropertyType,
		Area:         numericString(l.Area),
		Rooms:        numericString(l.Rooms),
		Bathrooms:    numericString(l.Bathrooms),
		Parking:      numericString(l.Parking),
		Stratum:      numericString(l.Stratum),
		Status:       l.Status,
		Description:  truncateDescription(l.Description, descriptionCap),
		Features:     features,
		Broker:       l.Broker.Name,
		BrokerPhone:  l.Broker.Phone,
		Images:       images,
		VirtualTour:  l.VirtualTourURL,
		PropertyID:   numericString(l.ID),
		ScrapedAt:    time.Now().Format(models.ScrapedAtLayout),
	}
}

// numericString normalizes a field that may arrive as a JSON number or a
// string. Absent values resolve to "".
func numericString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// truncateDescription collapses line breaks to spaces, caps the text at max
// runes, and appends an ellipsis. Empty descriptions stay empty.
func truncateDescription(s string, max int) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	runes := []rune(s)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes) + "..."
}
