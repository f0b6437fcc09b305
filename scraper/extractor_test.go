package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"m2_harvester/config"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestExtractFullListing(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/venta-apartamento-chapinero/1023"
	page := &fakeDetailPage{htmls: map[string]string{url: fixture(t, "detail_full.html")}}
	ex := NewExtractor(config.DefaultProfile())

	rec, failure := ex.Extract(context.Background(), page, url)
	if failure != nil {
		t.Fatalf("Extract() failed: %v", failure)
	}

	if rec.URL != url {
		t.Errorf("URL = %s", rec.URL)
	}
	if rec.Title != "Apartamento en Venta, Chapinero Alto" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.Price != "520000000" {
		t.Errorf("Price = %q, want 520000000", rec.Price)
	}
	if rec.Currency != "COP" {
		t.Errorf("Currency = %q", rec.Currency)
	}
	if rec.Address != "Carrera 4 # 58-22" {
		t.Errorf("Address = %q", rec.Address)
	}
	if rec.Neighborhood != "Chapinero Alto" || rec.City != "Bogotá" {
		t.Errorf("location = %q / %q", rec.Neighborhood, rec.City)
	}
	if rec.Area != "84.5" {
		t.Errorf("Area = %q, want 84.5", rec.Area)
	}
	if rec.Rooms != "3" || rec.Bathrooms != "2" || rec.Parking != "1" || rec.Stratum != "4" {
		t.Errorf("numeric fields = %q/%q/%q/%q", rec.Rooms, rec.Bathrooms, rec.Parking, rec.Stratum)
	}
	if len(rec.Features) != 3 {
		t.Errorf("Features = %v", rec.Features)
	}
	// Empty image URLs are dropped.
	if len(rec.Images) != 2 {
		t.Errorf("Images = %v", rec.Images)
	}
	if rec.Broker != "Inmobiliaria Andina" || rec.BrokerPhone != "+57 601 5551234" {
		t.Errorf("broker = %q / %q", rec.Broker, rec.BrokerPhone)
	}
	if rec.VirtualTour != "https://tour.example.com/1023" {
		t.Errorf("VirtualTour = %q", rec.VirtualTour)
	}
	if rec.PropertyID != "1023-M4567890" {
		t.Errorf("PropertyID = %q", rec.PropertyID)
	}
	if strings.Contains(rec.Description, "\n") {
		t.Errorf("Description still has line breaks: %q", rec.Description)
	}
	if rec.ScrapedAt == "" {
		t.Error("ScrapedAt is empty")
	}
}

func TestExtractSparseListingDefaults(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/venta-lote/4412001"
	page := &fakeDetailPage{htmls: map[string]string{url: fixture(t, "detail_sparse.html")}}
	ex := NewExtractor(config.DefaultProfile())

	rec, failure := ex.Extract(context.Background(), page, url)
	if failure != nil {
		t.Fatalf("Extract() failed: %v", failure)
	}

	if rec.Currency != "COP" {
		t.Errorf("missing currency should default to COP, got %q", rec.Currency)
	}
	if rec.Price != "180000000" {
		t.Errorf("string price not carried through: %q", rec.Price)
	}
	// JSON number id normalizes to its decimal form.
	if rec.PropertyID != "4412001" {
		t.Errorf("PropertyID = %q", rec.PropertyID)
	}
	if rec.Rooms != "" || rec.Area != "" {
		t.Errorf("absent numerics should be empty, got %q / %q", rec.Rooms, rec.Area)
	}
	if rec.Features == nil || len(rec.Features) != 0 {
		t.Errorf("absent features should be an empty slice, got %v", rec.Features)
	}
	if rec.Description != "" {
		t.Errorf("empty description should stay empty, got %q", rec.Description)
	}
}

func TestExtractNoListingObject(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/gone/000"
	page := &fakeDetailPage{htmls: map[string]string{url: fixture(t, "detail_no_listing.html")}}
	ex := NewExtractor(config.DefaultProfile())

	_, failure := ex.Extract(context.Background(), page, url)
	if failure == nil {
		t.Fatal("expected failure for a page without a listing object")
	}
	if !errors.Is(failure, ErrPayloadMissing) {
		t.Errorf("failure should wrap ErrPayloadMissing, got %v", failure.Err)
	}
	if len(page.snapshots) == 0 || page.snapshots[0] != "no_listing_data" {
		t.Errorf("expected no_listing_data snapshot, got %v", page.snapshots)
	}
}

func TestExtractMalformedPayload(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/broken/777"
	page := &fakeDetailPage{htmls: map[string]string{url: fixture(t, "detail_malformed.html")}}
	ex := NewExtractor(config.DefaultProfile())

	_, failure := ex.Extract(context.Background(), page, url)
	if failure == nil {
		t.Fatal("expected failure for malformed payload JSON")
	}
	if !errors.Is(failure, ErrPayloadMissing) {
		t.Errorf("failure should wrap ErrPayloadMissing, got %v", failure.Err)
	}
}

func TestExtractMissingScript(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/plain/888"
	page := &fakeDetailPage{htmls: map[string]string{url: fixture(t, "detail_no_script.html")}}
	ex := NewExtractor(config.DefaultProfile())

	_, failure := ex.Extract(context.Background(), page, url)
	if failure == nil {
		t.Fatal("expected failure when the data script is absent")
	}
	if !errors.Is(failure, ErrPayloadMissing) {
		t.Errorf("failure should wrap ErrPayloadMissing, got %v", failure.Err)
	}
}

func TestExtractNavigationFailure(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/unreachable/999"
	page := &fakeDetailPage{
		htmls:  map[string]string{},
		navErr: map[string]error{url: errors.New("net::ERR_CONNECTION_RESET")},
	}
	ex := NewExtractor(config.DefaultProfile())

	_, failure := ex.Extract(context.Background(), page, url)
	if failure == nil {
		t.Fatal("expected failure for navigation error")
	}
	if !errors.Is(failure, ErrNavigationFailure) {
		t.Errorf("failure should wrap ErrNavigationFailure, got %v", failure.Err)
	}
}

func TestExtractPageNeverReady(t *testing.T) {
	url := "https://www.metrocuadrado.com/inmueble/blank/123"
	page := &fakeDetailPage{htmls: map[string]string{}} // navigates fine, never renders
	ex := NewExtractor(config.DefaultProfile())
	ex.timeout = time.Millisecond

	_, failure := ex.Extract(context.Background(), page, url)
	if failure == nil {
		t.Fatal("expected failure for a page that never becomes ready")
	}
	if !errors.Is(failure, ErrStructuralMismatch) {
		t.Errorf("failure should wrap ErrStructuralMismatch, got %v", failure.Err)
	}
}

func TestExtractCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	url := "https://www.metrocuadrado.com/inmueble/whatever/1"
	page := &fakeDetailPage{htmls: map[string]string{url: fixture(t, "detail_full.html")}}
	ex := NewExtractor(config.DefaultProfile())

	_, failure := ex.Extract(ctx, page, url)
	if failure == nil {
		t.Fatal("expected failure for cancelled context")
	}
	if len(page.visited) != 0 {
		t.Errorf("cancelled extract should not navigate, visited %v", page.visited)
	}
}

func TestTruncateDescription(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := truncateDescription(long, 500)
	if len([]rune(got)) != 503 {
		t.Errorf("truncated length = %d, want 503", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got[len(got)-10:])
	}

	got = truncateDescription("línea uno\r\nlínea dos", 500)
	if got != "línea uno línea dos..." {
		t.Errorf("line breaks not collapsed: %q", got)
	}

	if got := truncateDescription("", 500); got != "" {
		t.Errorf("empty input should stay empty, got %q", got)
	}
}

func TestNumericString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"3", "3"},
		{float64(84.5), "84.5"},
		{float64(3), "3"},
		{float64(520000000), "520000000"},
	}
	for _, tc := range cases {
		if got := numericString(tc.in); got != tc.want {
			t.Errorf("numericString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
