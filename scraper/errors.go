package scraper

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the crawl. Each sentinel maps to a documented
// non-fatal recovery path; anything outside these is an unexpected failure
// and is contained at the narrowest enclosing scope.
var (
	// ErrStructuralMismatch: an expected element or ready signal did not
	// appear within its timeout. Recovered by falling back or skipping.
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrPayloadMissing: the embedded data payload is absent, empty, or
	// unparseable. Recovered by skipping the single property.
	ErrPayloadMissing = errors.New("payload missing")

	// ErrNavigationFailure: a page transition failed or timed out.
	// Recovered by ending the walk early with partial results.
	ErrNavigationFailure = errors.New("navigation failure")
)

// ExtractionFailure is the per-item result for a detail page that could not
// produce a record. It never aborts the page it belongs to.
type ExtractionFailure struct {
	URL    string
	Reason string
	Err    error
}

func (f *ExtractionFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", f.URL, f.Reason, f.Err)
	}
	return fmt.Sprintf("extract %s: %s", f.URL, f.Reason)
}

func (f *ExtractionFailure) Unwrap() error {
	return f.Err
}
