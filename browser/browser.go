// Package browser wraps the browser-automation engine behind narrow
// interfaces so the crawl pipeline never touches playwright types directly.
package browser

import "time"

// Session owns one running browser. Sessions are not shareable between
// concurrent walks; each walk gets its own.
type Session interface {
	NewPage() (Page, error)
	Close()
}

// Page is a handle to one rendered tab. Selectors are opaque strings passed
// through to the engine.
type Page interface {
	Navigate(url string) error
	WaitVisible(selector string, timeout time.Duration) error
	WaitPresent(selector string, timeout time.Duration) error
	Elements(selector string) ([]Element, error)
	Element(selector string) (Element, bool)
	Eval(script string) (any, error)
	Content() (string, error)

	// Snapshot and DumpSource write debug artifacts. They are best-effort:
	// failure paths call them for diagnostics only.
	Snapshot(name string) (string, error)
	DumpSource(name string) (string, error)
}

// Element is one node within a rendered page.
type Element interface {
	Attribute(name string) (string, bool)
	All(selector string) ([]Element, error)
	Click() error
	ScrollIntoView() error
	Visible() bool
}
