package scraper

import (
	"errors"
	"time"

	"m2_harvester/browser"
	"m2_harvester/config"
)

// fastCrawl removes the human-pacing delays for tests.
var fastCrawl = config.CrawlConfig{
	SettleDelay: time.Millisecond,
	PacingDelay: time.Millisecond,
	ScrollPause: time.Millisecond,
}

type fakeElement struct {
	attrs    map[string]string
	children []browser.Element
	visible  bool
	clickErr error
	onClick  func()
	scrolled bool
}

func (e *fakeElement) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok && v != ""
}

func (e *fakeElement) All(selector string) ([]browser.Element, error) {
	return e.children, nil
}

func (e *fakeElement) Click() error {
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) ScrollIntoView() error {
	e.scrolled = true
	return nil
}

func (e *fakeElement) Visible() bool {
	return e.visible
}

func card(hrefs ...string) *fakeElement {
	var anchors []browser.Element
	for _, href := range hrefs {
		anchors = append(anchors, &fakeElement{attrs: map[string]string{"href": href}})
	}
	return &fakeElement{children: anchors, visible: true}
}

// searchView is the rendered state of one search-results page.
type searchView struct {
	cards      map[string][]browser.Element
	singles    map[string]browser.Element
	presentErr error
}

// fakeSearchPage plays back a scripted sequence of search-results views.
// Clicking the view's next control advances to the following view.
type fakeSearchPage struct {
	views     []*searchView
	idx       int
	navErr    error
	visited   []string
	snapshots []string
	dumps     []string
	scrolls   int
}

func (p *fakeSearchPage) cur() *searchView {
	return p.views[p.idx]
}

func (p *fakeSearchPage) Navigate(url string) error {
	p.visited = append(p.visited, url)
	return p.navErr
}

func (p *fakeSearchPage) WaitVisible(selector string, timeout time.Duration) error {
	if el, ok := p.cur().singles[selector]; ok && el.Visible() {
		return nil
	}
	return errors.New("timeout waiting for " + selector)
}

func (p *fakeSearchPage) WaitPresent(selector string, timeout time.Duration) error {
	return p.cur().presentErr
}

func (p *fakeSearchPage) Elements(selector string) ([]browser.Element, error) {
	return p.cur().cards[selector], nil
}

func (p *fakeSearchPage) Element(selector string) (browser.Element, bool) {
	el, ok := p.cur().singles[selector]
	return el, ok
}

func (p *fakeSearchPage) Eval(script string) (any, error) {
	p.scrolls++
	return nil, nil
}

func (p *fakeSearchPage) Content() (string, error) {
	return "", nil
}

func (p *fakeSearchPage) Snapshot(name string) (string, error) {
	p.snapshots = append(p.snapshots, name)
	return name + ".png", nil
}

func (p *fakeSearchPage) DumpSource(name string) (string, error) {
	p.dumps = append(p.dumps, name)
	return name + ".html", nil
}

// fakeDetailPage serves scripted detail-page HTML per URL. A URL with no
// entry never becomes ready.
type fakeDetailPage struct {
	htmls     map[string]string
	navErr    map[string]error
	cur       string
	visited   []string
	snapshots []string
}

func (p *fakeDetailPage) Navigate(url string) error {
	p.cur = url
	p.visited = append(p.visited, url)
	if p.navErr != nil {
		return p.navErr[url]
	}
	return nil
}

func (p *fakeDetailPage) WaitVisible(selector string, timeout time.Duration) error {
	if _, ok := p.htmls[p.cur]; ok {
		return nil
	}
	return errors.New("timeout waiting for " + selector)
}

func (p *fakeDetailPage) WaitPresent(selector string, timeout time.Duration) error {
	return p.WaitVisible(selector, timeout)
}

func (p *fakeDetailPage) Elements(selector string) ([]browser.Element, error) {
	return nil, nil
}

func (p *fakeDetailPage) Element(selector string) (browser.Element, bool) {
	return nil, false
}

func (p *fakeDetailPage) Eval(script string) (any, error) {
	return nil, nil
}

func (p *fakeDetailPage) Content() (string, error) {
	return p.htmls[p.cur], nil
}

func (p *fakeDetailPage) Snapshot(name string) (string, error) {
	p.snapshots = append(p.snapshots, name)
	return name + ".png", nil
}

func (p *fakeDetailPage) DumpSource(name string) (string, error) {
	return name + ".html", nil
}

// detailHTML wraps a __NEXT_DATA__ payload in a minimal detail page.
func detailHTML(payload string) string {
	return `<html><head><script id="__NEXT_DATA__" type="application/json">` + payload + `</script></head>` +
		`<body><h1 data-testid="title-listing-detail">Listing</h1></body></html>`
}

// listingEnvelope wraps a listing object in the props.pageProps envelope.
func listingEnvelope(listing string) string {
	return `{"props":{"pageProps":{"listing":` + listing + `}}}`
}

func minimalListing(id string) string {
	return `{"id":"` + id + `","title":"Apartamento en Chapinero","price":{"value":350000000,"currency":"COP"}}`
}
