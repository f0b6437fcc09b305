package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"m2_harvester/browser"
	"m2_harvester/config"
	"m2_harvester/models"
)

const (
	defaultSettleDelay = 3 * time.Second
	defaultPacingDelay = 2 * time.Second
	defaultScrollPause = 2 * time.Second
	scrollPasses       = 2
	cookieTimeout      = 5 * time.Second
	paginationTimeout  = 15 * time.Second
)

// PageCursor is the pagination progress state threaded through the walk.
// Page is 1-indexed and never exceeds Limit.
type PageCursor struct {
	Page    int
	Limit   int
	Records int
}

// Summary is what the walk reports back alongside the records.
type Summary struct {
	PagesVisited       int
	LinksDiscovered    int
	RecordsExtracted   int
	ExtractionFailures int
	Warning            string
}

type crawlState int

const (
	stateLoadingSearchPage crawlState = iota
	stateDiscoveringLinks
	stateExtractingRecords
	stateAdvancingPage
	stateDone
	stateAborted
)

// Controller drives the pagination walk:
// LoadingSearchPage -> DiscoveringLinks -> ExtractingRecords -> AdvancingPage
// and back to DiscoveringLinks, until Done. Aborted is reached only when a
// page-level error escapes the contained per-property scopes; accumulated
// records survive either terminal state.
type Controller struct {
	searchPage browser.Page
	detailPage browser.Page
	chain      *DiscoveryChain
	extractor  *Extractor
	profile    *config.SiteProfile

	settleDelay time.Duration
	pacingDelay time.Duration
	scrollPause time.Duration
}

func NewController(searchPage, detailPage browser.Page, profile *config.SiteProfile, crawl config.CrawlConfig) *Controller {
	c := &Controller{
		searchPage:  searchPage,
		detailPage:  detailPage,
		chain:       NewDiscoveryChain(profile),
		extractor:   NewExtractor(profile),
		profile:     profile,
		settleDelay: defaultSettleDelay,
		pacingDelay: defaultPacingDelay,
		scrollPause: defaultScrollPause,
	}
	if crawl.SettleDelay > 0 {
		c.settleDelay = crawl.SettleDelay
	}
	if crawl.PacingDelay > 0 {
		c.pacingDelay = crawl.PacingDelay
	}
	if crawl.ScrollPause > 0 {
		c.scrollPause = crawl.ScrollPause
	}
	return c
}

// walk is the per-run mutable state. It belongs to one Run invocation; the
// controller itself holds no crawl progress between runs.
type walk struct {
	cursor  PageCursor
	links   []string
	records []models.PropertyRecord
	summary Summary
}

// Run executes the walk. It always returns the accumulated records, even
// when the walk ends early or aborts; the summary carries the warning text
// for non-clean endings.
func (c *Controller) Run(ctx context.Context, searchURL string, pageLimit int) (records []models.PropertyRecord, summary Summary) {
	w := &walk{cursor: PageCursor{Page: 1, Limit: pageLimit}}

	defer func() {
		records = w.records
		summary = w.summary
		if r := recover(); r != nil {
			w.summary.Warning = fmt.Sprintf("crawl aborted: %v", r)
			records = w.records
			summary = w.summary
			log.Printf("Crawl aborted on page %d: %v", w.cursor.Page, r)
		}
	}()

	for state := stateLoadingSearchPage; state != stateDone && state != stateAborted; {
		if err := ctx.Err(); err != nil {
			w.summary.Warning = "crawl cancelled"
			return w.records, w.summary
		}

		switch state {
		case stateLoadingSearchPage:
			state = c.loadSearchPage(ctx, searchURL, w)
		case stateDiscoveringLinks:
			state = c.discoverLinks(ctx, w)
		case stateExtractingRecords:
			state = c.extractRecords(ctx, w)
		case stateAdvancingPage:
			state = c.advancePage(ctx, w)
		}
	}

	return w.records, w.summary
}

func (c *Controller) loadSearchPage(ctx context.Context, searchURL string, w *walk) crawlState {
	log.Printf("Navigating to search page: %s", searchURL)
	if err := c.searchPage.Navigate(searchURL); err != nil {
		w.summary.Warning = fmt.Sprintf("search page navigation failed: %v", err)
		return stateAborted
	}
	c.sleep(ctx, c.settleDelay)
	c.searchPage.Snapshot("initial_page")

	c.dismissCookieDialog()

	return stateDiscoveringLinks
}

// dismissCookieDialog is best-effort: absence of the dialog is not an error.
func (c *Controller) dismissCookieDialog() {
	if c.profile.CookieSelector == "" {
		return
	}
	if err := c.searchPage.WaitVisible(c.profile.CookieSelector, cookieTimeout); err != nil {
		log.Println("No cookie dialog found")
		return
	}
	if btn, ok := c.searchPage.Element(c.profile.CookieSelector); ok {
		if err := btn.Click(); err == nil {
			log.Println("Accepted cookies")
			c.searchPage.Snapshot("after_cookies")
		}
	}
}

func (c *Controller) discoverLinks(ctx context.Context, w *walk) crawlState {
	w.summary.PagesVisited++
	log.Printf("Processing page %d/%d", w.cursor.Page, w.cursor.Limit)

	// Incremental scrolls trigger the lazy-loaded cards.
	for i := 0; i < scrollPasses; i++ {
		c.searchPage.Eval("window.scrollTo(0, document.body.scrollHeight);")
		c.sleep(ctx, c.scrollPause)
	}
	c.searchPage.Snapshot(fmt.Sprintf("after_scroll_page_%d", w.cursor.Page))

	w.links = c.chain.Discover(c.searchPage)
	if len(w.links) == 0 {
		// End of results or a layout none of the strategies recognize;
		// either way a terminal signal, not an error. The source dump is
		// the diagnostic aid for telling the two apart.
		log.Printf("No listing links found on page %d, stopping", w.cursor.Page)
		c.searchPage.DumpSource(fmt.Sprintf("page_%d_source", w.cursor.Page))
		c.searchPage.Snapshot(fmt.Sprintf("no_cards_page_%d", w.cursor.Page))
		return stateDone
	}

	w.summary.LinksDiscovered += len(w.links)
	log.Printf("Found %d unique listing URLs", len(w.links))
	return stateExtractingRecords
}

func (c *Controller) extractRecords(ctx context.Context, w *walk) crawlState {
	for i, link := range w.links {
		if ctx.Err() != nil {
			w.summary.Warning = "crawl cancelled"
			return stateDone
		}

		log.Printf("Processing property %d/%d: %s", i+1, len(w.links), link)
		record, failure := c.extractor.Extract(ctx, c.detailPage, link)
		if failure != nil {
			log.Printf("Extraction failed: %v", failure)
			w.summary.ExtractionFailures++
		} else {
			w.records = append(w.records, record)
			w.cursor.Records++
			w.summary.RecordsExtracted++
		}

		c.sleep(ctx, c.pacingDelay)
	}

	w.links = nil
	return stateAdvancingPage
}

func (c *Controller) advancePage(ctx context.Context, w *walk) crawlState {
	if w.cursor.Page >= w.cursor.Limit {
		log.Printf("Page limit %d reached", w.cursor.Limit)
		return stateDone
	}

	next, rule := c.findNextControl()
	if next == nil {
		log.Println("Next page control not found, stopping pagination")
		return stateDone
	}
	log.Printf("Advancing via %s rule", rule)

	next.ScrollIntoView()
	if err := next.Click(); err != nil {
		log.Printf("Next page click failed: %v", err)
		c.searchPage.Snapshot("next_page_error")
		return stateDone
	}

	if err := c.searchPage.WaitPresent(c.profile.CardsPresent, paginationTimeout); err != nil {
		log.Printf("Timed out waiting for page %d listings: %v", w.cursor.Page+1, err)
		c.searchPage.Snapshot("next_page_error")
		return stateDone
	}
	c.sleep(ctx, c.settleDelay)

	w.cursor.Page++
	c.searchPage.Snapshot(fmt.Sprintf("after_navigation_page_%d", w.cursor.Page))
	return stateDiscoveringLinks
}

// findNextControl tries the ordered next-page locator rules; first visible
// match wins.
func (c *Controller) findNextControl() (browser.Element, string) {
	for _, rule := range c.profile.NextRules {
		if el, ok := c.searchPage.Element(rule.Selector); ok && el.Visible() {
			return el, rule.Name
		}
	}
	return nil, ""
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
