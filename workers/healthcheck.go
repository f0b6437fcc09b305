package workers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"m2_harvester/models"
	"m2_harvester/storage"
)

// HealthcheckWorker verifies that stored listings are still live on the
// source site and marks delisted ones inactive.
type HealthcheckWorker struct {
	store      *storage.SQLiteStore
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewHealthcheckWorker(store *storage.SQLiteStore, client *http.Client) *HealthcheckWorker {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &HealthcheckWorker{
		store:      store,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *HealthcheckWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// CheckResult contains the outcome of checking one listing URL.
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Error      error
}

// Check HEAD-requests a listing URL. 200 means live; 404/410 and the
// redirect-to-search responses the site uses for removed listings mean
// delisted; anything else is treated as live.
func (w *HealthcheckWorker) Check(ctx context.Context, listingURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, "HEAD", listingURL, nil)
	if err != nil {
		return CheckResult{Error: err}
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return CheckResult{Error: err}
	}
	resp.Body.Close()

	result := CheckResult{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case 200:
		result.IsLive = true
	case 404, 410, 301, 302:
		result.IsLive = false
	default:
		result.IsLive = true
	}

	return result
}

// Run starts the healthcheck loop: every interval, re-check up to batchSize
// active properties not seen within staleAfter.
func (w *HealthcheckWorker) Run(ctx context.Context, staleAfter time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Healthcheck worker stopping")
			return
		case <-w.triggerCh:
			w.checkBatch(ctx, staleAfter, batchSize)
		case <-ticker.C:
			w.checkBatch(ctx, staleAfter, batchSize)
		}
	}
}

func (w *HealthcheckWorker) checkBatch(ctx context.Context, staleAfter time.Duration, batchSize int) {
	props, err := w.store.GetStaleActiveProperties(staleAfter, batchSize)
	if err != nil {
		log.Printf("Healthcheck: query error: %v", err)
		return
	}

	if len(props) == 0 {
		return
	}

	log.Printf("Healthcheck: checking %d stale properties", len(props))

	var live, delisted int
	for i := range props {
		p := &props[i]
		if p.URL == "" {
			w.store.TouchProperty(p.ID, time.Now())
			continue
		}

		result := w.Check(ctx, p.URL)
		if result.Error != nil {
			log.Printf("Healthcheck %s: request failed: %v", p.Fingerprint[:8], result.Error)
			w.store.TouchProperty(p.ID, time.Now()) // bump anyway to cycle through
			continue
		}

		if result.IsLive {
			live++
			w.store.TouchProperty(p.ID, time.Now())
		} else {
			delisted++
			log.Printf("Healthcheck %s: delisted (%d)", p.Fingerprint[:8], result.StatusCode)
			w.store.MarkPropertyInactive(p.ID)
		}

		time.Sleep(500 * time.Millisecond)
	}

	if live > 0 || delisted > 0 {
		w.logFunc(models.LogLevelInfo, "healthcheck", fmt.Sprintf("live %d, delisted %d", live, delisted))
	}
}
