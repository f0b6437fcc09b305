package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"m2_harvester/browser"
	"m2_harvester/config"
	"m2_harvester/models"
	"m2_harvester/output"
	"m2_harvester/services"
	"m2_harvester/storage"
)

// SessionFactory acquires a browser session. Swapped for a fake in tests.
type SessionFactory func(headless bool, debugDir string) (browser.Session, error)

// Orchestrator composes the walk: acquires the browser session, drives the
// controller, records the run, fans records out to storage, and exports the
// CSV artifact. Session acquisition is the only fatal failure.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	records  *services.RecordService
	sessions SessionFactory
	paused   bool
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, records *services.RecordService) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		records:  records,
		sessions: browser.NewSession,
	}
}

// SetSessionFactory overrides how browser sessions are acquired.
func (o *Orchestrator) SetSessionFactory(f SessionFactory) {
	o.sessions = f
}

// Run executes one full crawl and returns the accumulated records with a
// summary of what happened. The browser session is released on every exit
// path, including cancellation.
func (o *Orchestrator) Run(ctx context.Context) ([]models.PropertyRecord, Summary, error) {
	if o.paused {
		log.Println("Crawler is paused, skipping run")
		return nil, Summary{}, nil
	}

	profile := o.cfg.Profile()

	run := &models.CrawlRun{
		SiteID:    profile.ID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if o.store != nil {
		runID, err := o.store.CreateRun(run)
		if err != nil {
			log.Printf("Warning: failed to record run: %v", err)
		} else {
			run.ID = runID
		}
	}

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting crawl of %s (limit %d pages)", o.cfg.SearchURL, o.cfg.MaxPages))

	session, err := o.sessions(o.cfg.Headless, o.cfg.DebugDir)
	if err != nil {
		o.finalize(run, Summary{Warning: err.Error()}, models.RunStatusFailed)
		return nil, Summary{}, fmt.Errorf("acquire browser session: %w", err)
	}
	defer session.Close()

	searchPage, err := session.NewPage()
	if err != nil {
		o.finalize(run, Summary{Warning: err.Error()}, models.RunStatusFailed)
		return nil, Summary{}, fmt.Errorf("open search page: %w", err)
	}
	detailPage, err := session.NewPage()
	if err != nil {
		o.finalize(run, Summary{Warning: err.Error()}, models.RunStatusFailed)
		return nil, Summary{}, fmt.Errorf("open detail page: %w", err)
	}

	controller := NewController(searchPage, detailPage, profile, o.cfg.Crawl)
	records, summary := controller.Run(ctx, o.cfg.SearchURL, o.cfg.MaxPages)

	status := models.RunStatusCompleted
	if summary.Warning != "" {
		status = models.RunStatusPartial
	}
	o.finalize(run, summary, status)

	o.log(run, models.LogLevelInfo, fmt.Sprintf("Crawl finished: %d pages, %d links, %d records, %d failures",
		summary.PagesVisited, summary.LinksDiscovered, summary.RecordsExtracted, summary.ExtractionFailures))

	if o.records != nil {
		for i := range records {
			if _, err := o.records.Process(ctx, &records[i], run.ID); err != nil {
				o.log(run, models.LogLevelWarn, fmt.Sprintf("Store fan-out failed for %s: %v", records[i].URL, err))
			}
		}
	}

	if o.cfg.OutputPath != "" && len(records) > 0 {
		if err := output.WriteCSV(o.cfg.OutputPath, records); err != nil {
			o.log(run, models.LogLevelWarn, fmt.Sprintf("CSV export failed: %v", err))
		} else {
			log.Printf("Saved %d properties to %s", len(records), o.cfg.OutputPath)
		}
	}

	return records, summary, nil
}

func (o *Orchestrator) finalize(run *models.CrawlRun, summary Summary, status models.RunStatus) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	run.PagesVisited = summary.PagesVisited
	run.LinksDiscovered = summary.LinksDiscovered
	run.RecordsExtracted = summary.RecordsExtracted
	run.ExtractionFailures = summary.ExtractionFailures
	run.Warning = summary.Warning

	if o.store != nil {
		if err := o.store.UpdateRun(run); err != nil {
			log.Printf("Warning: failed to update run: %v", err)
		}
		o.store.UpdateSiteStats(run.SiteID)
	}
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	ctx := context.Background()

	switch cmd.Command {
	case models.CmdCrawlNow:
		_, _, err := o.Run(ctx)
		return err
	case models.CmdPause:
		o.paused = true
		log.Println("Crawler paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Crawler resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(run *models.CrawlRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, run.SiteID, message)
	if o.store != nil {
		o.store.Log(&run.ID, level, message, run.SiteID)
	}
}
