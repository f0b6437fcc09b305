package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"m2_harvester/browser"
	"m2_harvester/config"
	"m2_harvester/models"
)

type fakeSession struct {
	pages  []browser.Page
	next   int
	closed bool
}

func (s *fakeSession) NewPage() (browser.Page, error) {
	p := s.pages[s.next]
	s.next++
	return p, nil
}

func (s *fakeSession) Close() {
	s.closed = true
}

func orchestratorConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SearchURL:  "https://www.metrocuadrado.com/apartamentos/venta/bogota/",
		MaxPages:   1,
		OutputPath: filepath.Join(t.TempDir(), "out.csv"),
		SiteID:     "metrocuadrado",
		Crawl:      fastCrawl,
	}
}

func TestOrchestratorRunWritesCSV(t *testing.T) {
	urls := []string{detailURL(1), detailURL(2)}

	search := &fakeSearchPage{}
	search.views = []*searchView{resultsView(search, false, urls...)}
	detail := detailFixtures(t, urls...)
	session := &fakeSession{pages: []browser.Page{search, detail}}

	cfg := orchestratorConfig(t)
	o := NewOrchestrator(cfg, nil, nil)
	o.SetSessionFactory(func(headless bool, debugDir string) (browser.Session, error) {
		return session, nil
	})

	records, summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if summary.RecordsExtracted != 2 {
		t.Errorf("RecordsExtracted = %d", summary.RecordsExtracted)
	}
	if !session.closed {
		t.Error("browser session was not released")
	}

	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV has %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "url,title,price") {
		t.Errorf("unexpected CSV header: %s", lines[0])
	}
}

func TestOrchestratorSessionFailureIsFatal(t *testing.T) {
	cfg := orchestratorConfig(t)
	o := NewOrchestrator(cfg, nil, nil)
	o.SetSessionFactory(func(headless bool, debugDir string) (browser.Session, error) {
		return nil, os.ErrDeadlineExceeded
	})

	_, _, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when no session can be acquired")
	}
	if !strings.Contains(err.Error(), "acquire browser session") {
		t.Errorf("error = %v", err)
	}
}

func TestOrchestratorPauseResume(t *testing.T) {
	cfg := orchestratorConfig(t)
	o := NewOrchestrator(cfg, nil, nil)
	o.SetSessionFactory(func(headless bool, debugDir string) (browser.Session, error) {
		t.Fatal("paused orchestrator must not open a session")
		return nil, nil
	})

	if err := o.HandleCommand(&models.Command{Command: models.CmdPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !o.IsPaused() {
		t.Fatal("orchestrator not paused")
	}

	records, _, err := o.Run(context.Background())
	if err != nil || records != nil {
		t.Fatalf("paused run should be a silent no-op, got %v / %v", records, err)
	}

	if err := o.HandleCommand(&models.Command{Command: models.CmdResume}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if o.IsPaused() {
		t.Fatal("orchestrator still paused after resume")
	}
}
