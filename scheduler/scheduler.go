// Package scheduler drives recurring crawls and relays external commands
// from the operational store to the running daemon.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"m2_harvester/config"
	"m2_harvester/models"
	"m2_harvester/scraper"
	"m2_harvester/storage"
)

const commandPollInterval = 2 * time.Second

// Triggerable is a worker that can be kicked outside its normal cadence.
type Triggerable interface {
	Trigger()
}

// Scheduler starts crawls on a cron expression or a fixed interval, and
// polls the commands table so pause/resume/crawl_now and worker triggers
// can be issued while the daemon runs. With no schedule configured it is
// command-driven only.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	store        *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	media       Triggerable
	healthcheck Triggerable
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetWorkers registers the background workers reachable via run_media and
// run_healthcheck commands.
func (s *Scheduler) SetWorkers(media, healthcheck Triggerable) {
	s.media = media
	s.healthcheck = healthcheck
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	switch {
	case s.cfg.Scheduler.Cron != "":
		if _, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() { s.runCrawl(ctx) }); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.cfg.Scheduler.Cron, err)
		}
		s.cron.Start()
		log.Printf("Scheduler: cron %q", s.cfg.Scheduler.Cron)

	case s.cfg.Scheduler.Interval > 0:
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runCrawl(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		log.Printf("Scheduler: every %s", s.cfg.Scheduler.Interval)

	default:
		log.Println("Scheduler: no schedule configured, commands only")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one crawl synchronously.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	_, _, err := s.orchestrator.Run(ctx)
	return err
}

func (s *Scheduler) runCrawl(ctx context.Context) {
	if _, _, err := s.orchestrator.Run(ctx); err != nil {
		log.Printf("Scheduled crawl failed: %v", err)
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatchPending()
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) dispatchPending() {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		log.Printf("Command poll failed: %v", err)
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		log.Printf("Command: %s", cmd.Command)
		if err := s.dispatch(cmd); err != nil {
			log.Printf("Command %s failed: %v", cmd.Command, err)
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("Marking command %d processed failed: %v", cmd.ID, err)
		}
	}
}

func (s *Scheduler) dispatch(cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunMedia:
		if s.media != nil {
			s.media.Trigger()
		}
		return nil
	case models.CmdRunHealthcheck:
		if s.healthcheck != nil {
			s.healthcheck.Trigger()
		}
		return nil
	default:
		return s.orchestrator.HandleCommand(cmd)
	}
}
