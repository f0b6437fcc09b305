package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"m2_harvester/config"
	"m2_harvester/httputil"
	"m2_harvester/logging"
	"m2_harvester/scheduler"
	"m2_harvester/scraper"
	"m2_harvester/services"
	"m2_harvester/storage"
	"m2_harvester/workers"
)

var (
	crawlNow = flag.Bool("crawl", false, "Run one crawl and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("harvester.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting m2_harvester...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Target: %s (up to %d pages)", cfg.SearchURL, cfg.MaxPages)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pgStore *storage.PostgresStore
	if cfg.PGDSN != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Println("Postgres mirror enabled")
	}

	recordService := services.NewRecordService(store, pgStore)
	orchestrator := scraper.NewOrchestrator(cfg, store, recordService)

	if *crawlNow {
		log.Println("Running crawl...")
		records, summary, err := orchestrator.Run(ctx)
		if err != nil {
			log.Fatalf("Crawl failed: %v", err)
		}
		log.Printf("Crawl complete: %d records, %d pages, %d failures",
			len(records), summary.PagesVisited, summary.ExtractionFailures)
		if summary.Warning != "" {
			log.Printf("Warning: %s", summary.Warning)
		}
		return
	}

	// Daemon mode
	clients := httputil.NewClients(&cfg.Proxy)

	sched := scheduler.New(cfg, orchestrator, store)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var uploader workers.Uploader = workers.NewNoOpUploader()
	if cfg.S3.Bucket != "" {
		s3up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Printf("Warning: S3 uploader unavailable, images kept pending: %v", err)
		} else {
			uploader = s3up
			log.Printf("S3 uploads enabled: %s", cfg.S3.Bucket)
		}
	}

	mediaWorker := workers.NewMediaWorker(store, uploader, clients.Media)
	go mediaWorker.Run(ctx, 20, 2*time.Minute)
	log.Println("Media worker started")

	healthcheckWorker := workers.NewHealthcheckWorker(store, clients.Healthcheck)
	go healthcheckWorker.Run(ctx, 24*time.Hour, 20, 30*time.Minute)
	log.Println("Healthcheck worker started")

	sched.SetWorkers(mediaWorker, healthcheckWorker)

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}
