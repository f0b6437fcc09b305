package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// CrawlRun is one execution of the pagination walk, persisted for the
// scheduler and for post-hoc inspection.
type CrawlRun struct {
	ID                 int64      `json:"id" db:"id"`
	SiteID             string     `json:"site_id" db:"site_id"`
	StartedAt          time.Time  `json:"started_at" db:"started_at"`
	FinishedAt         *time.Time `json:"finished_at" db:"finished_at"`
	Status             RunStatus  `json:"status" db:"status"`
	PagesVisited       int        `json:"pages_visited" db:"pages_visited"`
	LinksDiscovered    int        `json:"links_discovered" db:"links_discovered"`
	RecordsExtracted   int        `json:"records_extracted" db:"records_extracted"`
	ExtractionFailures int        `json:"extraction_failures" db:"extraction_failures"`
	Warning            string     `json:"warning" db:"warning"`
}

type SiteStats struct {
	SiteID            string     `json:"site_id" db:"site_id"`
	LastRunAt         *time.Time `json:"last_run_at" db:"last_run_at"`
	LastRunStatus     string     `json:"last_run_status" db:"last_run_status"`
	TotalProperties   int        `json:"total_properties" db:"total_properties"`
	TotalSnapshots    int        `json:"total_snapshots" db:"total_snapshots"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	AvgRunDurationSec int        `json:"avg_run_duration_sec" db:"avg_run_duration_sec"`
}
