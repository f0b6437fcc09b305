package models

import (
	"encoding/json"
	"time"
)

// StoredProperty is the cross-run deduplicated view of a scraped property,
// keyed by identity fingerprint.
type StoredProperty struct {
	ID           string    `json:"id" db:"id"`
	Fingerprint  string    `json:"fingerprint" db:"fingerprint"`
	URL          string    `json:"url" db:"url"`
	Title        string    `json:"title" db:"title"`
	Price        string    `json:"price" db:"price"`
	Currency     string    `json:"currency" db:"currency"`
	City         string    `json:"city" db:"city"`
	Neighborhood string    `json:"neighborhood" db:"neighborhood"`
	PropertyType string    `json:"property_type" db:"property_type"`
	Area         string    `json:"area" db:"area"`
	Rooms        string    `json:"rooms" db:"rooms"`
	Bathrooms    string    `json:"bathrooms" db:"bathrooms"`
	FirstSeenAt  time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at" db:"last_seen_at"`
	TimesSeen    int       `json:"times_seen" db:"times_seen"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// RecordSnapshot is the full record as scraped on one run, kept per run for
// price/field history.
type RecordSnapshot struct {
	ID          int64           `json:"id" db:"id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	RunID       int64           `json:"run_id" db:"run_id"`
	URL         string          `json:"url" db:"url"`
	Data        json.RawMessage `json:"data" db:"data"`
	ScrapedAt   time.Time       `json:"scraped_at" db:"scraped_at"`
}

// Media status
const (
	MediaStatusPending  = "pending"
	MediaStatusUploaded = "uploaded"
	MediaStatusFailed   = "failed"
)

// PendingImage is a queued listing image awaiting download/upload by the
// media worker.
type PendingImage struct {
	ID          string    `json:"id" db:"id"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	URL         string    `json:"url" db:"url"`
	Status      string    `json:"status" db:"status"`
	Attempts    int       `json:"attempts" db:"attempts"`
	S3Key       string    `json:"s3_key" db:"s3_key"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
