// Package services contains the per-record fan-out that runs after a crawl:
// identity, persistence, and media queueing.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"m2_harvester/identity"
	"m2_harvester/models"
	"m2_harvester/storage"
)

// RecordService takes each extracted record and fans it out: fingerprint,
// property upsert, snapshot, image queueing, and the optional Postgres
// mirror. Processing is idempotent per fingerprint.
type RecordService struct {
	store *storage.SQLiteStore
	pg    *storage.PostgresStore
}

func NewRecordService(store *storage.SQLiteStore, pg *storage.PostgresStore) *RecordService {
	return &RecordService{store: store, pg: pg}
}

// ProcessResult contains the outcome of processing one record.
type ProcessResult struct {
	Fingerprint   string
	IsNewProperty bool
	ImagesQueued  int
}

func (s *RecordService) Process(ctx context.Context, rec *models.PropertyRecord, runID int64) (*ProcessResult, error) {
	fingerprint := identity.Fingerprint(rec)
	result := &ProcessResult{Fingerprint: fingerprint}
	now := time.Now()

	isNew, err := s.store.UpsertProperty(&models.StoredProperty{
		ID:           uuid.NewString(),
		Fingerprint:  fingerprint,
		URL:          rec.URL,
		Title:        rec.Title,
		Price:        rec.Price,
		Currency:     rec.Currency,
		City:         rec.City,
		Neighborhood: rec.Neighborhood,
		PropertyType: rec.PropertyType,
		Area:         rec.Area,
		Rooms:        rec.Rooms,
		Bathrooms:    rec.Bathrooms,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert property: %w", err)
	}
	result.IsNewProperty = isNew

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if err := s.store.CreateSnapshot(&models.RecordSnapshot{
		Fingerprint: fingerprint,
		RunID:       runID,
		URL:         rec.URL,
		Data:        data,
		ScrapedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	for _, imageURL := range rec.Images {
		queued, err := s.store.EnqueueImage(&models.PendingImage{
			ID:          uuid.NewString(),
			Fingerprint: fingerprint,
			URL:         imageURL,
		})
		if err != nil {
			log.Printf("Warning: failed to queue image %s: %v", imageURL, err)
			continue
		}
		if queued {
			result.ImagesQueued++
		}
	}

	if s.pg != nil {
		if err := s.pg.UpsertRecord(ctx, fingerprint, rec); err != nil {
			log.Printf("Warning: Postgres mirror failed for %s: %v", rec.URL, err)
		}
	}

	return result, nil
}
