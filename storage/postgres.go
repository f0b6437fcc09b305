package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"m2_harvester/models"
)

// PostgresStore mirrors final records into Postgres when a DSN is
// configured. It is an optional sink; the crawl never depends on it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			fingerprint TEXT PRIMARY KEY,
			url TEXT,
			title TEXT,
			price TEXT,
			currency TEXT,
			location TEXT,
			neighborhood TEXT,
			city TEXT,
			property_type TEXT,
			area TEXT,
			rooms TEXT,
			bathrooms TEXT,
			parking TEXT,
			stratum TEXT,
			status TEXT,
			description TEXT,
			features TEXT[],
			broker TEXT,
			broker_phone TEXT,
			images TEXT[],
			virtual_tour TEXT,
			property_id TEXT,
			scraped_at TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertRecord writes one record keyed by fingerprint.
func (s *PostgresStore) UpsertRecord(ctx context.Context, fingerprint string, rec *models.PropertyRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO properties (
			fingerprint, url, title, price, currency, location, neighborhood, city,
			property_type, area, rooms, bathrooms, parking, stratum, status,
			description, features, broker, broker_phone, images, virtual_tour,
			property_id, scraped_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, NOW()
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			location = EXCLUDED.location,
			neighborhood = EXCLUDED.neighborhood,
			city = EXCLUDED.city,
			property_type = EXCLUDED.property_type,
			area = EXCLUDED.area,
			rooms = EXCLUDED.rooms,
			bathrooms = EXCLUDED.bathrooms,
			parking = EXCLUDED.parking,
			stratum = EXCLUDED.stratum,
			status = EXCLUDED.status,
			description = EXCLUDED.description,
			features = EXCLUDED.features,
			broker = EXCLUDED.broker,
			broker_phone = EXCLUDED.broker_phone,
			images = EXCLUDED.images,
			virtual_tour = EXCLUDED.virtual_tour,
			property_id = EXCLUDED.property_id,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()`,
		fingerprint, rec.URL, rec.Title, rec.Price, rec.Currency, rec.Address,
		rec.Neighborhood, rec.City, rec.PropertyType, rec.Area, rec.Rooms,
		rec.Bathrooms, rec.Parking, rec.Stratum, rec.Status, rec.Description,
		rec.Features, rec.Broker, rec.BrokerPhone, rec.Images, rec.VirtualTour,
		rec.PropertyID, rec.ScrapedAt)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM properties`).Scan(&count)
	return count, err
}
