package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"m2_harvester/models"
)

// SQLiteStore is the operational store: crawl runs, run logs, the
// cross-run deduplicated property table, per-run record snapshots, the
// pending media queue, and the command channel for daemon mode.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		fingerprint TEXT UNIQUE NOT NULL,
		url TEXT,
		title TEXT,
		price TEXT,
		currency TEXT,
		city TEXT,
		neighborhood TEXT,
		property_type TEXT,
		area TEXT,
		rooms TEXT,
		bathrooms TEXT,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1,
		is_active BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS record_snapshots (
		id INTEGER PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		run_id INTEGER,
		url TEXT,
		data JSON,
		scraped_at DATETIME,
		FOREIGN KEY (fingerprint) REFERENCES properties(fingerprint)
	);

	CREATE TABLE IF NOT EXISTS pending_media (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		s3_key TEXT,
		content_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(url)
	);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_visited INTEGER,
		links_discovered INTEGER,
		records_extracted INTEGER,
		extraction_failures INTEGER,
		warning TEXT
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_properties INTEGER,
		total_snapshots INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_properties_fingerprint ON properties(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_snapshots_fingerprint ON record_snapshots(fingerprint, scraped_at);
	CREATE INDEX IF NOT EXISTS idx_media_pending ON pending_media(status) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON crawl_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON crawl_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertProperty inserts a property row keyed by fingerprint, or refreshes
// last_seen_at/times_seen on re-sighting. Returns true when the row is new.
func (s *SQLiteStore) UpsertProperty(p *models.StoredProperty) (bool, error) {
	var existingID string
	err := s.db.QueryRow(`SELECT id FROM properties WHERE fingerprint = ?`, p.Fingerprint).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	isNew := err == sql.ErrNoRows

	_, err = s.db.Exec(`
		INSERT INTO properties (id, fingerprint, url, title, price, currency, city, neighborhood,
			property_type, area, rooms, bathrooms, first_seen_at, last_seen_at, times_seen, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, TRUE)
		ON CONFLICT(fingerprint) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			price = excluded.price,
			last_seen_at = excluded.last_seen_at,
			times_seen = times_seen + 1,
			is_active = TRUE`,
		p.ID, p.Fingerprint, p.URL, p.Title, p.Price, p.Currency, p.City, p.Neighborhood,
		p.PropertyType, p.Area, p.Rooms, p.Bathrooms, p.FirstSeenAt, p.LastSeenAt)
	return isNew, err
}

func (s *SQLiteStore) GetPropertyByFingerprint(fingerprint string) (*models.StoredProperty, error) {
	row := s.db.QueryRow(`
		SELECT id, fingerprint, url, title, price, currency, city, neighborhood, property_type,
			area, rooms, bathrooms, first_seen_at, last_seen_at, times_seen, COALESCE(is_active, TRUE)
		FROM properties WHERE fingerprint = ?`, fingerprint)

	var p models.StoredProperty
	err := row.Scan(&p.ID, &p.Fingerprint, &p.URL, &p.Title, &p.Price, &p.Currency, &p.City,
		&p.Neighborhood, &p.PropertyType, &p.Area, &p.Rooms, &p.Bathrooms,
		&p.FirstSeenAt, &p.LastSeenAt, &p.TimesSeen, &p.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) CreateSnapshot(snap *models.RecordSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO record_snapshots (fingerprint, run_id, url, data, scraped_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Fingerprint, snap.RunID, snap.URL, snap.Data, snap.ScrapedAt)
	return err
}

// EnqueueImage queues a listing image for the media worker. Duplicate URLs
// are ignored.
func (s *SQLiteStore) EnqueueImage(img *models.PendingImage) (bool, error) {
	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO pending_media (id, fingerprint, url, status, attempts)
		VALUES (?, ?, ?, 'pending', 0)`,
		img.ID, img.Fingerprint, img.URL)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) GetPendingMedia(limit int) ([]models.PendingImage, error) {
	rows, err := s.db.Query(`
		SELECT id, fingerprint, url, status, attempts, COALESCE(s3_key, ''), COALESCE(content_hash, ''), created_at
		FROM pending_media WHERE status = 'pending' ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []models.PendingImage
	for rows.Next() {
		var m models.PendingImage
		if err := rows.Scan(&m.ID, &m.Fingerprint, &m.URL, &m.Status, &m.Attempts,
			&m.S3Key, &m.ContentHash, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *SQLiteStore) UpdateMediaStatus(id, status, s3Key, contentHash string, attempts int) error {
	_, err := s.db.Exec(`
		UPDATE pending_media SET status = ?, s3_key = ?, content_hash = ?, attempts = ?
		WHERE id = ?`,
		status, s3Key, contentHash, attempts, id)
	return err
}

// GetStaleActiveProperties returns active properties not seen since the
// given cutoff, for the healthcheck worker.
func (s *SQLiteStore) GetStaleActiveProperties(olderThan time.Duration, limit int) ([]models.StoredProperty, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.db.Query(`
		SELECT id, fingerprint, url, title, price, currency, city, neighborhood, property_type,
			area, rooms, bathrooms, first_seen_at, last_seen_at, times_seen, COALESCE(is_active, TRUE)
		FROM properties
		WHERE is_active = TRUE AND last_seen_at < ?
		ORDER BY last_seen_at ASC LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.StoredProperty
	for rows.Next() {
		var p models.StoredProperty
		if err := rows.Scan(&p.ID, &p.Fingerprint, &p.URL, &p.Title, &p.Price, &p.Currency,
			&p.City, &p.Neighborhood, &p.PropertyType, &p.Area, &p.Rooms, &p.Bathrooms,
			&p.FirstSeenAt, &p.LastSeenAt, &p.TimesSeen, &p.IsActive); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func (s *SQLiteStore) TouchProperty(id string, t time.Time) error {
	_, err := s.db.Exec(`UPDATE properties SET last_seen_at = ? WHERE id = ?`, t, id)
	return err
}

func (s *SQLiteStore) MarkPropertyInactive(id string) error {
	_, err := s.db.Exec(`UPDATE properties SET is_active = FALSE WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.CrawlRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO crawl_runs (site_id, started_at, status, pages_visited, links_discovered,
			records_extracted, extraction_failures, warning)
		VALUES (?, ?, ?, 0, 0, 0, 0, '')`,
		run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.CrawlRun) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET finished_at = ?, status = ?, pages_visited = ?,
			links_discovered = ?, records_extracted = ?, extraction_failures = ?, warning = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesVisited, run.LinksDiscovered,
		run.RecordsExtracted, run.ExtractionFailures, run.Warning, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.CrawlRun, error) {
	row := s.db.QueryRow(`
		SELECT id, site_id, started_at, finished_at, status, pages_visited, links_discovered,
			records_extracted, extraction_failures, COALESCE(warning, '')
		FROM crawl_runs WHERE id = ?`, id)

	var run models.CrawlRun
	err := row.Scan(&run.ID, &run.SiteID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.PagesVisited, &run.LinksDiscovered, &run.RecordsExtracted,
		&run.ExtractionFailures, &run.Warning)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_properties,
			total_snapshots, success_rate, avg_run_duration_sec)
		SELECT
			?,
			(SELECT started_at FROM crawl_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM crawl_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM properties),
			(SELECT COUNT(*) FROM record_snapshots),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM crawl_runs WHERE site_id = ?),
			(SELECT AVG(CAST((julianday(finished_at) - julianday(started_at)) * 86400 AS INTEGER))
				FROM crawl_runs WHERE site_id = ? AND finished_at IS NOT NULL)
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_properties = excluded.total_properties,
			total_snapshots = excluded.total_snapshots,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`,
		siteID, siteID, siteID, siteID, siteID)
	return err
}

func (s *SQLiteStore) GetLastRunTime(siteID string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT last_run_at FROM site_stats WHERE site_id = ?`, siteID).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
