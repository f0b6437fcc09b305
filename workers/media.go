package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"m2_harvester/models"
	"m2_harvester/storage"
)

const (
	maxImageBytes   = 50 << 20
	maxAttempts     = 3
	downloadPacing  = 200 * time.Millisecond
	defaultMimeType = "image/jpeg"
)

// Uploader pushes a downloaded file to object storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// MediaWorker drains the pending_media queue the record service fills during
// crawls: download each listing image, hash it, store it under a
// content-addressed key. Images that fail maxAttempts times are parked as
// failed rather than retried forever.
type MediaWorker struct {
	store     *storage.SQLiteStore
	client    *http.Client
	uploader  Uploader
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewMediaWorker(store *storage.SQLiteStore, uploader Uploader, client *http.Client) *MediaWorker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaWorker{
		store:     store,
		client:    client,
		uploader:  uploader,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *MediaWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger requests an immediate batch. Coalesces when one is already queued.
func (w *MediaWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// ProcessResult is the outcome for one queued image.
type ProcessResult struct {
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process fetches one image and uploads it under media/<hh>/<hash><ext>,
// where hh is the hash prefix used for key sharding.
func (w *MediaWorker) Process(ctx context.Context, img *models.PendingImage) ProcessResult {
	req, err := http.NewRequestWithContext(ctx, "GET", img.URL, nil)
	if err != nil {
		return ProcessResult{Error: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.client.Do(req)
	if err != nil {
		return ProcessResult{Error: fmt.Errorf("download: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProcessResult{Error: fmt.Errorf("download status: %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return ProcessResult{Error: fmt.Errorf("read body: %w", err)}
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("media/%s/%s%s", hash[:2], hash, guessExtension(img.URL, resp.Header.Get("Content-Type")))

	if w.uploader != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = defaultMimeType
		}
		if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
			return ProcessResult{Error: fmt.Errorf("upload: %w", err)}
		}
	}

	return ProcessResult{S3Key: key, ContentHash: hash, Size: int64(len(data))}
}

// guessExtension prefers the URL path extension, falling back to the
// response content type. Listing CDNs frequently serve images from
// extensionless URLs.
func guessExtension(url, contentType string) string {
	if ext := strings.ToLower(path.Ext(url)); isImageExt(ext) {
		return ext
	}
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

// Run drains one batch per interval tick or manual trigger until the
// context ends.
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case <-w.triggerCh:
			w.drainBatch(ctx, batchSize)
		case <-ticker.C:
			w.drainBatch(ctx, batchSize)
		}
	}
}

func (w *MediaWorker) drainBatch(ctx context.Context, batchSize int) {
	queue, err := w.store.GetPendingMedia(batchSize)
	if err != nil {
		log.Printf("Media worker: queue query failed: %v", err)
		return
	}
	if len(queue) == 0 {
		return
	}

	log.Printf("Media worker: %d images queued", len(queue))

	var uploaded, failed int
	for i := range queue {
		item := &queue[i]

		result := w.Process(ctx, item)
		if result.Error != nil {
			failed++
			attempts := item.Attempts + 1
			status := models.MediaStatusPending
			if attempts >= maxAttempts {
				status = models.MediaStatusFailed
			}
			log.Printf("Media worker: %s attempt %d failed: %v", item.URL, attempts, result.Error)
			w.store.UpdateMediaStatus(item.ID, status, "", "", attempts)
			continue
		}

		if err := w.store.UpdateMediaStatus(item.ID, models.MediaStatusUploaded, result.S3Key, result.ContentHash, item.Attempts); err != nil {
			failed++
			log.Printf("Media worker: status update for %s failed: %v", item.ID, err)
			continue
		}
		uploaded++
		log.Printf("Media worker: %s -> %s (%d bytes)", item.URL, result.S3Key, result.Size)

		select {
		case <-ctx.Done():
			return
		case <-time.After(downloadPacing):
		}
	}

	if uploaded > 0 || failed > 0 {
		w.logFunc(models.LogLevelInfo, "media", fmt.Sprintf("uploaded %d, failed %d", uploaded, failed))
	}
}

// NoOpUploader discards payloads; used when no object storage is configured
// so the queue still drains and hashes are still recorded.
type NoOpUploader struct{}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}
