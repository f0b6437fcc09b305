// Package logging tees the standard logger into a size-capped file so long
// daemon runs stay inspectable without unbounded growth.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxSize = 2 << 20

// RotatingWriter appends to a log file and swaps it for a fresh one once it
// crosses maxSize, keeping the previous file as a single ".1" backup.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens (or continues) the crawl log at path and points the standard
// logger at both it and stdout. An oversized leftover file is truncated
// rather than rotated so a restart begins with headroom.
func Setup(path string) (*RotatingWriter, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > defaultMaxSize {
		os.Truncate(path, 0)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	w := &RotatingWriter{file: f, path: path, size: size, maxSize: defaultMaxSize}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > w.maxSize {
		w.rotate()
	}
	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		// Rotation failure leaves the logger writing to the closed handle;
		// stdout still receives everything via the MultiWriter.
		return
	}
	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
