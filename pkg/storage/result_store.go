// Package storage persists qualifying listing URLs and consolidates them
// after a crawl.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"market-scraper/pkg/logger"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("result store closed")

// ResultStore appends URLs to one text file per category. Each file is owned
// by a single writer goroutine, so concurrent appends never interleave
// within a line.
type ResultStore struct {
	dir string
	log *logger.Logger

	mu      sync.RWMutex
	writers map[string]*fileWriter
	closed  bool
}

type appendRequest struct {
	line  string
	reply chan error
}

type fileWriter struct {
	path    string
	file    *os.File
	reqs    chan appendRequest
	done    chan struct{}
	written int
}

// NewResultStore creates a store writing under dir. The directory is
// created if needed.
func NewResultStore(dir string, log *logger.Logger) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	return &ResultStore{
		dir:     dir,
		log:     log.WithField("component", "result_store"),
		writers: make(map[string]*fileWriter),
	}, nil
}

// Path returns the file a category's URLs are appended to.
func (s *ResultStore) Path(category string) string {
	return filepath.Join(s.dir, SanitizeFilename(category)+".txt")
}

// Append writes url as one line of the category file. It returns once the
// line has been handed to the OS or ctx is done.
func (s *ResultStore) Append(ctx context.Context, category, url string) error {
	w, err := s.writer(category)
	if err != nil {
		return err
	}

	req := appendRequest{line: url + "\n", reply: make(chan error, 1)}

	// the read lock keeps Close from closing reqs while we send
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case w.reqs <- req:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ResultStore) writer(category string) (*fileWriter, error) {
	path := s.Path(category)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if w, ok := s.writers[path]; ok {
		return w, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	w := &fileWriter{
		path: path,
		file: f,
		reqs: make(chan appendRequest, 64),
		done: make(chan struct{}),
	}
	s.writers[path] = w
	go w.run()

	s.log.WithFields(map[string]interface{}{
		"category": category,
		"path":     path,
	}).Debug("Opened category file")
	return w, nil
}

func (w *fileWriter) run() {
	defer close(w.done)
	for req := range w.reqs {
		_, err := w.file.WriteString(req.line)
		if err == nil {
			w.written++
		}
		req.reply <- err
	}
}

// Close drains every writer and closes the files. Appends still queued are
// written before Close returns.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	writers := s.writers
	s.mu.Unlock()

	var errs []error
	for _, w := range writers {
		close(w.reqs)
		<-w.done
		if err := w.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", w.path, err))
		}
		s.log.WithFields(map[string]interface{}{
			"path":    w.path,
			"written": w.written,
		}).Debug("Closed category file")
	}
	return errors.Join(errs...)
}
