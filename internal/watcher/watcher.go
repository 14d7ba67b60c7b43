// Package watcher registers objects dropped into a filesystem bucket.
//
// The watcher follows a bucket directory of the filesystem object store
// with fsnotify. New files and rewritten files are registered through the
// ingestion service with a sha256 checksum, so a rewrite with different
// content resets the document and runs the pipeline again.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is
// registered. Writers usually emit several events per file.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned when running a closed watcher.
var ErrClosed = errors.New("watcher is closed")

// Registrar is the part of the ingestion service the watcher needs.
type Registrar interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.Document, bool, error)
}

// Buckets resolves bucket directories and object keys of the filesystem
// object store.
type Buckets interface {
	BucketDir(bucket string) (string, error)
	KeyFor(bucket, path string) (string, error)
}

// Config controls a watcher.
type Config struct {
	// Bucket is the bucket to follow.
	Bucket string

	// TenantID is recorded on every registration. Optional.
	TenantID string

	// IgnorePrefixes lists key prefixes that are never registered, such
	// as the directory stage artifacts are written to.
	IgnorePrefixes []string

	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
}

// Watcher follows one bucket directory.
type Watcher struct {
	cfg       Config
	dir       string
	buckets   Buckets
	registrar Registrar
	log       *slog.Logger

	mu     sync.Mutex
	closed bool
	fsw    *fsnotify.Watcher
}

// New creates a watcher for cfg.Bucket. The bucket directory is created
// when missing.
func New(buckets Buckets, registrar Registrar, cfg Config) (*Watcher, error) {
	if registrar == nil {
		return nil, fmt.Errorf("%w: registrar is required", domain.ErrInvalidInput)
	}
	dir, err := buckets.BucketDir(cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating bucket directory: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Watcher{
		cfg:       cfg,
		dir:       dir,
		buckets:   buckets,
		registrar: registrar,
		log:       logger.With("component", "watcher", "bucket", cfg.Bucket),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Scan registers every eligible file already in the bucket. Files whose
// registration fails are logged and skipped. It returns the number of
// newly created documents.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	created := 0
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == w.dir {
			return nil
		}
		if d.IsDir() {
			if w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		_, isNew, regErr := w.registerFile(ctx, path)
		if regErr != nil {
			w.log.Warn("skipping file", "path", path, "error", regErr)
			return nil
		}
		if isNew {
			created++
		}
		return nil
	})
	return created, err
}

// Run watches the bucket until ctx is cancelled. fsnotify is not
// recursive, so directories are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	w.mu.Unlock()

	defer w.Close()

	if err := w.addTree(w.dir); err != nil {
		return err
	}
	w.log.Info("watching bucket", "dir", w.dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleFsEvent(event); ok {
				pending[path] = time.Now()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.cfg.Debounce {
					continue
				}
				delete(pending, path)
				w.flush(ctx, path)
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// handleFsEvent decides whether an event names a file to register. New
// directories are added to the watch instead.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if w.hidden(event.Name) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !w.skipDir(event.Name) {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("watching new directory failed", "dir", event.Name, "error", err)
			}
		}
		return "", false
	}

	if w.ignored(event.Name) {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) flush(ctx context.Context, path string) {
	doc, created, err := w.registerFile(ctx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		w.log.Debug("file vanished before registration", "path", path)
	case err != nil:
		w.log.Warn("registering file failed", "path", path, "error", err)
	case created:
		w.log.Info("registered new object", "document", doc.ID, "key", doc.Key)
	default:
		w.log.Debug("object already registered", "document", doc.ID, "key", doc.Key, "status", doc.Status)
	}
}

// registerFile registers one file with its content checksum.
func (w *Watcher) registerFile(ctx context.Context, path string) (*domain.Document, bool, error) {
	if w.hidden(path) || w.ignored(path) {
		return nil, false, fmt.Errorf("%w: %s is not eligible", domain.ErrInvalidInput, path)
	}
	key, err := w.buckets.KeyFor(w.cfg.Bucket, path)
	if err != nil {
		return nil, false, err
	}
	if _, err := domain.FileTypeFromKey(key); err != nil {
		return nil, false, err
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, false, err
	}

	return w.registrar.Register(ctx, domain.Registration{
		TenantID: w.cfg.TenantID,
		Bucket:   w.cfg.Bucket,
		Key:      key,
		URL:      domain.ObjectURL(w.cfg.Bucket, key),
		Checksum: checksum,
	})
}

// addTree adds dir and its eligible subdirectories to the watch.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir && w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	return w.hidden(path) || w.ignored(path+string(filepath.Separator))
}

// hidden applies isHidden to the part of path inside the bucket, so a
// bucket under a dot directory still works.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return true
	}
	return isHidden(rel)
}

// ignored reports whether path falls under an ignored key prefix.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return true
	}
	key := filepath.ToSlash(rel)
	if strings.HasSuffix(path, string(filepath.Separator)) {
		key += "/"
	}
	for _, prefix := range w.cfg.IgnorePrefixes {
		if prefix != "" && strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
