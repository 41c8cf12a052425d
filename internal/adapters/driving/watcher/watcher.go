// Package watcher re-ingests documents when they change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragchat/internal/logger"
)

// DefaultDebounce is the quiet period after the last event before a file is handled.
const DefaultDebounce = 750 * time.Millisecond

// Handler processes one changed file.
type Handler func(ctx context.Context, path string) error

// Config configures a Watcher.
type Config struct {
	// Paths are files or directories to watch. A directory matches every
	// file with an accepted extension directly inside it.
	Paths []string

	// Extensions are the accepted file extensions, lower case with the dot.
	// Default: .pdf
	Extensions []string

	// Debounce is the quiet period per file (default: DefaultDebounce).
	Debounce time.Duration
}

// Watcher turns fsnotify events into sequential handler calls.
type Watcher struct {
	cfg     Config
	handler Handler

	// files are watched files; dirs are watched directories mapped to
	// whether every matching file inside them is wanted.
	files map[string]bool
	dirs  map[string]bool
}

// New validates the paths and creates a watcher.
func New(cfg Config, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watcher: handler is required")
	}
	if len(cfg.Paths) == 0 {
		return nil, errors.New("watcher: no paths to watch")
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".pdf"}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	w := &Watcher{
		cfg:     cfg,
		handler: handler,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
	}

	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if info.IsDir() {
			w.dirs[abs] = true
			continue
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if _, ok := w.dirs[dir]; !ok {
			w.dirs[dir] = false
		}
	}

	return w, nil
}

// Dirs returns the directories that will be watched, sorted.
func (w *Watcher) Dirs() []string {
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs
}

// Run watches until ctx is done. Changed files are handled one at a time,
// after Debounce has passed without further events for them.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.Dirs() {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Debug("Watching %s", dir)
	}

	pending := make(map[string]time.Time)
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if p, ok := w.match(ev); ok {
				pending[p] = time.Now()
				fire = time.After(w.cfg.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-fire:
			fire = nil
			if next := w.flush(ctx, pending); next > 0 {
				fire = time.After(next)
			}
		}
	}
}

// flush handles every pending file whose quiet period has passed and returns
// the wait until the next one is due, or 0 when none remain.
func (w *Watcher) flush(ctx context.Context, pending map[string]time.Time) time.Duration {
	now := time.Now()
	var due []string
	var next time.Duration
	for p, seen := range pending {
		wait := w.cfg.Debounce - now.Sub(seen)
		if wait <= 0 {
			due = append(due, p)
			continue
		}
		if next == 0 || wait < next {
			next = wait
		}
	}
	slices.Sort(due)

	for _, p := range due {
		delete(pending, p)
		if ctx.Err() != nil {
			return 0
		}
		if err := w.handler(ctx, p); err != nil {
			logger.Error(err, "Re-ingesting %s failed", p)
		}
	}
	return next
}

// match reports whether ev is a create or write of a watched document.
func (w *Watcher) match(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}

	p, err := filepath.Abs(ev.Name)
	if err != nil {
		return "", false
	}
	if strings.HasPrefix(filepath.Base(p), ".") {
		return "", false
	}
	if !slices.Contains(w.cfg.Extensions, strings.ToLower(filepath.Ext(p))) {
		return "", false
	}
	if w.files[p] || w.dirs[filepath.Dir(p)] {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			return "", false
		}
		return p, true
	}
	return "", false
}
