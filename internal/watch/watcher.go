// Package watch ingests documents dropped into an inbox directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"prospectus/internal/extract"
	"prospectus/internal/ingest"
)

const DefaultDebounce = 500 * time.Millisecond

type FileIngester interface {
	IngestFiles(ctx context.Context, paths []string) ingest.Report
}

// Watcher ingests each supported file once writes to it have settled.
type Watcher struct {
	dir      string
	ingester FileIngester
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	done   chan struct{}
	stop   sync.Once
}

func New(dir string, ingester FileIngester, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		ingester: ingester,
		debounce: debounce,
		timers:   map[string]*time.Timer{},
		ready:    make(chan string, 64),
		done:     make(chan struct{}),
	}
}

// Run watches until ctx is cancelled. Files are ingested one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop.Do(func() { close(w.done) })

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	slog.InfoContext(ctx, "watching inbox", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				w.schedule(ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "watcher error", "error", err)
		case path := <-w.ready:
			rep := w.ingester.IngestFiles(ctx, []string{path})
			slog.InfoContext(ctx, "inbox file processed", "file", path, "chunks", rep.Ingested, "failures", len(rep.Failures))
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return false
	}
	return extract.Supported(base, "")
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.deliver(path)
	})
}

// deliver hands path to Run. It gives up once Run has returned.
func (w *Watcher) deliver(path string) bool {
	select {
	case w.ready <- path:
		return true
	case <-w.done:
		return false
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
}
