package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/logger"
)

// Handler processes one recording that has finished arriving in the inbox.
type Handler func(ctx context.Context, path string) error

const queueSize = 64

// Watcher hands new audio files dropped into Dir to a handler, one at a time. A file is
// picked up once no write event has been seen for Settle, so half-copied files are not
// read.
type Watcher struct {
	Dir          string
	Settle       time.Duration
	ScanExisting bool

	handle Handler
	log    *logger.Logger
	queued map[string]bool
}

func New(dir string, settle time.Duration, handle Handler, log *logger.Logger) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		Dir:    dir,
		Settle: settle,
		handle: handle,
		log:    log.WithComponent("watcher"),
		queued: map[string]bool{},
	}
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	w.log.WithField("dir", w.Dir).Info("watching inbox")

	jobs := make(chan string, queueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range jobs {
			w.process(ctx, p)
		}
	}()
	defer func() {
		close(jobs)
		<-done
	}()

	pending := map[string]time.Time{}
	if w.ScanExisting {
		for _, p := range w.existing() {
			pending[p] = time.Time{}
		}
	}

	tick := time.NewTicker(w.Settle / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.interesting(ev) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Error("watcher error")

		case now := <-tick.C:
			for p, last := range pending {
				if now.Sub(last) < w.Settle {
					continue
				}
				delete(pending, p)
				w.enqueue(jobs, p)
			}
		}
	}
}

func (w *Watcher) interesting(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return w.accept(ev.Name)
}

// accept skips hidden and partial files and anything the decoder cannot read.
func (w *Watcher) accept(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part") {
		return false
	}
	if w.queued[path] || !audio.IsSupported(name) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (w *Watcher) existing() []string {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		w.log.WithError(err).Warn("could not list inbox")
		return nil
	}
	var out []string
	for _, e := range entries {
		p := filepath.Join(w.Dir, e.Name())
		if w.accept(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) enqueue(jobs chan<- string, path string) {
	// the file may have vanished while settling
	if _, err := os.Stat(path); err != nil {
		return
	}
	select {
	case jobs <- path:
		w.queued[path] = true
		w.log.WithField("file", filepath.Base(path)).Info("queued recording")
	default:
		w.log.WithField("file", filepath.Base(path)).Warn("queue full, dropping recording")
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	log := w.log.WithField("file", filepath.Base(path))
	start := time.Now()
	if err := w.handle(ctx, path); err != nil {
		log.WithField("error", err.Error()).Error("processing failed")
		return
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("recording processed")
}
