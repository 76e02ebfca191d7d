package seed

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/metrics"
	"github.com/snarg/transcript-editor/internal/transcript"
)

const defaultDebounce = 500 * time.Millisecond

// Replacer is the part of the store the watcher drives.
type Replacer interface {
	Replace(words []transcript.Word) error
}

// Watcher reloads the store whenever the seed file changes on disk. A file
// that fails to parse or validate is logged and the store keeps its current
// sequence.
type Watcher struct {
	path     string
	store    Replacer
	debounce time.Duration
	log      zerolog.Logger

	watcher *fsnotify.Watcher

	// Debounce: coalesce rapid Create+Write events from editors that
	// truncate then rewrite.
	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	reloads atomic.Int64
	failed  atomic.Int64
	status  atomic.Value // string: "starting", "watching", "stopped"
}

func NewWatcher(path string, store Replacer, log zerolog.Logger) *Watcher {
	w := &Watcher{
		path:     path,
		store:    store,
		debounce: defaultDebounce,
		log:      log.With().Str("component", "seed-watcher").Logger(),
	}
	w.status.Store("starting")
	return w
}

// Start begins watching the seed file. The parent directory is watched
// rather than the file so atomic rename-over saves are seen.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw
	w.status.Store("watching")
	w.log.Info().Str("path", w.path).Msg("seed watcher started")

	go w.watchLoop(ctx)
	return nil
}

// Stop closes the fsnotify watcher.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.log.Info().
		Int64("reloads", w.reloads.Load()).
		Int64("failed", w.failed.Load()).
		Msg("seed watcher stopped")
}

// Status returns the current watcher status for the health endpoint.
func (w *Watcher) Status() string {
	s, _ := w.status.Load().(string)
	return s
}

// Reloads returns the number of successful reloads.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Reset(w.debounce)
		return
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		w.debounceTimer = nil
		w.debounceMu.Unlock()

		w.reload()
	})
}

func (w *Watcher) reload() {
	words, err := Load(w.path)
	if err == nil {
		err = w.store.Replace(words)
	}
	if err != nil {
		w.failed.Add(1)
		metrics.SeedReloadsTotal.WithLabelValues("error").Inc()
		w.log.Warn().Err(err).Str("path", w.path).Msg("seed reload rejected, keeping current sequence")
		return
	}
	w.reloads.Add(1)
	metrics.SeedReloadsTotal.WithLabelValues("ok").Inc()
	w.log.Info().Int("words", len(words)).Msg("seed file reloaded")
}
