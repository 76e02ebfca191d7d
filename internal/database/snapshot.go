package database

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/metrics"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// WordWriter persists a full word sequence.
type WordWriter interface {
	SaveWords(ctx context.Context, words []transcript.Word) error
}

// Snapshotter writes the store's sequence to the database after changes.
// Bursts of changes inside the interval collapse into one write of the
// latest sequence, and writes never overlap.
type Snapshotter struct {
	writer   WordWriter
	source   func() []transcript.Word
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	flushMu sync.Mutex
	wg      sync.WaitGroup
}

// NewSnapshotter creates a snapshotter that reads the current sequence from
// source when it flushes.
func NewSnapshotter(writer WordWriter, source func() []transcript.Word, interval time.Duration, log zerolog.Logger) *Snapshotter {
	return &Snapshotter{
		writer:   writer,
		source:   source,
		interval: interval,
		timeout:  5 * time.Second,
		log:      log.With().Str("component", "snapshot").Logger(),
	}
}

// HandleChange schedules a write. It is registered as a store listener.
func (s *Snapshotter) HandleChange(transcript.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.timer != nil {
		return
	}
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.interval, func() {
		defer s.wg.Done()
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		s.flush()
	})
}

// Stop cancels any pending write, writes the latest sequence once, and
// prevents future writes.
func (s *Snapshotter) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := false
	if s.timer != nil && s.timer.Stop() {
		s.timer = nil
		s.wg.Done()
		pending = true
	}
	s.mu.Unlock()
	s.wg.Wait()

	if pending {
		s.flush()
	}
}

func (s *Snapshotter) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	words := s.source()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.writer.SaveWords(ctx, words); err != nil {
		metrics.SnapshotWritesTotal.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Int("words", len(words)).Msg("snapshot write failed")
		return
	}
	metrics.SnapshotWritesTotal.WithLabelValues("ok").Inc()
	s.log.Debug().Int("words", len(words)).Msg("snapshot written")
}
