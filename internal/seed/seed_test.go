package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonSeed = `[
  {"id": 1, "word": "Good", "start_time": 0, "duration": 400},
  {"id": 2, "word": "morning", "start_time": 400, "duration": 600}
]`

const yamlSeed = `
- id: 1
  word: Good
  start_time: 0
  duration: 400
- id: 2
  word: evening
  start_time: 400
  duration: 600
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		words, err := Load(writeFile(t, dir, "seed.json", jsonSeed))
		require.NoError(t, err)
		assert.Equal(t, []transcript.Word{
			{ID: 1, Text: "Good", StartTime: 0, Duration: 400},
			{ID: 2, Text: "morning", StartTime: 400, Duration: 600},
		}, words)
	})

	t.Run("yaml", func(t *testing.T) {
		words, err := Load(writeFile(t, dir, "seed.yml", yamlSeed))
		require.NoError(t, err)
		require.Len(t, words, 2)
		assert.Equal(t, "evening", words[1].Text)
		assert.Equal(t, 600, words[1].Duration)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "bad.json", `[{"id": 1,`))
		assert.Error(t, err)
	})

	t.Run("empty_sequence", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "empty.json", `[]`))
		assert.ErrorIs(t, err, transcript.ErrInvalidSequence)
	})

	t.Run("duplicate_ids", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "dup.json", `[
			{"id": 1, "word": "a", "start_time": 0, "duration": 10},
			{"id": 1, "word": "b", "start_time": 10, "duration": 10}
		]`))
		assert.ErrorIs(t, err, transcript.ErrInvalidSequence)
	})
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte(jsonSeed), "toml")
	assert.Error(t, err)
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"seed.json":  "json",
		"seed.YAML":  "yaml",
		"seed.yml":   "yaml",
		"seed":       "json",
		"a/b/c.yaml": "yaml",
	}
	for path, want := range tests {
		if got := formatOf(path); got != want {
			t.Errorf("formatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seed.json", jsonSeed)

	store := transcript.NewSeededStore()
	w := NewWatcher(path, store, zerolog.Nop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	assert.Equal(t, "watching", w.Status())

	writeFile(t, dir, "seed.json", jsonSeed)
	require.Eventually(t, func() bool { return w.Reloads() >= 1 }, 5*time.Second, 10*time.Millisecond)

	words := store.FetchAll()
	require.Len(t, words, 2)
	assert.Equal(t, "morning", words[1].Text)
}

func TestWatcherKeepsSequenceOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seed.json", jsonSeed)

	store := transcript.NewSeededStore()
	w := NewWatcher(path, store, zerolog.Nop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeFile(t, dir, "seed.json", `not json`)
	require.Eventually(t, func() bool { return w.failed.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, transcript.Seed(), store.FetchAll())
	assert.Zero(t, w.Reloads())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seed.json", jsonSeed)

	store := transcript.NewSeededStore()
	w := NewWatcher(path, store, zerolog.Nop())
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeFile(t, dir, "other.json", jsonSeed)
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	assert.Zero(t, w.Reloads())
	assert.Equal(t, "stopped", w.Status())
	assert.Len(t, store.FetchAll(), 12)
}
