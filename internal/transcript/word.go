package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Word is a single timestamped transcript entry. The wire name for Text is
// "word" so existing clients keep working.
type Word struct {
	ID        int    `json:"id" yaml:"id"`
	Text      string `json:"word" yaml:"word"`
	StartTime int    `json:"start_time" yaml:"start_time"` // ms from sequence start
	Duration  int    `json:"duration" yaml:"duration"`     // ms highlighted during playback
}

var (
	// ErrNotFound is returned when no word carries the requested id.
	ErrNotFound = errors.New("word not found")

	// ErrInvalidSequence wraps every validation failure from Validate.
	ErrInvalidSequence = errors.New("invalid transcript sequence")
)

// seedWords is the sequence a fresh store starts with.
var seedWords = []Word{
	{ID: 1, Text: "Hello", StartTime: 0, Duration: 500},
	{ID: 2, Text: "world", StartTime: 500, Duration: 700},
	{ID: 3, Text: "This", StartTime: 1200, Duration: 300},
	{ID: 4, Text: "is", StartTime: 1500, Duration: 200},
	{ID: 5, Text: "a", StartTime: 1700, Duration: 100},
	{ID: 6, Text: "test", StartTime: 1800, Duration: 400},
	{ID: 7, Text: "transcript", StartTime: 2200, Duration: 600},
	{ID: 8, Text: "for", StartTime: 2800, Duration: 200},
	{ID: 9, Text: "playback", StartTime: 3000, Duration: 500},
	{ID: 10, Text: "and", StartTime: 3500, Duration: 250},
	{ID: 11, Text: "editing", StartTime: 3750, Duration: 800},
	{ID: 12, Text: "features.", StartTime: 4550, Duration: 650},
}

// Seed returns a fresh copy of the built-in twelve-word sequence.
func Seed() []Word {
	return Clone(seedWords)
}

// Clone returns a copy of words that shares no backing array with the input.
func Clone(words []Word) []Word {
	out := make([]Word, len(words))
	copy(out, words)
	return out
}

// Validate checks the structural invariants of a sequence: positive unique
// ids, non-negative start times, positive durations and ascending start order.
func Validate(words []Word) error {
	seen := make(map[int]struct{}, len(words))
	prevStart := -1
	for i, w := range words {
		if w.ID <= 0 {
			return fmt.Errorf("%w: entry %d has non-positive id %d", ErrInvalidSequence, i, w.ID)
		}
		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidSequence, w.ID)
		}
		seen[w.ID] = struct{}{}
		if w.StartTime < 0 {
			return fmt.Errorf("%w: id %d has negative start_time %d", ErrInvalidSequence, w.ID, w.StartTime)
		}
		if w.Duration <= 0 {
			return fmt.Errorf("%w: id %d has non-positive duration %d", ErrInvalidSequence, w.ID, w.Duration)
		}
		if w.StartTime < prevStart {
			return fmt.Errorf("%w: id %d starts at %d, before previous entry at %d", ErrInvalidSequence, w.ID, w.StartTime, prevStart)
		}
		prevStart = w.StartTime
	}
	return nil
}

// TotalDuration sums the durations of all words in milliseconds.
func TotalDuration(words []Word) int {
	total := 0
	for _, w := range words {
		total += w.Duration
	}
	return total
}

// ExportFilename is the suggested name for exported transcripts.
const ExportFilename = "transcript.json"

// MarshalExport renders words as two-space indented JSON. A nil slice is
// rendered as an empty array.
func MarshalExport(words []Word) ([]byte, error) {
	if words == nil {
		words = []Word{}
	}
	return json.MarshalIndent(words, "", "  ")
}
