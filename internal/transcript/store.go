package transcript

import (
	"fmt"
	"sync"
)

// Change kinds emitted to listeners.
const (
	ChangeWordUpdated  = "word_updated"
	ChangeWordsUpdated = "words_updated"
	ChangeReplaced     = "transcript_replaced"
)

// Change describes a successful mutation. Words holds copies of the affected
// records (all records for ChangeReplaced).
type Change struct {
	Kind  string
	Words []Word
}

// ChangeFunc receives changes after the store lock has been released.
// Changes arrive in mutation order. A ChangeFunc must not mutate the store.
type ChangeFunc func(Change)

// Store owns the authoritative word sequence. All access goes through one
// RWMutex so scan-and-replace updates never lose writes under a concurrent
// transport.
type Store struct {
	mu    sync.RWMutex
	words []Word

	// emitMu is taken before mu is released so listeners observe changes
	// in the order they were applied.
	emitMu sync.Mutex

	lmu       sync.RWMutex
	listeners []ChangeFunc
}

// NewStore creates a store holding a copy of words. The sequence is validated.
func NewStore(words []Word) (*Store, error) {
	if err := Validate(words); err != nil {
		return nil, err
	}
	return &Store{words: Clone(words)}, nil
}

// NewSeededStore creates a store holding the built-in seed sequence.
func NewSeededStore() *Store {
	return &Store{words: Seed()}
}

// OnChange registers a listener invoked after every successful mutation.
func (s *Store) OnChange(fn ChangeFunc) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

// FetchAll returns a copy of the sequence in stored order.
func (s *Store) FetchAll() []Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.words)
}

// Len returns the number of words held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// Get returns the word with the given id.
func (s *Store) Get(id int) (Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.words[i], nil
	}
	return Word{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
}

// UpdateWord replaces the text of the word with the given id and returns the
// updated record. Text is stored verbatim; empty and duplicate values are
// accepted. Returns ErrNotFound and leaves the sequence untouched when the id
// is absent.
func (s *Store) UpdateWord(id int, text string) (Word, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return Word{}, fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	s.words[i].Text = text
	updated := s.words[i]
	s.emitLocked(Change{Kind: ChangeWordUpdated, Words: []Word{updated}})
	return updated, nil
}

// UpdateAll replaces the text of every word whose current text equals match
// and returns the updated records in stored order. No match is not an error.
func (s *Store) UpdateAll(match, text string) []Word {
	s.mu.Lock()
	var updated []Word
	for i := range s.words {
		if s.words[i].Text == match {
			s.words[i].Text = text
			updated = append(updated, s.words[i])
		}
	}
	if len(updated) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.emitLocked(Change{Kind: ChangeWordsUpdated, Words: Clone(updated)})
	return updated
}

// Replace swaps the whole sequence after validating it.
func (s *Store) Replace(words []Word) error {
	if err := Validate(words); err != nil {
		return err
	}
	next := Clone(words)
	s.mu.Lock()
	s.words = next
	s.emitLocked(Change{Kind: ChangeReplaced, Words: Clone(next)})
	return nil
}

// indexOf does a linear scan. Caller must hold mu.
func (s *Store) indexOf(id int) int {
	for i := range s.words {
		if s.words[i].ID == id {
			return i
		}
	}
	return -1
}

// emitLocked releases mu and delivers c to listeners. Caller must hold mu
// for writing.
func (s *Store) emitLocked(c Change) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Unlock()

	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}
