package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/storage"
	"github.com/snarg/transcript-editor/internal/transcript"
)

var (
	// ErrNoSelection is returned by edit operations when no word is selected.
	ErrNoSelection = errors.New("no word selected")

	// ErrExportNotConfirmed is returned by ExportTo when a saved artifact
	// cannot be found in the export store afterwards.
	ErrExportNotConfirmed = errors.New("export not found after save")
)

// Store is the remote transcript store the editor round-trips edits to.
type Store interface {
	FetchAll(ctx context.Context) ([]transcript.Word, error)
	UpdateWord(ctx context.Context, id int, text string) (transcript.Word, error)
	UpdateAll(ctx context.Context, match, text string) ([]transcript.Word, error)
}

// EditState is either NoEdit or Editing.
type EditState interface {
	editState()
}

// NoEdit means no word is selected.
type NoEdit struct{}

// Editing holds the selected word as it was when selected, and the draft
// replacement text.
type Editing struct {
	Word  transcript.Word
	Draft string
}

func (NoEdit) editState()  {}
func (Editing) editState() {}

// Editor holds a local copy of the transcript, the selection state and a
// player. The local copy may diverge from the store until the next Load.
type Editor struct {
	store  Store
	player *Player
	log    zerolog.Logger

	mu    sync.Mutex
	words []transcript.Word
	edit  EditState
}

func New(store Store, player *Player, log zerolog.Logger) *Editor {
	return &Editor{
		store:  store,
		player: player,
		log:    log.With().Str("component", "editor").Logger(),
		words:  []transcript.Word{},
		edit:   NoEdit{},
	}
}

// Load replaces the local copy with the store's sequence and clears the
// selection. On error the local copy is kept.
func (e *Editor) Load(ctx context.Context) error {
	words, err := e.store.FetchAll(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.words = words
	e.edit = NoEdit{}
	e.mu.Unlock()
	e.log.Debug().Int("words", len(words)).Msg("transcript loaded")
	return nil
}

// Words returns a copy of the local sequence.
func (e *Editor) Words() []transcript.Word {
	e.mu.Lock()
	defer e.mu.Unlock()
	return transcript.Clone(e.words)
}

func (e *Editor) State() EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.edit
}

// Select starts editing the local word with the given id. The draft starts
// as the word's current text.
func (e *Editor) Select(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.words {
		if w.ID == id {
			e.edit = Editing{Word: w, Draft: w.Text}
			return nil
		}
	}
	return fmt.Errorf("id %d: %w", id, transcript.ErrNotFound)
}

// SetDraft sets the replacement text for the selected word.
func (e *Editor) SetDraft(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ed, ok := e.edit.(Editing)
	if !ok {
		return ErrNoSelection
	}
	ed.Draft = text
	e.edit = ed
	return nil
}

// Dismiss clears the selection without applying anything.
func (e *Editor) Dismiss() {
	e.mu.Lock()
	e.edit = NoEdit{}
	e.mu.Unlock()
}

// takeEdit returns the current selection and resets it.
func (e *Editor) takeEdit() (Editing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ed, ok := e.edit.(Editing)
	if !ok {
		return Editing{}, ErrNoSelection
	}
	e.edit = NoEdit{}
	return ed, nil
}

// Correct sends the draft for the selected word to the store and, on
// success, applies the store's record to the local copy. On failure the
// local copy is left unchanged and the error is returned; it wraps
// transcript.ErrNotFound or ErrTransport. The selection is cleared either way.
func (e *Editor) Correct(ctx context.Context) (transcript.Word, error) {
	ed, err := e.takeEdit()
	if err != nil {
		return transcript.Word{}, err
	}

	updated, err := e.store.UpdateWord(ctx, ed.Word.ID, ed.Draft)
	if err != nil {
		e.log.Warn().Err(err).Int("word_id", ed.Word.ID).Msg("correct failed")
		return transcript.Word{}, err
	}

	e.mu.Lock()
	e.mergeLocked([]transcript.Word{updated})
	e.mu.Unlock()
	return updated, nil
}

// CorrectAll replaces the text of every local word whose current text
// equals the selected word's text, and returns how many changed. Only the
// local copy changes; the store is not contacted, so a later Load reverts it.
func (e *Editor) CorrectAll() (int, error) {
	ed, err := e.takeEdit()
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.words {
		if e.words[i].Text == ed.Word.Text {
			e.words[i].Text = ed.Draft
			n++
		}
	}
	return n, nil
}

// CorrectAllAndSave applies the same bulk replacement through the store and
// merges the store's updated records into the local copy. Local words the
// store did not update are left as they are.
func (e *Editor) CorrectAllAndSave(ctx context.Context) ([]transcript.Word, error) {
	ed, err := e.takeEdit()
	if err != nil {
		return nil, err
	}

	updated, err := e.store.UpdateAll(ctx, ed.Word.Text, ed.Draft)
	if err != nil {
		e.log.Warn().Err(err).Str("word", ed.Word.Text).Msg("correct all failed")
		return nil, err
	}

	e.mu.Lock()
	e.mergeLocked(updated)
	e.mu.Unlock()
	return updated, nil
}

// mergeLocked replaces local records by id. Caller must hold mu.
func (e *Editor) mergeLocked(records []transcript.Word) {
	for _, r := range records {
		for i := range e.words {
			if e.words[i].ID == r.ID {
				e.words[i] = r
				break
			}
		}
	}
}

// Play starts playback of the local copy.
func (e *Editor) Play(ctx context.Context) error {
	return e.player.Play(ctx, e.Words())
}

// Stop cancels playback.
func (e *Editor) Stop() {
	e.player.Stop()
}

// Player returns the editor's player.
func (e *Editor) Player() *Player {
	return e.player
}

// Export writes the local copy as indented JSON.
func (e *Editor) Export(w io.Writer) error {
	data, err := transcript.MarshalExport(e.Words())
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// ExportTo saves the local copy to an export store under a fresh key and
// returns the key and where it can be retrieved.
func (e *Editor) ExportTo(ctx context.Context, store storage.ExportStore) (key, location string, err error) {
	data, err := transcript.MarshalExport(e.Words())
	if err != nil {
		return "", "", err
	}
	key, err = storage.ExportKey()
	if err != nil {
		return "", "", err
	}
	if err := store.Save(ctx, key, data, "application/json"); err != nil {
		return "", "", fmt.Errorf("save export: %w", err)
	}
	if !store.Exists(ctx, key) {
		return "", "", fmt.Errorf("%w: %s", ErrExportNotConfirmed, key)
	}
	location, err = store.Location(ctx, key)
	if err != nil {
		return key, "", fmt.Errorf("locate export: %w", err)
	}
	e.log.Info().Str("key", key).Str("store", store.Type()).Msg("transcript exported")
	return key, location, nil
}
