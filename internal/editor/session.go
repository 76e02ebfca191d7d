package editor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/snarg/transcript-editor/internal/storage"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// ErrUnknownCommand is returned by Exec for an unrecognised command word.
var ErrUnknownCommand = errors.New("unknown command")

const sessionHelp = `commands:
  show                 list words with ids and timing
  play | stop          start or cancel playback
  select <id>          start editing a word
  draft <text>         set the replacement text
  correct              save the draft for the selected word
  correct-all          replace every local match (not saved)
  correct-all!         replace every match through the store
  dismiss              cancel the current edit
  refresh              reload from the store
  export [file]        write the local copy as JSON
  upload               save the local copy to the export store
  help | quit
`

// editCommands keep the current selection. Any other command dismisses it.
var editCommands = map[string]bool{
	"draft":        true,
	"correct":      true,
	"correct-all":  true,
	"correct-all!": true,
	"dismiss":      true,
	"show":         true,
	"help":         true,
	"select":       true,
}

// Session is a line-oriented interactive front end for an Editor.
type Session struct {
	ed      *Editor
	exports storage.ExportStore
	out     io.Writer
}

// NewSession creates a session writing to out. exports may be nil.
func NewSession(ed *Editor, exports storage.ExportStore, out io.Writer) *Session {
	return &Session{ed: ed, exports: exports, out: out}
}

// Run reads commands from in until EOF, quit or ctx is done. Command
// errors are reported to the user and do not end the session.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		quit, err := s.Exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			break
		}
		fmt.Fprint(s.out, "> ")
	}
	s.ed.Stop()
	return scanner.Err()
}

// Exec runs one command line. quit is true for quit and exit.
func (s *Session) Exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	if !editCommands[cmd] {
		s.ed.Dismiss()
	}

	switch cmd {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Fprint(s.out, sessionHelp)

	case "show":
		fmt.Fprint(s.out, RenderTable(s.ed.Words()))
		if ed, ok := s.ed.State().(Editing); ok {
			fmt.Fprintf(s.out, "editing %d %q -> %q\n", ed.Word.ID, ed.Word.Text, ed.Draft)
		}

	case "play":
		return false, s.ed.Play(ctx)

	case "stop":
		s.ed.Stop()

	case "select":
		id, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("select needs a numeric id")
		}
		if err := s.ed.Select(id); err != nil {
			return false, err
		}
		ed := s.ed.State().(Editing)
		fmt.Fprintf(s.out, "editing %d %q\n", ed.Word.ID, ed.Word.Text)

	case "draft":
		// Everything after the command word is the draft, including spaces.
		_, text, _ := strings.Cut(line, " ")
		return false, s.ed.SetDraft(text)

	case "correct":
		w, err := s.ed.Correct(ctx)
		if err != nil {
			return false, describeEditError(err)
		}
		fmt.Fprintf(s.out, "saved %d %q\n", w.ID, w.Text)

	case "correct-all":
		n, err := s.ed.CorrectAll()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "%d words changed locally (not saved)\n", n)

	case "correct-all!":
		updated, err := s.ed.CorrectAllAndSave(ctx)
		if err != nil {
			return false, describeEditError(err)
		}
		fmt.Fprintf(s.out, "%d words saved\n", len(updated))

	case "dismiss":
		s.ed.Dismiss()

	case "refresh":
		if err := s.ed.Load(ctx); err != nil {
			return false, describeEditError(err)
		}
		fmt.Fprintln(s.out, Render(s.ed.Words(), -1))

	case "export":
		return false, s.export(arg)

	case "upload":
		if s.exports == nil {
			return false, fmt.Errorf("no export store configured")
		}
		key, loc, err := s.ed.ExportTo(ctx, s.exports)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "exported %s to %s\n", key, loc)

	default:
		return false, fmt.Errorf("%w %q (try help)", ErrUnknownCommand, cmd)
	}
	return false, nil
}

func (s *Session) export(path string) error {
	if path == "" {
		return s.ed.Export(s.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.ed.Export(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "wrote %s\n", path)
	return nil
}

// describeEditError turns store errors into messages a user can act on.
func describeEditError(err error) error {
	switch {
	case errors.Is(err, transcript.ErrNotFound):
		return fmt.Errorf("word no longer exists in the store; run refresh")
	case errors.Is(err, ErrTransport):
		return fmt.Errorf("could not reach the store, edit not saved: %w", err)
	default:
		return err
	}
}
