package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/snarg/transcript-editor/internal/editor"
	"github.com/snarg/transcript-editor/internal/storage"
	"github.com/spf13/cobra"
)

func showCmd(a *app) *cobra.Command {
	var table bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ed.Load(cmd.Context()); err != nil {
				return err
			}
			if table {
				fmt.Print(editor.RenderTable(a.ed.Words()))
				return nil
			}
			fmt.Println(editor.Render(a.ed.Words(), -1))
			return nil
		},
	}
	cmd.Flags().BoolVar(&table, "table", false, "list ids and timing")
	return cmd
}

func playCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the transcript, highlighting each word for its duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ed.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.ed.Play(cmd.Context()); err != nil {
				return err
			}
			// Ctrl-C stops playback; that is not a failure.
			if err := a.ed.Player().Wait(); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func correctCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "correct <id> <text>",
		Short: "Replace the text of one word in the store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			if err := a.ed.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.ed.Select(id); err != nil {
				return err
			}
			if err := a.ed.SetDraft(args[1]); err != nil {
				return err
			}
			w, err := a.ed.Correct(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("saved %d %q\n", w.ID, w.Text)
			return nil
		},
	}
}

func correctAllCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "correct-all <word> <text>",
		Short: "Replace every occurrence of a word",
		Long: "Replace every word whose text equals <word>. Without --save only the " +
			"local copy changes and the result is printed; with --save the store is updated.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ed.Load(cmd.Context()); err != nil {
				return err
			}
			id, ok := firstMatch(a.ed, args[0])
			if !ok {
				return fmt.Errorf("no word %q in transcript", args[0])
			}
			if err := a.ed.Select(id); err != nil {
				return err
			}
			if err := a.ed.SetDraft(args[1]); err != nil {
				return err
			}

			if save {
				updated, err := a.ed.CorrectAllAndSave(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%d words saved\n", len(updated))
				return nil
			}
			n, err := a.ed.CorrectAll()
			if err != nil {
				return err
			}
			fmt.Println(editor.Render(a.ed.Words(), -1))
			fmt.Printf("%d words changed locally (not saved; use --save)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "apply the replacement in the store")
	return cmd
}

func firstMatch(ed *editor.Editor, text string) (int, bool) {
	for _, w := range ed.Words() {
		if w.Text == text {
			return w.ID, true
		}
	}
	return 0, false
}

func exportCmd(a *app) *cobra.Command {
	var toStore bool
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the transcript as indented JSON",
		Long: "Write the transcript as indented JSON to stdout or a file. With --store " +
			"it is saved to EXPORT_DIR, or to S3 when S3_BUCKET is set.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ed.Load(cmd.Context()); err != nil {
				return err
			}

			if toStore {
				store, err := storage.New(a.cfg.S3, a.cfg.ExportDir, a.log)
				if err != nil {
					return err
				}
				key, loc, err := a.ed.ExportTo(cmd.Context(), store)
				if err != nil {
					return err
				}
				fmt.Printf("exported %s to %s\n", key, loc)
				return nil
			}

			if len(args) == 0 {
				return a.ed.Export(os.Stdout)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := a.ed.Export(f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().BoolVar(&toStore, "store", false, "save to the export store instead of a file")
	return cmd
}

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print change events from the store as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editor.Watch(cmd.Context(), a.cfg.APIURL, a.cfg.AuthToken, func(ev editor.ChangeEvent) {
				texts := make([]string, len(ev.Data.Words))
				for i, w := range ev.Data.Words {
					texts[i] = fmt.Sprintf("%d=%q", w.ID, w.Text)
				}
				fmt.Printf("%s %s %s\n", ev.Timestamp, ev.Type, strings.Join(texts, " "))
			})
		},
	}
}

func sessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Interactive editing session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ed.Load(cmd.Context()); err != nil {
				return err
			}
			store, err := storage.New(a.cfg.S3, a.cfg.ExportDir, a.log)
			if err != nil {
				a.log.Warn().Err(err).Msg("export store unavailable, upload disabled")
				store = nil
			}
			fmt.Println(editor.Render(a.ed.Words(), -1))
			return editor.NewSession(a.ed, store, os.Stdout).Run(cmd.Context(), os.Stdin)
		},
	}
}
