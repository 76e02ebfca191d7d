package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/config"
	"github.com/snarg/transcript-editor/internal/editor"
	"github.com/snarg/transcript-editor/internal/transcript"
	"github.com/spf13/cobra"
)

var version = "dev"

// app holds what every subcommand needs, built once flags are parsed.
type app struct {
	cfg *config.EditorConfig
	log zerolog.Logger
	ed  *editor.Editor
}

func main() {
	var overrides config.Overrides
	a := &app{}

	root := &cobra.Command{
		Use:           "transcript-editor",
		Short:         "Play back and correct a transcript held by transcript-server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(overrides)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	pf.StringVar(&overrides.APIURL, "api-url", "", "store API base URL (overrides TRANSCRIPT_API_URL)")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	root.AddCommand(
		showCmd(a),
		playCmd(a),
		correctCmd(a),
		correctAllCmd(a),
		exportCmd(a),
		watchCmd(a),
		sessionCmd(a),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) init(overrides config.Overrides) error {
	cfg, err := config.LoadEditor(overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	a.cfg = cfg
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)

	client := editor.NewClient(editor.ClientOptions{
		BaseURL:      cfg.APIURL,
		AuthToken:    cfg.AuthToken,
		Timeout:      cfg.RequestTimeout,
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		Log:          a.log,
	})
	player := editor.NewPlayer(func(words []transcript.Word, i int) {
		if i >= 0 {
			fmt.Fprintln(os.Stdout, editor.Render(words, i))
		}
	}, cfg.MaxPlayback)
	a.ed = editor.New(client, player, a.log)
	return nil
}
