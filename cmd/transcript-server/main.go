package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	transcripteditor "github.com/snarg/transcript-editor"
	"github.com/snarg/transcript-editor/internal/api"
	"github.com/snarg/transcript-editor/internal/config"
	"github.com/snarg/transcript-editor/internal/database"
	"github.com/snarg/transcript-editor/internal/eventbus"
	"github.com/snarg/transcript-editor/internal/metrics"
	"github.com/snarg/transcript-editor/internal/mqttclient"
	"github.com/snarg/transcript-editor/internal/seed"
	"github.com/snarg/transcript-editor/internal/transcript"
	"github.com/spf13/cobra"
)

var version = "dev"

const snapshotInterval = time.Second

func main() {
	var overrides config.Overrides

	root := &cobra.Command{
		Use:           "transcript-server",
		Short:         "Serve an editable in-memory transcript over HTTP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(overrides)
		},
	}
	f := root.Flags()
	f.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	f.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	f.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	f.StringVar(&overrides.SeedFile, "seed-file", "", "JSON or YAML seed file (overrides SEED_FILE)")
	f.StringVar(&overrides.DatabaseURL, "database-url", "", "Postgres snapshot DSN (overrides DATABASE_URL)")

	if err := root.Execute(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Error().Err(err).Msg("transcript-server failed")
		os.Exit(1)
	}
}

func run(overrides config.Overrides) error {
	startTime := time.Now()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("transcript-server starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial sequence: seed file, else database snapshot, else built-in seed.
	words := transcript.Seed()
	fromFile := false
	if cfg.SeedFile != "" {
		if words, err = seed.Load(cfg.SeedFile); err != nil {
			return err
		}
		fromFile = true
		log.Info().Str("path", cfg.SeedFile).Int("words", len(words)).Msg("seed file loaded")
	}

	// Database
	var db *database.DB
	dsn := cfg.DatabaseURL
	if cfg.DatabaseEmbedded {
		pg, err := database.StartEmbedded(cfg.EmbeddedDBDir, cfg.EmbeddedDBPort,
			log.With().Str("component", "embedded-postgres").Logger())
		if err != nil {
			return err
		}
		defer pg.Stop()
		dsn = pg.DSN()
	}
	if dsn != "" {
		dbLog := log.With().Str("component", "database").Logger()
		if db, err = database.Open(ctx, dsn, dbLog); err != nil {
			return fmt.Errorf("open snapshot database: %w", err)
		}
		defer db.Close()

		if !fromFile {
			stored, err := db.LoadWords(ctx)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			if len(stored) > 0 {
				words = stored
				log.Info().Int("words", len(stored)).Msg("restored sequence from database snapshot")
			}
		}
	}

	store, err := transcript.NewStore(words)
	if err != nil {
		return fmt.Errorf("initial sequence: %w", err)
	}

	// Event bus for SSE and WebSocket subscribers
	bus := eventbus.New(cfg.EventBufferSize)
	store.OnChange(bus.HandleChange)

	var health api.HealthDeps
	var pool *pgxpool.Pool

	if db != nil {
		if err := db.SaveWords(ctx, store.FetchAll()); err != nil {
			return fmt.Errorf("write initial snapshot: %w", err)
		}
		snap := database.NewSnapshotter(db, store.FetchAll, snapshotInterval, log)
		store.OnChange(snap.HandleChange)
		defer snap.Stop()
		health.DB = db
		pool = db.Pool
	}

	// MQTT
	brokerURL := cfg.MQTTBrokerURL
	if cfg.MQTTEmbeddedAddr != "" {
		broker, err := mqttclient.StartBroker(cfg.MQTTEmbeddedAddr, log.With().Str("component", "mqtt-broker").Logger())
		if err != nil {
			return fmt.Errorf("start embedded mqtt broker: %w", err)
		}
		defer broker.Close()
		if brokerURL == "" {
			brokerURL = broker.URL()
		}
	}
	if brokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mq, err := mqttclient.Connect(mqttclient.Options{
			BrokerURL:   brokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         mqttLog,
		})
		if err != nil {
			return fmt.Errorf("connect mqtt broker: %w", err)
		}
		defer mq.Close()
		store.OnChange(mq.HandleChange)
		health.MQTT = mq
	}

	// Seed file watcher
	if cfg.WatchSeed {
		w := seed.NewWatcher(cfg.SeedFile, store, log)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start seed watcher: %w", err)
		}
		defer w.Stop()
		health.Watcher = w
	}

	prometheus.MustRegister(metrics.NewCollector(pool, liveStats{store: store, bus: bus}))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:      cfg,
		Store:       store,
		Events:      bus,
		Health:      health,
		OpenAPISpec: transcripteditor.OpenAPISpec,
		Version:     version,
		StartTime:   startTime,
		Log:         httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Int("words", store.Len()).Msg("transcript-server stopped")
	return serveErr
}

// liveStats feeds the scrape-time collector.
type liveStats struct {
	store *transcript.Store
	bus   *eventbus.EventBus
}

func (s liveStats) WordCount() int         { return s.store.Len() }
func (s liveStats) SubscriberCount() int   { return s.bus.SubscriberCount() }
func (s liveStats) EventsPublished() int64 { return s.bus.Published() }
