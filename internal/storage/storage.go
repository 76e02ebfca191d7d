package storage

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/snarg/transcript-editor/internal/config"
)

// ExportStore abstracts where exported transcript artifacts are written.
type ExportStore interface {
	// Save stores an artifact under key.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Location returns where a saved artifact can be retrieved: a file path
	// for local stores, a presigned URL for S3.
	Location(ctx context.Context, key string) (string, error)

	// Exists reports whether key has been saved.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ExportKey returns a fresh artifact key of the form transcript-<id>.json.
func ExportKey() (string, error) {
	id, err := gonanoid.Generate(keyAlphabet, 12)
	if err != nil {
		return "", fmt.Errorf("generate export key: %w", err)
	}
	return "transcript-" + id + ".json", nil
}

// New creates an ExportStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, exportDir string, log zerolog.Logger) (ExportStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(exportDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Debug().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")
	return s3store, nil
}
