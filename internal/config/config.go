package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the transcript server configuration.
type Config struct {
	// HTTPAddr wins over Port when both are set.
	HTTPAddr     string        `env:"HTTP_ADDR"`
	Port         int           `env:"PORT" envDefault:"5000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Seed file replaces the built-in twelve-word sequence at boot.
	SeedFile  string `env:"SEED_FILE"`
	WatchSeed bool   `env:"WATCH_SEED" envDefault:"false"`

	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"256"`

	// Optional Postgres snapshot of the sequence.
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseEmbedded bool   `env:"DATABASE_EMBEDDED" envDefault:"false"`
	EmbeddedDBPort   uint32 `env:"DATABASE_EMBEDDED_PORT" envDefault:"5433"`
	EmbeddedDBDir    string `env:"DATABASE_EMBEDDED_DIR" envDefault:"./data/postgres"`

	// Optional MQTT change notifications.
	MQTTBrokerURL    string `env:"MQTT_BROKER_URL"`
	MQTTClientID     string `env:"MQTT_CLIENT_ID" envDefault:"transcript-server"`
	MQTTTopicPrefix  string `env:"MQTT_TOPIC_PREFIX" envDefault:"transcript"`
	MQTTUsername     string `env:"MQTT_USERNAME"`
	MQTTPassword     string `env:"MQTT_PASSWORD"`
	MQTTEmbeddedAddr string `env:"MQTT_EMBEDDED_ADDR"`
}

// EditorConfig is the transcript editor client configuration.
type EditorConfig struct {
	APIURL         string        `env:"TRANSCRIPT_API_URL" envDefault:"http://localhost:5000/api"`
	AuthToken      string        `env:"AUTH_TOKEN"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	RetryMax       int           `env:"RETRY_MAX" envDefault:"3"`
	RetryWaitMin   time.Duration `env:"RETRY_WAIT_MIN" envDefault:"200ms"`
	RetryWaitMax   time.Duration `env:"RETRY_WAIT_MAX" envDefault:"2s"`
	MaxPlayback    time.Duration `env:"MAX_PLAYBACK" envDefault:"10m"`
	ExportDir      string        `env:"EXPORT_DIR" envDefault:"./exports"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"warn"`

	S3 S3Config
}

// S3Config holds S3-compatible object storage settings for exports.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether S3 export is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	SeedFile    string
	DatabaseURL string
	APIURL      string
}

// Load reads server configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	loadEnvFile(overrides.EnvFile)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if cfg.HTTPAddr == "" {
		if cfg.Port < 1 || cfg.Port > 65535 {
			return nil, fmt.Errorf("invalid PORT %d: must be 1-65535", cfg.Port)
		}
		cfg.HTTPAddr = fmt.Sprintf(":%d", cfg.Port)
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.SeedFile != "" {
		cfg.SeedFile = overrides.SeedFile
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}

	if cfg.WatchSeed && cfg.SeedFile == "" {
		return nil, fmt.Errorf("WATCH_SEED requires SEED_FILE")
	}
	if cfg.DatabaseEmbedded && cfg.DatabaseURL != "" {
		return nil, fmt.Errorf("DATABASE_EMBEDDED and DATABASE_URL are mutually exclusive")
	}
	if cfg.EventBufferSize < 1 {
		return nil, fmt.Errorf("invalid EVENT_BUFFER_SIZE %d: must be >= 1", cfg.EventBufferSize)
	}
	return cfg, nil
}

// LoadEditor reads editor configuration the same way Load does.
func LoadEditor(overrides Overrides) (*EditorConfig, error) {
	loadEnvFile(overrides.EnvFile)

	cfg := &EditorConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.APIURL != "" {
		cfg.APIURL = overrides.APIURL
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	if cfg.RetryMax < 0 {
		return nil, fmt.Errorf("invalid RETRY_MAX %d: must be >= 0", cfg.RetryMax)
	}
	return cfg, nil
}

// loadEnvFile loads a .env file, silently skipping it if missing.
func loadEnvFile(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}
