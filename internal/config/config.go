package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/generator"
)

// Config aggregates application configuration values.
type Config struct {
	Generation GenerationConfig
	HTTP       HTTPConfig
	Graph      GraphConfig
	Postgres   PostgresConfig
	NATS       NATSConfig
	S3         S3Config
	Logging    LoggingConfig
}

// GenerationConfig holds the dataset parameters read from CDR_* variables.
type GenerationConfig struct {
	NumUsers        int     `envconfig:"NUM_USERS" default:"150000"`
	NumTowers       int     `envconfig:"NUM_CELL_TOWERS" default:"50"`
	Days            int     `envconfig:"DAYS" default:"7"`
	AnomalyRatio    float64 `envconfig:"ANOMALY_RATIO" default:"0.05"`
	Seed            int64   `envconfig:"SEED" default:"42"`
	CallsPerUserMin int     `envconfig:"CALLS_PER_USER_MIN" default:"15"`
	CallsPerUserMax int     `envconfig:"CALLS_PER_USER_MAX" default:"25"`
	Parallel        bool    `envconfig:"ENABLE_PARALLEL" default:"true"`
	Workers         int     `envconfig:"WORKERS" default:"0"`
	CallsPerChunk   int     `envconfig:"CALLS_PER_CHUNK" default:"10000"`
	StartDate       string  `envconfig:"START_DATE" default:"2024-01-01"`
	OutputDir       string  `envconfig:"OUTPUT_DIR" default:"data"`
	Profile         string  `envconfig:"PROFILE"`
}

// HTTPConfig governs the ops server.
type HTTPConfig struct {
	MetricsAddr     string        `envconfig:"METRICS_ADDR"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// GraphConfig describes connectivity to the graph database (Neo4j).
type GraphConfig struct {
	URI            string `envconfig:"URI"`
	Database       string `envconfig:"DATABASE"`
	Username       string `envconfig:"USERNAME"`
	Password       string `envconfig:"PASSWORD"`
	MaxConnections int    `envconfig:"MAX_CONNECTIONS" default:"10" validate:"gte=1"`
	BatchSize      int    `envconfig:"BATCH_SIZE" default:"1000" validate:"gte=1"`
	Workers        int    `envconfig:"WORKERS" default:"4" validate:"gte=1"`
}

// PostgresConfig describes the relational call sink.
type PostgresConfig struct {
	DSN       string `envconfig:"DSN"`
	Table     string `envconfig:"TABLE" default:"cdr_call_records" validate:"required"`
	BatchSize int    `envconfig:"BATCH_SIZE" default:"5000" validate:"gte=1"`
	MaxConns  int32  `envconfig:"MAX_CONNS" default:"4" validate:"gte=1"`
	Replace   bool   `envconfig:"REPLACE" default:"true"`
}

// NATSConfig describes the stream sink.
type NATSConfig struct {
	URL     string `envconfig:"URL" default:"nats://127.0.0.1:4222"`
	Subject string `envconfig:"SUBJECT" default:"cdr.calls" validate:"required"`
	Name    string `envconfig:"CLIENT_NAME" default:"cdrgen"`
}

// S3Config describes the object store receiving exported runs.
type S3Config struct {
	Bucket          string `envconfig:"BUCKET"`
	Region          string `envconfig:"REGION" default:"us-east-1"`
	Endpoint        string `envconfig:"ENDPOINT"`
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
	Prefix          string `envconfig:"PREFIX" default:"cdr"`
	UsePathStyle    bool   `envconfig:"USE_PATH_STYLE"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `envconfig:"LEVEL" default:"info"`
	Format        string `envconfig:"FORMAT" default:"text" validate:"oneof=text json"`
	IncludeCaller bool   `envconfig:"INCLUDE_CALLER"`
}

var validate = validator.New()

// Load reads a .env file when present, then environment variables, applying defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	sections := []struct {
		prefix string
		target any
	}{
		{"CDR", &cfg.Generation},
		{"SERVER", &cfg.HTTP},
		{"GRAPH", &cfg.Graph},
		{"POSTGRES", &cfg.Postgres},
		{"NATS", &cfg.NATS},
		{"S3", &cfg.S3},
		{"LOG", &cfg.Logging},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return Config{}, fmt.Errorf("load %s_* settings: %w", s.prefix, err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, formatValidationError(err)
	}
	return cfg, nil
}

// Generator converts the environment settings into a generator configuration.
func (g GenerationConfig) Generator() (generator.Config, error) {
	cfg := generator.DefaultConfig()
	cfg.NumUsers = g.NumUsers
	cfg.NumTowers = g.NumTowers
	cfg.Days = g.Days
	cfg.AnomalyRatio = g.AnomalyRatio
	cfg.Seed = g.Seed
	cfg.CallsPerUserMin = g.CallsPerUserMin
	cfg.CallsPerUserMax = g.CallsPerUserMax
	cfg.Parallel = g.Parallel
	cfg.Workers = g.Workers
	cfg.CallsPerChunk = g.CallsPerChunk

	if g.StartDate != "" {
		start, err := time.ParseInLocation("2006-01-02", g.StartDate, time.UTC)
		if err != nil {
			return generator.Config{}, fmt.Errorf("invalid CDR_START_DATE: %w", err)
		}
		cfg.StartDate = start
	}

	if g.Profile != "" {
		if err := ApplyProfile(g.Profile, &cfg); err != nil {
			return generator.Config{}, err
		}
	}
	return cfg, nil
}

// ApplyProfile overlays the generation parameters set in a YAML profile onto cfg.
// Keys absent from the profile keep their current value.
func ApplyProfile(path string, cfg *generator.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return nil
}

// ValidateGeneration checks the bounds of a generator configuration.
func ValidateGeneration(cfg generator.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s, got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s, got %v", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
