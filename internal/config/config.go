// Package config loads settings from an optional TOML file, a .env file and
// the environment, in that order of increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// DefaultPath is read when present and no explicit path is given.
const DefaultPath = "aidj.toml"

const (
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// Config represents the application configuration.
type Config struct {
	Model    ModelConfig    `toml:"model"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Storage  StorageConfig  `toml:"storage"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// ModelConfig selects the completion provider.
type ModelConfig struct {
	Provider       string `toml:"provider"`
	BedrockModelID string `toml:"bedrock_model_id"`
	VisionModelID  string `toml:"vision_model_id"`
	Region         string `toml:"region"`
	OllamaHost     string `toml:"ollama_host"`
	OllamaModel    string `toml:"ollama_model"`
	MaxRetries     int    `toml:"max_retries"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CallTimeout bounds a single completion call.
func (m ModelConfig) CallTimeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// TextModel is the model id used for interpretation, chat and knowledge.
func (m ModelConfig) TextModel() string {
	if m.Provider == ProviderOllama {
		return m.OllamaModel
	}
	return m.BedrockModelID
}

// VisionModel is the model id used for image analysis.
func (m ModelConfig) VisionModel() string {
	if m.Provider == ProviderOllama {
		return m.OllamaModel
	}
	return m.VisionModelID
}

// SpotifyConfig contains Spotify API credentials and client tuning.
type SpotifyConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	MaxRetries        int     `toml:"max_retries"`
	RetryBackoffMs    int     `toml:"retry_backoff_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// HasAppCredentials reports whether client-credentials search is possible.
func (s SpotifyConfig) HasAppCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// StorageConfig picks the history and session backend.
type StorageConfig struct {
	Driver        string `toml:"driver"`
	SQLitePath    string `toml:"sqlite_path"`
	DatabaseURL   string `toml:"database_url"`
	DynamoDBTable string `toml:"dynamodb_table"`
}

// PipelineConfig bounds a single generation.
type PipelineConfig struct {
	DefaultLimit int    `toml:"default_limit"`
	Timeout      string `toml:"timeout"`
}

// TimeoutDuration parses Timeout, accepting "90s" or a bare number of seconds.
func (p PipelineConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(p.Timeout)
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the settings from the embedded example file.
func DefaultConfig() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// LoadFile overlays a TOML file onto the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration. An explicit path must exist;
// with an empty path, DefaultPath is used only if present. A .env file in
// the working directory is loaded into the environment without overriding
// variables that are already set.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	switch {
	case path != "":
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case fileExists(DefaultPath):
		loaded, err := LoadFile(DefaultPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if fileExists(".env") {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
			return
		}
		*dst = f
	}

	str("AIDJ_MODEL_PROVIDER", &c.Model.Provider)
	str("BEDROCK_MODEL_ID", &c.Model.BedrockModelID)
	str("NOVA_MODEL_ID", &c.Model.VisionModelID)
	str("AWS_REGION", &c.Model.Region)
	str("OLLAMA_HOST", &c.Model.OllamaHost)
	str("OLLAMA_MODEL", &c.Model.OllamaModel)
	integer("AIDJ_MODEL_MAX_RETRIES", &c.Model.MaxRetries)
	integer("AIDJ_MODEL_TIMEOUT_SECONDS", &c.Model.TimeoutSeconds)

	str("SPOTIFY_CLIENT_ID", &c.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Spotify.ClientSecret)
	integer("SPOTIFY_MAX_RETRIES", &c.Spotify.MaxRetries)
	integer("SPOTIFY_RETRY_BACKOFF_MS", &c.Spotify.RetryBackoffMs)
	float("SPOTIFY_REQUESTS_PER_SECOND", &c.Spotify.RequestsPerSecond)

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("DATABASE_URL", &c.Storage.DatabaseURL)
	str("DYNAMODB_TABLE_NAME", &c.Storage.DynamoDBTable)

	integer("AIDJ_DEFAULT_LIMIT", &c.Pipeline.DefaultLimit)
	str("AIDJ_PIPELINE_TIMEOUT", &c.Pipeline.Timeout)
	integer("PORT", &c.Server.Port)

	str("AIDJ_LOG_LEVEL", &c.Log.Level)
	str("AIDJ_LOG_FORMAT", &c.Log.Format)

	c.Model.Provider = strings.ToLower(c.Model.Provider)
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)

	return errors.Join(errs...)
}

// Validate reports every missing or inconsistent value at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Model.Provider {
	case ProviderBedrock:
		if c.Model.BedrockModelID == "" {
			errs = append(errs, errors.New("BEDROCK_MODEL_ID is required for the bedrock provider"))
		}
		if c.Model.VisionModelID == "" {
			errs = append(errs, errors.New("NOVA_MODEL_ID is required for the bedrock provider"))
		}
	case ProviderOllama:
		if c.Model.OllamaModel == "" {
			errs = append(errs, errors.New("OLLAMA_MODEL is required for the ollama provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverDynamoDB:
		if c.Storage.DynamoDBTable == "" {
			errs = append(errs, errors.New("DYNAMODB_TABLE_NAME is required for the dynamodb driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set together"))
	}
	if c.Model.TimeoutSeconds < 1 {
		errs = append(errs, errors.New("AIDJ_MODEL_TIMEOUT_SECONDS must be positive"))
	}
	if c.Pipeline.DefaultLimit < 1 {
		errs = append(errs, errors.New("AIDJ_DEFAULT_LIMIT must be positive"))
	}
	if d, err := c.Pipeline.TimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("AIDJ_PIPELINE_TIMEOUT: %w", err))
	} else if d <= 0 {
		errs = append(errs, errors.New("AIDJ_PIPELINE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
