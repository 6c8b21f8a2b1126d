// Package config builds the process-wide configuration exactly once at
// startup. Components receive the resulting struct by reference; nothing
// below main reads the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the agent and the reader.
type Config struct {
	// ClientRoot is the watched client folder holding TARJETAS and COMPRAS.
	ClientRoot string `yaml:"client_root"`

	// Oracle backend (HMAC-signed HTTP). When BackendURL is empty the reader
	// falls back to calling Gemini directly.
	BackendURL    string `yaml:"backend_url"`
	BackendRoute  string `yaml:"backend_route"`
	OracleClient  string `yaml:"oracle_client_id"`
	OracleSecret  string `yaml:"oracle_client_secret"`
	Model         string `yaml:"model"`
	MaxOutputToks int    `yaml:"max_output_tokens"`

	// OracleTimeout is the fixed ceiling per extraction call.
	OracleTimeout time.Duration `yaml:"oracle_timeout"`

	// MinFileAge gates file stability: a file modified more recently than
	// this stays unprocessed until the next run.
	MinFileAge time.Duration `yaml:"min_file_age"`

	// LockMaxAge is the staleness threshold for the advisory run lock.
	LockMaxAge time.Duration `yaml:"lock_max_age"`

	// RetentionDays bounds the age of generated outputs kept in OutDirName.
	RetentionDays int `yaml:"retention_days"`

	// OutDirName is the per-folder subdirectory receiving generated outputs.
	OutDirName string `yaml:"out_dir_name"`

	// RoutesDSN points at the optional Postgres route lookup. Empty disables it.
	RoutesDSN string `yaml:"routes_dsn"`

	// DefaultClientID is used when the route lookup is absent or has no row
	// for the folder.
	DefaultClientID int `yaml:"default_client_id"`
}

// Defaults returns the baseline configuration before file and env overrides.
func Defaults() *Config {
	return &Config{
		BackendRoute:    "/v1/process",
		Model:           "gemini-2.5-flash",
		MaxOutputToks:   4000,
		OracleTimeout:   5 * time.Minute,
		MinFileAge:      30 * time.Second,
		LockMaxAge:      2 * time.Hour,
		RetentionDays:   30,
		OutDirName:      "procesados",
		DefaultClientID: 1,
	}
}

// Load assembles the configuration: defaults, then the optional YAML file,
// then environment variables. A .env next to the binary or in the working
// directory is honoured first, matching the legacy deployment.
func Load(yamlPath string) (*Config, error) {
	loadDotenv()

	cfg := Defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", yamlPath, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func loadDotenv() {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), ".env")
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
	// cwd fallback; missing file is fine
	_ = godotenv.Load()
}

func applyEnv(cfg *Config) {
	setString(&cfg.ClientRoot, "RUTA_CLIENTE")
	setString(&cfg.BackendURL, "IA_BACKEND_URL")
	setString(&cfg.BackendRoute, "IA_BACKEND_ROUTE")
	setString(&cfg.OracleClient, "IA_CLIENT_ID")
	setString(&cfg.OracleSecret, "IA_CLIENT_SECRET")
	setString(&cfg.Model, "IA_MODEL")
	setString(&cfg.RoutesDSN, "ROUTES_DSN")
	setString(&cfg.OutDirName, "OUT_DIR_NAME")
	setInt(&cfg.MaxOutputToks, "IA_MAX_OUTPUT_TOKENS")
	setInt(&cfg.RetentionDays, "RETENTION_DAYS")
	setInt(&cfg.DefaultClientID, "DEFAULT_CLIENT_ID")
	setDuration(&cfg.OracleTimeout, "ORACLE_TIMEOUT")
	setDuration(&cfg.MinFileAge, "MIN_FILE_AGE")
	setDuration(&cfg.LockMaxAge, "LOCK_MAX_AGE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// ValidateAgent checks the fields the agent cannot run without.
func (c *Config) ValidateAgent() error {
	if c.ClientRoot == "" {
		return fmt.Errorf("config: RUTA_CLIENTE (client_root) is required")
	}
	return nil
}

// BackendEnabled reports whether the HMAC backend transport should be used.
func (c *Config) BackendEnabled() bool {
	return c.BackendURL != ""
}

// ValidateOracle checks that at least one oracle transport is configured.
func (c *Config) ValidateOracle() error {
	if c.BackendEnabled() {
		if c.OracleClient == "" || c.OracleSecret == "" {
			return fmt.Errorf("config: IA_CLIENT_ID / IA_CLIENT_SECRET are required with IA_BACKEND_URL")
		}
		return nil
	}
	if os.Getenv("GOOGLE_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("config: set IA_BACKEND_URL for backend mode or GOOGLE_API_KEY for direct mode")
	}
	return nil
}
