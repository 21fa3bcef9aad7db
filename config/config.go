package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/retrieval"
	"github.com/uxsense/backend/store"
)

// Environment variable name for controlling statistics visibility
const EnvDevMode = "DEV_MODE"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Store     StoreConfig     `yaml:"store"`
	Data      DataConfig      `yaml:"data"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	DevMode   bool            `yaml:"dev_mode"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// CORSOrigins lists cross-origin callers allowed on the API. Empty
	// means same-origin only.
	CORSOrigins []string `yaml:"cors_origins"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type StoreConfig struct {
	Type string `yaml:"type"` // sqlite, mysql, file
	DSN  string `yaml:"dsn"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
}

type RetrievalConfig struct {
	Delay time.Duration `yaml:"delay"`
}

type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`  // tokens per second
	Burst int     `yaml:"burst"` // bucket size
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8082",
			Mode: "release",
		},
		Provider: ProviderConfig{
			Model: analyzer.DefaultModel,
		},
		Store: StoreConfig{
			Type: store.TypeSQLite,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Retrieval: RetrievalConfig{
			Delay: retrieval.DefaultDelay,
		},
		RateLimit: RateLimitConfig{
			Rate:  2,
			Burst: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadEnv loads .env.development, falling back to .env. The error only
// reports that neither file could be read.
func LoadEnv() error {
	if err := godotenv.Load(".env.development"); err != nil {
		return godotenv.Load()
	}
	return nil
}

// Load reads the optional YAML file named by CONFIG_PATH (default
// config.yaml) over the defaults, then applies environment overrides.
func Load() (*Config, error) {
	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.Store.Type = strings.ToLower(strings.TrimSpace(config.Store.Type))
	if config.Store.Type == store.TypeSQLite && config.Store.DSN == "" {
		config.Store.DSN = filepath.Join(config.Data.Dir, "uxsense.db")
	}
	return config, config.Validate()
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	setString(&c.Provider.APIKey, "GEMINI_API_KEY", "API_KEY")
	setString(&c.Provider.Model, "GEMINI_MODEL")
	setString(&c.Provider.BaseURL, "GEMINI_BASE_URL")
	setString(&c.Store.Type, "STORE_TYPE")
	setString(&c.Store.DSN, "STORE_DSN")
	setString(&c.Data.Dir, "DATA_DIR")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("RETRIEVAL_DELAY"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RETRIEVAL_DELAY %q: %w", v, err)
		}
		c.Retrieval.Delay = delay
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT %q: %w", v, err)
		}
		c.RateLimit.Rate = rate
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_BURST %q: %w", v, err)
		}
		c.RateLimit.Burst = burst
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(EnvDevMode); v != "" {
		c.DevMode = v == "true"
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Store.Type {
	case store.TypeSQLite, store.TypeMySQL, store.TypeFile:
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.Store.Type == store.TypeMySQL && c.Store.DSN == "" {
		return errors.New("mysql store requires STORE_DSN")
	}
	if c.RateLimit.Rate <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v", c.RateLimit.Rate)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate burst must be positive, got %d", c.RateLimit.Burst)
	}
	if c.Retrieval.Delay < 0 {
		return fmt.Errorf("retrieval delay cannot be negative, got %v", c.Retrieval.Delay)
	}
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	return nil
}

// HasProvider reports whether an API key is configured
func (c *Config) HasProvider() bool {
	return strings.TrimSpace(c.Provider.APIKey) != ""
}

// AnalyzerConfig converts the provider section for the analyzer package
func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		APIKey:  c.Provider.APIKey,
		Model:   c.Provider.Model,
		BaseURL: c.Provider.BaseURL,
	}
}
