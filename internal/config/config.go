// Package config loads the server configuration: defaults, then an
// optional YAML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "NAJDENO_CONFIG"

// Config is the complete server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Database is the sqlite database path.
	Database string `yaml:"database"`

	// LogFile, if set, mirrors all log output to this file.
	LogFile string `yaml:"log_file"`

	// ConfirmationSecret signs transfer confirmation tokens. When empty a
	// secret is generated once and kept in the database.
	ConfirmationSecret string `yaml:"confirmation_secret"`

	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
}

type SearchConfig struct {
	// Thresholds are the similarity tiers, strictest first.
	Thresholds []float64 `yaml:"thresholds"`
}

type EmbeddingConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type IndexerConfig struct {
	Workers int `yaml:"workers"`
	Queue   int `yaml:"queue"`
}

// RedisConfig enables the cross-instance chat relay when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig enables lifecycle event publishing when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		Database: "najdeno.sqlite3",
		Search: SearchConfig{
			Thresholds: []float64{0.30, 0.25, 0.20},
		},
		Embedding: EmbeddingConfig{
			Model:   "text-embedding-3-small",
			Timeout: 30 * time.Second,
		},
		Indexer: IndexerConfig{
			Workers: 2,
			Queue:   128,
		},
		NATS: NATSConfig{
			SubjectPrefix: "najdeno",
		},
	}
}

// Load builds the configuration for a command invoked with args. A .env
// file in the working directory is loaded into the environment first, if
// present.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	path := fs.StringP("config", "c", os.Getenv(EnvConfigPath), "YAML config file")
	listen := fs.StringP("listen", "a", "", "listen address")
	database := fs.StringP("db", "d", "", "sqlite database path")
	logFile := fs.StringP("log", "l", "", "log file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *path != "" {
		if err := cfg.LoadFile(*path); err != nil {
			return nil, err
		}
	}

	if fs.Changed("listen") {
		cfg.Listen = *listen
	}
	if fs.Changed("db") {
		cfg.Database = *database
	}
	if fs.Changed("log") {
		cfg.LogFile = *logFile
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML file into c and expands ${VAR} references.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.expandVariables()
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if len(c.Search.Thresholds) == 0 {
		errs = append(errs, errors.New("search.thresholds must not be empty"))
	}
	for _, t := range c.Search.Thresholds {
		if t < -1 || t > 1 {
			errs = append(errs, fmt.Errorf("search threshold %v outside [-1, 1]", t))
		}
	}
	if c.Indexer.Workers < 1 {
		errs = append(errs, errors.New("indexer.workers must be at least 1"))
	}
	if c.Indexer.Queue < 1 {
		errs = append(errs, errors.New("indexer.queue must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) expandVariables() {
	for _, s := range []*string{
		&c.Listen, &c.Database, &c.LogFile, &c.ConfirmationSecret,
		&c.Embedding.BaseURL, &c.Embedding.APIKey, &c.Embedding.Model,
		&c.Redis.Addr, &c.Redis.Password, &c.NATS.URL, &c.NATS.SubjectPrefix,
	} {
		*s = expandVars(*s)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
