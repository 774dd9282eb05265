package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/cmir/pkg/cmir/hashseq"
	"github.com/cognicore/cmir/pkg/cmir/internalerr"
	"github.com/cognicore/cmir/pkg/cmir/logging"
	"github.com/cognicore/cmir/pkg/cmir/names"
)

// EnvDatabase overrides database.path when set.
const EnvDatabase = "CMIR_DATABASE"

// DefaultHashType tags play_seq rows built from "composer - work" strings.
const DefaultHashType = 1

// Config is the cmir.yml file
type Config struct {
	Log           LogConfig      `yaml:"log"`
	Database      DatabaseConfig `yaml:"database"`
	HashSeq       HashSeqConfig  `yaml:"hash_seq"`
	Names         names.Vocab    `yaml:"names"`
	CondRoles     []string       `yaml:"conductor_roles"`
	SkipEnsembles []string       `yaml:"skip_ensembles"`
	RegistrySeed  string         `yaml:"registry_seed"`
}

// LogConfig configures the rotating log file
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Debug      bool   `yaml:"debug"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HashSeqConfig configures play sequence fingerprinting
type HashSeqConfig struct {
	Depth    int `yaml:"depth"`
	HashType int `yaml:"hash_type"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
		},
		HashSeq: HashSeqConfig{
			Depth:    hashseq.DefaultDepth,
			HashType: DefaultHashType,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path yields the
// defaults. The CMIR_DATABASE environment variable wins over the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
		}
		if cfg.RegistrySeed != "" && !filepath.IsAbs(cfg.RegistrySeed) {
			cfg.RegistrySeed = filepath.Join(filepath.Dir(path), cfg.RegistrySeed)
		}
	}
	if db := os.Getenv(EnvDatabase); db != "" {
		cfg.Database.Path = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.HashSeq.Depth < 1 {
		return fmt.Errorf("%w: hash_seq.depth must be >= 1, got %d", internalerr.ErrInvalidConfig, c.HashSeq.Depth)
	}
	if c.HashSeq.HashType < 1 {
		return fmt.Errorf("%w: hash_seq.hash_type must be >= 1, got %d", internalerr.ErrInvalidConfig, c.HashSeq.HashType)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return fmt.Errorf("%w: log rotation limits must not be negative", internalerr.ErrInvalidConfig)
	}
	return nil
}

// LogOptions maps the log section onto logging.Options.
func (c *Config) LogOptions() logging.Options {
	return logging.Options{
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		Debug:      c.Log.Debug,
	}
}

// RegistrySeed is a list of known entities used to prime the registry
type RegistrySeed struct {
	Entities []SeedEntity `yaml:"entities"`
}

// SeedEntity is one registry seed row
type SeedEntity struct {
	Ref      string `yaml:"ref"`
	Type     string `yaml:"type"`
	Strength int    `yaml:"strength"`
	Source   string `yaml:"source"`
}

// LoadRegistrySeed loads registry seed entities from a YAML file
func LoadRegistrySeed(path string) (*RegistrySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed RegistrySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}

	for i, e := range seed.Entities {
		if e.Ref == "" || e.Type == "" {
			return nil, fmt.Errorf("%w: seed entity %d needs ref and type", internalerr.ErrInvalidConfig, i)
		}
	}
	return &seed, nil
}
