// Package config loads process configuration from an optional YAML file and
// the environment.
package config

import (
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds process-level settings. Pomodoro durations and goals are not
// here: those live in the persistent store and belong to the user, not the
// deployment.
type Config struct {
	DataDir      string `yaml:"data_dir" env:"POMOTRON_DATA_DIR"`
	LogLevel     string `yaml:"log_level" env:"POMOTRON_LOG_LEVEL" env-default:"info"`
	StorageQuota int64  `yaml:"storage_quota_bytes" env:"POMOTRON_STORAGE_QUOTA" env-default:"5242880"`
}

// Load reads the config file at path if it exists, then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, err
			}
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = filepath.Join(base, "pomotron")
	}
	return cfg, nil
}

// LogPath returns the log file location under the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "pomotron.log")
}

// StatePath returns the key-value state directory.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// ArchivePath returns the SQLite archive location.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, "archive.db")
}
