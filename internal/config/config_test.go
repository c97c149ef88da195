package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir == "" {
		t.Fatal("no data dir resolved")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
	if cfg.StorageQuota != 5*1024*1024 {
		t.Fatalf("quota %d", cfg.StorageQuota)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "data_dir: /tmp/pomotron-test\nlog_level: debug\nstorage_quota_bytes: 1024\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/pomotron-test" || cfg.LogLevel != "debug" || cfg.StorageQuota != 1024 {
		t.Fatalf("cfg %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POMOTRON_LOG_LEVEL", "warn")
	t.Setenv("POMOTRON_DATA_DIR", dir)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env did not win: %q", cfg.LogLevel)
	}
	if cfg.DataDir != dir {
		t.Fatalf("data dir %q", cfg.DataDir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level %q", cfg.LogLevel)
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.LogPath(); got != filepath.Join("/data", "pomotron.log") {
		t.Errorf("log path %q", got)
	}
	if got := cfg.StatePath(); got != filepath.Join("/data", "state") {
		t.Errorf("state path %q", got)
	}
	if got := cfg.ArchivePath(); got != filepath.Join("/data", "archive.db") {
		t.Errorf("archive path %q", got)
	}
}
