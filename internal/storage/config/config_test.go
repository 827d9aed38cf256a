package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir == "" {
		t.Error("expected default data_dir")
	}

	if cfg.Index.Filename != "index.json" {
		t.Errorf("expected index.json, got %q", cfg.Index.Filename)
	}

	if cfg.Index.LockFilename() != "index.json.lock" {
		t.Errorf("unexpected lock filename %q", cfg.Index.LockFilename())
	}

	if cfg.Index.LockTimeout <= 0 {
		t.Error("expected positive lock_timeout")
	}

	if cfg.IO.Parallelism <= 0 {
		t.Error("expected positive parallelism")
	}
}

func TestConfigValidate(t *testing.T) {
	// Valid config
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data_dir", func(c *Config) { c.DataDir = "" }},
		{"index filename with separator", func(c *Config) { c.Index.Filename = "a/index.json" }},
		{"index filename with equals", func(c *Config) { c.Index.Filename = "a=b.json" }},
		{"zero lock timeout", func(c *Config) { c.Index.LockTimeout = 0 }},
		{"negative retries", func(c *Config) { c.Index.LockRetries = -1 }},
		{"bad format", func(c *Config) { c.Tabular.Format = "xlsx" }},
		{"long delimiter", func(c *Config) { c.Tabular.Delimiter = ";;" }},
		{"quote delimiter", func(c *Config) { c.Tabular.Delimiter = `"` }},
		{"empty null token", func(c *Config) { c.Tabular.NullToken = "" }},
		{"bad compression", func(c *Config) { c.Tabular.Compression = "brotli" }},
		{"bad zstd level", func(c *Config) { c.Tabular.CompressionLevel = 40 }},
		{"bad model encoding", func(c *Config) { c.Model.Encoding = "pickle" }},
		{"bad model compression", func(c *Config) { c.Model.Compression = "gzip" }},
		{"zero parallelism", func(c *Config) { c.IO.Parallelism = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, herrors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hivestore.yaml")

	content := `
data_dir: /srv/data
index:
  filename: partitions.json
  lock_timeout: 2s
  lock_retries: 5
tabular:
  format: parquet
  compression: snappy
model:
  encoding: cbor
  compression: zstd
io:
  parallelism: 8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/srv/data" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Index.Filename != "partitions.json" {
		t.Errorf("index.filename = %q", cfg.Index.Filename)
	}
	if cfg.Index.LockTimeout != 2*time.Second {
		t.Errorf("lock_timeout = %v", cfg.Index.LockTimeout)
	}
	if cfg.Index.LockRetries != 5 {
		t.Errorf("lock_retries = %d", cfg.Index.LockRetries)
	}
	if cfg.Tabular.Format != "parquet" || cfg.Tabular.Compression != "snappy" {
		t.Errorf("tabular = %+v", cfg.Tabular)
	}
	// Untouched fields keep defaults.
	if cfg.Tabular.NullToken != `\N` {
		t.Errorf("null_token = %q", cfg.Tabular.NullToken)
	}
	if cfg.Model.Encoding != "cbor" || cfg.Model.Compression != "zstd" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.IO.Parallelism != 8 {
		t.Errorf("parallelism = %d", cfg.IO.Parallelism)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("io:\n  parallelism: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
