package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/hivestore/config"
)

// Config represents the complete storage configuration.
type Config struct {
	// DataDir is the default base directory for the CLI.
	DataDir string `yaml:"data_dir"`

	// Index configures the side-index and its lock.
	Index IndexConfig `yaml:"index"`

	// Tabular configures tabular shard encoding.
	Tabular TabularConfig `yaml:"tabular"`

	// Model configures model artifact encoding.
	Model ModelConfig `yaml:"model"`

	// IO configures file I/O.
	IO IOConfig `yaml:"io"`
}

// IndexConfig configures the side-index and its lock.
type IndexConfig struct {
	// Filename is the index file name inside every index root.
	Filename string `yaml:"filename"`

	// LockTimeout bounds a single lock acquisition.
	// Format: "500ms", "10s"
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// LockRetries is the number of retries after a lock timeout.
	LockRetries int `yaml:"lock_retries"`

	// RetryInterval is the initial backoff interval.
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// TabularConfig configures tabular shard encoding.
type TabularConfig struct {
	// Format is the shard format: csv, parquet.
	Format string `yaml:"format"`

	// Delimiter is the CSV field separator (single character).
	Delimiter string `yaml:"delimiter"`

	// NullToken marks null cells in CSV shards.
	NullToken string `yaml:"null_token"`

	// Compression is the Parquet compression: snappy, zstd, lz4, gzip, none.
	Compression string `yaml:"compression"`

	// CompressionLevel is the compression level (for zstd: 1-22).
	CompressionLevel int `yaml:"compression_level"`
}

// ModelConfig configures model artifact encoding.
type ModelConfig struct {
	// Encoding is the object encoding: msgpack, cbor.
	Encoding string `yaml:"encoding"`

	// Compression wraps encoded bytes: none, zstd, lz4.
	Compression string `yaml:"compression"`
}

// IOConfig configures file I/O.
type IOConfig struct {
	// Parallelism caps concurrent file encodes/decodes per call.
	Parallelism int `yaml:"parallelism"`
}

// LockFilename returns the advisory lock file name.
func (c *IndexConfig) LockFilename() string {
	return c.Filename + config.LockSuffix
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: ".",
		Index: IndexConfig{
			Filename:      config.DefaultIndexFilename,
			LockTimeout:   config.DefaultLockTimeout,
			LockRetries:   config.DefaultLockRetries,
			RetryInterval: config.DefaultRetryInterval,
		},
		Tabular: TabularConfig{
			Format:           config.DefaultTabularFormat,
			Delimiter:        config.DefaultDelimiter,
			NullToken:        config.DefaultNullToken,
			Compression:      config.DefaultParquetCompression,
			CompressionLevel: 3,
		},
		Model: ModelConfig{
			Encoding:    config.DefaultModelEncoding,
			Compression: config.DefaultModelCompression,
		},
		IO: IOConfig{
			Parallelism: config.DefaultParallelism,
		},
	}
}
