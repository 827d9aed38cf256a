package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xtxerr/hivestore/config"
	herrors "github.com/xtxerr/hivestore/internal/errors"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	// DataDir
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	// Index
	if err := c.Index.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("index: %w", err))
	}

	// Tabular
	if err := c.Tabular.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tabular: %w", err))
	}

	// Model
	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}

	// IO
	if err := c.IO.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("io: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", herrors.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate checks the index configuration.
func (c *IndexConfig) Validate() error {
	var errs []error

	if c.Filename == "" {
		errs = append(errs, errors.New("filename is required"))
	} else if filepath.Base(c.Filename) != c.Filename {
		errs = append(errs, fmt.Errorf("filename %q must not contain a path separator", c.Filename))
	} else if strings.Contains(c.Filename, "=") {
		errs = append(errs, fmt.Errorf("filename %q must not contain '='", c.Filename))
	}

	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("lock_timeout must be positive"))
	}

	if c.LockRetries < 0 {
		errs = append(errs, errors.New("lock_retries must not be negative"))
	}

	if c.RetryInterval <= 0 {
		errs = append(errs, errors.New("retry_interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the tabular configuration.
func (c *TabularConfig) Validate() error {
	var errs []error

	switch c.Format {
	case "csv", "parquet":
	default:
		errs = append(errs, fmt.Errorf("unknown format %q", c.Format))
	}

	if utf8.RuneCountInString(c.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("delimiter %q must be a single character", c.Delimiter))
	} else if c.Delimiter == "\n" || c.Delimiter == "\r" || c.Delimiter == `"` {
		errs = append(errs, fmt.Errorf("delimiter %q is not allowed", c.Delimiter))
	}

	if c.NullToken == "" {
		errs = append(errs, errors.New("null_token is required"))
	}

	switch c.Compression {
	case "snappy", "zstd", "lz4", "gzip", "none", "":
	default:
		errs = append(errs, fmt.Errorf("unknown compression %q", c.Compression))
	}

	if c.Compression == "zstd" && (c.CompressionLevel < 1 || c.CompressionLevel > 22) {
		errs = append(errs, errors.New("zstd compression_level must be 1-22"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the model configuration.
func (c *ModelConfig) Validate() error {
	var errs []error

	switch c.Encoding {
	case "msgpack", "cbor":
	default:
		errs = append(errs, fmt.Errorf("unknown encoding %q", c.Encoding))
	}

	switch c.Compression {
	case "none", "", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Errorf("unknown compression %q", c.Compression))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the I/O configuration.
func (c *IOConfig) Validate() error {
	if c.Parallelism < 1 || c.Parallelism > config.MaxParallelism {
		return fmt.Errorf("parallelism must be 1-%d", config.MaxParallelism)
	}
	return nil
}
