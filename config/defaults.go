// Package config provides configuration defaults for hivestore.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via the YAML configuration file.
package config

import "time"

// =============================================================================
// Index Defaults
// =============================================================================

const (
	// DefaultIndexFilename is the name of the side-index kept in every
	// index root directory.
	// Override via config: index.filename
	DefaultIndexFilename = "index.json"

	// LockSuffix is appended to the index filename to form the advisory
	// lock file name (index.json.lock).
	LockSuffix = ".lock"

	// DefaultLockTimeout bounds how long a single operation waits for the
	// index lock before failing with a lock timeout.
	// Override via config: index.lock_timeout
	DefaultLockTimeout = 10 * time.Second

	// DefaultLockRetries is how many times a whole index update is retried
	// after a lock timeout. Zero disables retries.
	// Override via config: index.lock_retries
	DefaultLockRetries = 2

	// DefaultRetryInterval is the initial backoff between lock polls and
	// between retries.
	// Override via config: index.retry_interval
	DefaultRetryInterval = 50 * time.Millisecond
)

// =============================================================================
// Partition Defaults
// =============================================================================

const (
	// NullPartitionValue is the path value used for a null partition cell.
	// Same token as Hive so trees stay readable by Hive-aware tools.
	NullPartitionValue = "__HIVE_DEFAULT_PARTITION__"

	// ModelNameColumn is the partition column single model artifacts are
	// keyed by.
	ModelNameColumn = "model_name"

	// ShardPrefix prefixes every tabular shard filename.
	ShardPrefix = "part-"
)

// =============================================================================
// Codec Defaults
// =============================================================================

const (
	// DefaultTabularFormat is the shard format: csv or parquet.
	// Override via config: tabular.format
	DefaultTabularFormat = "csv"

	// DefaultDelimiter separates CSV fields.
	// Override via config: tabular.delimiter
	DefaultDelimiter = ","

	// DefaultNullToken marks a null cell in CSV shards.
	// Override via config: tabular.null_token
	DefaultNullToken = `\N`

	// DefaultParquetCompression is the Parquet page compression.
	// Override via config: tabular.compression
	DefaultParquetCompression = "zstd"

	// DefaultModelEncoding is the whole-object encoding of model artifacts:
	// msgpack or cbor.
	// Override via config: model.encoding
	DefaultModelEncoding = "msgpack"

	// DefaultModelCompression wraps model bytes: none, zstd or lz4.
	// Override via config: model.compression
	DefaultModelCompression = "none"
)

// =============================================================================
// I/O Defaults
// =============================================================================

const (
	// DefaultParallelism caps concurrent file encodes/decodes per call.
	// Range: 1-64
	// Override via config: io.parallelism
	DefaultParallelism = 4

	// MaxParallelism is the upper bound accepted for io.parallelism.
	MaxParallelism = 64
)
