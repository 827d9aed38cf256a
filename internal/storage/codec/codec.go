// Package codec turns artifacts into file bytes and back.
//
// A Codec is the only thing the partitioned store knows about an artifact
// type: tables go through CSV or Parquet, models through msgpack or CBOR,
// optionally wrapped in a compressing codec.
package codec

import (
	"fmt"

	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/storage/config"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// Codec encodes and decodes one artifact type.
type Codec[T any] interface {
	// Encode serializes v into the bytes of one data file.
	Encode(v T) ([]byte, error)

	// Decode parses the bytes of one data file.
	Decode(data []byte) (T, error)

	// Extension is the filename extension without the leading dot.
	Extension() string
}

// ForTable returns the table codec selected by cfg.
func ForTable(cfg *config.TabularConfig) (Codec[*types.Table], error) {
	switch cfg.Format {
	case "csv":
		return NewCSV([]rune(cfg.Delimiter)[0], cfg.NullToken), nil
	case "parquet":
		return NewParquet(Options{
			Compression:      ParseCompressionType(cfg.Compression),
			CompressionLevel: cfg.CompressionLevel,
			RowGroupSize:     DefaultOptions().RowGroupSize,
			PageSize:         DefaultOptions().PageSize,
		}), nil
	default:
		return nil, herrors.NewValidation("format", fmt.Sprintf("unknown tabular format %q", cfg.Format))
	}
}

// ForModel returns the model codec selected by cfg.
func ForModel(cfg *config.ModelConfig) (Codec[*types.Model], error) {
	var inner Codec[*types.Model]
	switch cfg.Encoding {
	case "msgpack":
		inner = MsgPack[*types.Model]{}
	case "cbor":
		inner = CBOR[*types.Model]{}
	default:
		return nil, herrors.NewValidation("encoding", fmt.Sprintf("unknown model encoding %q", cfg.Encoding))
	}

	tag, err := ParseCompressionTag(cfg.Compression)
	if err != nil {
		return nil, herrors.NewValidation("compression", err.Error())
	}
	if tag == CompressionNone {
		return inner, nil
	}
	return NewCompressed(inner, tag), nil
}
