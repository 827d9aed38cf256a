package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

// CompressionTag identifies how a compressed artifact body is stored.
// Tags are written as the first byte of the file; changing them breaks
// existing files.
type CompressionTag uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 stores an LZ4 block.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd stores a zstd frame.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// extension is the filename suffix a compressed artifact gets.
func (tag CompressionTag) extension() string {
	switch tag {
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseCompressionTag parses a compression tag from its string
// representation. The empty string means none.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// maxBodySize bounds the length header accepted by Decode.
const maxBodySize = 1 << 32

// maxLZ4Ratio bounds how much an LZ4 block can expand: a match length
// grows by at most 255 bytes per input byte.
const maxLZ4Ratio = 255

// zstdPrealloc caps the output buffer reserved before zstd decoding; the
// buffer grows with the data actually decoded.
const zstdPrealloc = 1 << 20

var errIncompressible = errors.New("data is incompressible")

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBodySize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compressed wraps a codec and compresses its output. The file layout is
// one tag byte, the uncompressed length as a uvarint, then the body. Bodies
// that do not shrink are stored with CompressionNone.
type Compressed[T any] struct {
	inner Codec[T]
	tag   CompressionTag
}

// NewCompressed wraps inner with the given compression.
func NewCompressed[T any](inner Codec[T], tag CompressionTag) *Compressed[T] {
	return &Compressed[T]{inner: inner, tag: tag}
}

// Extension implements Codec.
func (c *Compressed[T]) Extension() string {
	return c.inner.Extension() + c.tag.extension()
}

// Encode implements Codec.
func (c *Compressed[T]) Encode(v T) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}

	tag := c.tag
	body, err := compressBody(raw, tag)
	if errors.Is(err, errIncompressible) {
		tag, body = CompressionNone, raw
	} else if err != nil {
		return nil, herrors.NewSerialization("compress "+tag.String(), err)
	}

	out := make([]byte, 0, 1+binary.MaxVarintLen64+len(body))
	out = append(out, byte(tag))
	out = binary.AppendUvarint(out, uint64(len(raw)))
	return append(out, body...), nil
}

// Decode implements Codec.
func (c *Compressed[T]) Decode(data []byte) (T, error) {
	var zero T
	if len(data) < 2 {
		return zero, herrors.NewSerialization("decompress", errors.New("truncated header"))
	}

	tag := CompressionTag(data[0])
	size, n := binary.Uvarint(data[1:])
	if n <= 0 || size > maxBodySize {
		return zero, herrors.NewSerialization("decompress", errors.New("bad length header"))
	}
	body := data[1+n:]
	if err := checkBodySize(tag, size, body); err != nil {
		return zero, herrors.NewSerialization("decompress "+tag.String(), err)
	}

	raw, err := decompressBody(body, tag, int(size))
	if err != nil {
		return zero, herrors.NewSerialization("decompress "+tag.String(), err)
	}
	return c.inner.Decode(raw)
}

// checkBodySize rejects length headers the body cannot possibly expand
// to, before any output buffer is allocated.
func checkBodySize(tag CompressionTag, size uint64, body []byte) error {
	bodyLen := len(body)
	switch tag {
	case CompressionLZ4:
		if size > uint64(bodyLen)*maxLZ4Ratio {
			return fmt.Errorf("lz4 body of %d bytes cannot expand to %d", bodyLen, size)
		}
	case CompressionZstd:
		var h zstd.Header
		if err := h.Decode(body); err != nil {
			return fmt.Errorf("zstd header: %w", err)
		}
		if h.HasFCS && h.FrameContentSize != size {
			return fmt.Errorf("zstd frame holds %d bytes, header claims %d", h.FrameContentSize, size)
		}
	}
	return nil
}

func compressBody(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil

	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func decompressBody(body []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("stored body: size %d does not match expected %d", len(body), size)
		}
		return body, nil

	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil

	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, min(size, zstdPrealloc)))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
