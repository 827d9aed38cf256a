package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	kzstd "github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	pzstd "github.com/parquet-go/parquet-go/compress/zstd"

	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// columnsMetadataKey holds the JSON column order in the file footer.
// Parquet groups sort their fields by name.
const columnsMetadataKey = "hivestore.columns"

// readBatch is the number of rows pulled per ReadRows call.
const readBatch = 256

// Options configures the Parquet codec.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22)
	CompressionLevel int

	// RowGroupSize is the target number of rows per row group
	RowGroupSize int

	// PageSize is the target page size in bytes
	PageSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	ParquetUncompressed CompressionType = iota
	ParquetSnappy
	ParquetZstd
	ParquetLZ4
	ParquetGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      ParquetZstd,
		CompressionLevel: 3,
		RowGroupSize:     100000,
		PageSize:         1024 * 1024, // 1MB
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return ParquetSnappy
	case "zstd":
		return ParquetZstd
	case "lz4":
		return ParquetLZ4
	case "gzip":
		return ParquetGzip
	case "none", "":
		return ParquetUncompressed
	default:
		return ParquetZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType, level int) compress.Codec {
	switch ct {
	case ParquetSnappy:
		return &parquet.Snappy
	case ParquetZstd:
		if level <= 0 {
			return &parquet.Zstd
		}
		return &pzstd.Codec{Level: kzstd.EncoderLevelFromZstd(level)}
	case ParquetLZ4:
		return &parquet.Lz4Raw
	case ParquetGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Parquet encodes tables as Parquet files with one optional string column
// per table column. Nulls are stored as Parquet nulls.
type Parquet struct {
	opts Options
}

// NewParquet creates a Parquet codec.
func NewParquet(opts Options) *Parquet {
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = DefaultOptions().RowGroupSize
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	return &Parquet{opts: opts}
}

// Extension implements Codec.
func (p *Parquet) Extension() string {
	return "parquet"
}

func tableSchema(columns []string) *parquet.Schema {
	group := make(parquet.Group, len(columns))
	for _, c := range columns {
		group[c] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("table", group)
}

// leafIndexes maps table column positions to Parquet leaf column indexes.
func leafIndexes(schema *parquet.Schema, columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		leaf, ok := schema.Lookup(c)
		if !ok {
			return nil, fmt.Errorf("column %q not in parquet schema", c)
		}
		idx[i] = leaf.ColumnIndex
	}
	return idx, nil
}

// Encode implements Codec.
func (p *Parquet) Encode(t *types.Table) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, herrors.NewSerialization("parquet encode", err)
	}
	if len(t.Columns) == 0 {
		return nil, herrors.NewSerialization("parquet encode", errors.New("table has no columns"))
	}

	schema := tableSchema(t.Columns)
	leaves, err := leafIndexes(schema, t.Columns)
	if err != nil {
		return nil, herrors.NewSerialization("parquet schema", err)
	}

	order, err := json.Marshal(t.Columns)
	if err != nil {
		return nil, herrors.NewSerialization("parquet metadata", err)
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf,
		schema,
		parquet.Compression(getCompression(p.opts.Compression, p.opts.CompressionLevel)),
		parquet.PageBufferSize(p.opts.PageSize),
		parquet.MaxRowsPerRowGroup(int64(p.opts.RowGroupSize)),
		parquet.KeyValueMetadata(columnsMetadataKey, string(order)),
	)

	rows := make([]parquet.Row, 0, min(len(t.Rows), readBatch))
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		_, err := w.WriteRows(rows)
		rows = rows[:0]
		return err
	}

	for _, r := range t.Rows {
		row := make(parquet.Row, len(r))
		for j, v := range r {
			col := leaves[j]
			if s, ok := v.Str(); ok {
				row[col] = parquet.ByteArrayValue([]byte(s)).Level(0, 1, col)
			} else {
				row[col] = parquet.NullValue().Level(0, 0, col)
			}
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				return nil, herrors.NewSerialization("parquet write rows", err)
			}
		}
	}
	if err := flush(); err != nil {
		return nil, herrors.NewSerialization("parquet write rows", err)
	}

	if err := w.Close(); err != nil {
		return nil, herrors.NewSerialization("parquet close writer", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (p *Parquet) Decode(data []byte) (*types.Table, error) {
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, herrors.NewSerialization("parquet open", err)
	}

	raw, ok := f.Lookup(columnsMetadataKey)
	if !ok {
		return nil, herrors.NewSerialization("parquet decode", fmt.Errorf("missing %s metadata", columnsMetadataKey))
	}
	var columns []string
	if err := json.Unmarshal([]byte(raw), &columns); err != nil {
		return nil, herrors.NewSerialization("parquet metadata", err)
	}

	leaves, err := leafIndexes(f.Schema(), columns)
	if err != nil {
		return nil, herrors.NewSerialization("parquet decode", err)
	}
	position := make(map[int]int, len(leaves))
	for i, col := range leaves {
		position[col] = i
	}

	t := types.NewTable(columns...)
	t.Rows = make([][]types.Value, 0, f.NumRows())

	buf := make([]parquet.Row, readBatch)
	for _, rg := range f.RowGroups() {
		if err := readRowGroup(rg, buf, position, t); err != nil {
			return nil, herrors.NewSerialization("parquet read rows", err)
		}
	}
	return t, nil
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, position map[int]int, t *types.Table) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, r := range buf[:n] {
			row := make([]types.Value, len(t.Columns))
			for _, v := range r {
				i, ok := position[v.Column()]
				if !ok {
					continue
				}
				if v.IsNull() {
					row[i] = types.Null()
				} else {
					row[i] = types.String(string(v.ByteArray()))
				}
			}
			t.Rows = append(t.Rows, row)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
