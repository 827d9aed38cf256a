package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/storage/config"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// nullTable has nulls, empty strings, separators, quotes and newlines, and
// columns that are not in name order.
func nullTable(t *testing.T) *types.Table {
	t.Helper()
	tbl := types.NewTable("zeta", "alpha", "mid")
	rows := [][]types.Value{
		{types.String("1"), types.String("a,b"), types.Null()},
		{types.String(""), types.Null(), types.String(`quote " and` + "\nnewline")},
		{types.Null(), types.String("x"), types.String("y")},
	}
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return tbl
}

func assertTablesEqual(t *testing.T, got, want *types.Table) {
	t.Helper()
	if !reflect.DeepEqual(got.Columns, want.Columns) {
		t.Fatalf("columns = %v, want %v", got.Columns, want.Columns)
	}
	if got.Len() != want.Len() {
		t.Fatalf("rows = %d, want %d", got.Len(), want.Len())
	}
	for i := range want.Rows {
		if got.RowString(i) != want.RowString(i) {
			t.Errorf("row %d = %s, want %s", i, got.RowString(i), want.RowString(i))
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	c := NewCSV(',', `\N`)
	want := nullTable(t)

	data, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(data), "zeta,alpha,mid\n") {
		t.Errorf("unexpected header: %q", data)
	}

	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertTablesEqual(t, got, want)
}

func TestCSVDelimiterAndNullToken(t *testing.T) {
	c := NewCSV('\t', "NULL")
	tbl := types.NewTable("a", "b")
	_ = tbl.Append(types.String("1"), types.Null())

	data, err := c.Encode(tbl)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != "a\tb\n1\tNULL\n" {
		t.Errorf("Encode = %q", data)
	}

	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertTablesEqual(t, got, tbl)
}

func TestCSVSingleEmptyColumn(t *testing.T) {
	c := NewCSV(',', `\N`)
	tbl := types.NewTable("only")
	_ = tbl.AppendStrings("")
	_ = tbl.AppendStrings("x")
	_ = tbl.AppendStrings("")

	data, err := c.Encode(tbl)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertTablesEqual(t, got, tbl)
}

func TestCSVDecodeErrors(t *testing.T) {
	c := NewCSV(',', `\N`)
	inputs := map[string]string{
		"empty":         "",
		"ragged":        "a,b\n1\n",
		"bad quote":     "a\n\"x\n",
		"duplicate col": "a,a\n1,2\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Decode([]byte(in)); !errors.Is(err, herrors.ErrSerialization) {
				t.Errorf("expected ErrSerialization, got %v", err)
			}
		})
	}
}

func TestParquetRoundTrip(t *testing.T) {
	for _, comp := range []string{"none", "snappy", "zstd", "lz4", "gzip"} {
		t.Run(comp, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Compression = ParseCompressionType(comp)
			p := NewParquet(opts)
			want := nullTable(t)

			data, err := p.Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := p.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			assertTablesEqual(t, got, want)
		})
	}
}

func TestParquetManyRows(t *testing.T) {
	p := NewParquet(Options{Compression: ParquetZstd, CompressionLevel: 9, RowGroupSize: 100})
	want := types.NewTable("id", "group")
	for i := 0; i < 1000; i++ {
		g := types.String(string(rune('a' + i%5)))
		if i%7 == 0 {
			g = types.Null()
		}
		_ = want.Append(types.String(strings.Repeat("x", i%13)), g)
	}

	data, err := p.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := p.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertTablesEqual(t, got, want)
}

func TestParquetEmptyTable(t *testing.T) {
	p := NewParquet(DefaultOptions())
	want := types.NewTable("a", "b")

	data, err := p.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := p.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	assertTablesEqual(t, got, want)
}

func TestParquetDecodeGarbage(t *testing.T) {
	p := NewParquet(DefaultOptions())
	if _, err := p.Decode([]byte("not a parquet file")); !errors.Is(err, herrors.ErrSerialization) {
		t.Errorf("expected ErrSerialization, got %v", err)
	}
}

func testModel() *types.Model {
	m := types.NewModel("churn", types.Classification, []string{"age", "plan"}, []byte{0, 1, 2, 3})
	m.CreatedAt = time.Date(2024, 3, 1, 12, 30, 45, 123, time.UTC)
	m.Params = map[string]string{"depth": "4", "eta": "0.1"}
	_ = m.Evaluate([]bool{true, false, true, false}, []float64{0.9, 0.2, 0.6, 0.7}, 0.5)
	return m
}

func assertModelsEqual(t *testing.T, got, want *types.Model) {
	t.Helper()
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	g, w := *got, *want
	g.CreatedAt, w.CreatedAt = time.Time{}, time.Time{}
	gm, wm := g.Metrics, w.Metrics
	g.Metrics, w.Metrics = nil, nil
	if !reflect.DeepEqual(g, w) {
		t.Errorf("model = %+v, want %+v", g, w)
	}
	if gm == nil || gm.Classification == nil {
		t.Fatal("metrics lost")
	}
	if !math.IsInf(gm.Classification.ROC.Thresholds[0], 1) {
		t.Errorf("first ROC threshold = %v", gm.Classification.ROC.Thresholds[0])
	}
	if gm.Classification.AUC != wm.Classification.AUC || gm.Classification.TP != wm.Classification.TP {
		t.Errorf("metrics = %+v, want %+v", gm.Classification, wm.Classification)
	}
}

func TestObjectCodecs(t *testing.T) {
	codecs := map[string]Codec[*types.Model]{
		"msgpack":      MsgPack[*types.Model]{},
		"cbor":         CBOR[*types.Model]{},
		"msgpack+zstd": NewCompressed[*types.Model](MsgPack[*types.Model]{}, CompressionZstd),
		"cbor+lz4":     NewCompressed[*types.Model](CBOR[*types.Model]{}, CompressionLZ4),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			want := testModel()
			data, err := c.Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			assertModelsEqual(t, got, want)
		})
	}
}

func TestObjectCodecsDeterministic(t *testing.T) {
	for name, c := range map[string]Codec[*types.Model]{
		"msgpack": MsgPack[*types.Model]{},
		"cbor":    CBOR[*types.Model]{},
	} {
		a, err := c.Encode(testModel())
		if err != nil {
			t.Fatalf("%s Encode: %v", name, err)
		}
		b, _ := c.Encode(testModel())
		if !bytes.Equal(a, b) {
			t.Errorf("%s: equal models encoded differently", name)
		}
	}
}

func TestObjectDecodeGarbage(t *testing.T) {
	for name, c := range map[string]Codec[*types.Model]{
		"msgpack": MsgPack[*types.Model]{},
		"cbor":    CBOR[*types.Model]{},
	} {
		if _, err := c.Decode([]byte{0xc1, 0xff, 0x00}); !errors.Is(err, herrors.ErrSerialization) {
			t.Errorf("%s: expected ErrSerialization, got %v", name, err)
		}
	}
}

func TestProtoCodec(t *testing.T) {
	c := NewProto(func() *structpb.Struct { return &structpb.Struct{} })
	want, err := structpb.NewStruct(map[string]any{"A": "1", "B": nil, "n": 2.5})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	data, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !proto.Equal(got, want) {
		t.Errorf("Decode = %v, want %v", got, want)
	}
	if c.Extension() != "pb" {
		t.Errorf("Extension = %s", c.Extension())
	}

	if _, err := c.Decode([]byte{0xff, 0xff}); !errors.Is(err, herrors.ErrSerialization) {
		t.Errorf("expected ErrSerialization, got %v", err)
	}
}

func TestCompressedFallsBackForIncompressible(t *testing.T) {
	noise := make([]byte, 8192)
	rand.New(rand.NewSource(1)).Read(noise)
	m := types.NewModel("m", types.Regression, nil, noise)

	for _, tag := range []CompressionTag{CompressionZstd, CompressionLZ4} {
		c := NewCompressed[*types.Model](MsgPack[*types.Model]{}, tag)
		data, err := c.Encode(m)
		if err != nil {
			t.Fatalf("%s Encode: %v", tag, err)
		}
		if CompressionTag(data[0]) != CompressionNone {
			t.Errorf("%s: random body should be stored raw, tag = %s", tag, CompressionTag(data[0]))
		}
		got, err := c.Decode(data)
		if err != nil {
			t.Fatalf("%s Decode: %v", tag, err)
		}
		if !bytes.Equal(got.Payload, noise) {
			t.Errorf("%s: payload mismatch", tag)
		}
	}
}

func TestCompressedShrinks(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionZstd, CompressionLZ4} {
		c := NewCompressed[*types.Model](MsgPack[*types.Model]{}, tag)
		m := types.NewModel("big", types.Regression, nil, bytes.Repeat([]byte("weights "), 4096))

		data, err := c.Encode(m)
		if err != nil {
			t.Fatalf("%s Encode: %v", tag, err)
		}
		if CompressionTag(data[0]) != tag {
			t.Errorf("%s: stored with tag %s", tag, CompressionTag(data[0]))
		}
		if len(data) >= len(m.Payload) {
			t.Errorf("%s: %d bytes for %d byte payload", tag, len(data), len(m.Payload))
		}
		got, err := c.Decode(data)
		if err != nil {
			t.Fatalf("%s Decode: %v", tag, err)
		}
		if !bytes.Equal(got.Payload, m.Payload) {
			t.Errorf("%s: payload mismatch", tag)
		}
	}
}

func TestCompressedDecodeErrors(t *testing.T) {
	c := NewCompressed[*types.Model](MsgPack[*types.Model]{}, CompressionZstd)
	inputs := map[string][]byte{
		"empty":       nil,
		"bad tag":     {9, 1, 0},
		"bad length":  {byte(CompressionNone), 5, 1},
		"bad varint":  {byte(CompressionNone), 0xff},
		"corrupt lz4": {byte(CompressionLZ4), 100, 0xff, 0xff, 0xff},
	}
	for name, in := range inputs {
		if _, err := c.Decode(in); !errors.Is(err, herrors.ErrSerialization) {
			t.Errorf("%s: expected ErrSerialization, got %v", name, err)
		}
	}
}

func TestCompressedRejectsInflatedLength(t *testing.T) {
	c := NewCompressed[*types.Model](MsgPack[*types.Model]{}, CompressionLZ4)

	lz4Bomb := binary.AppendUvarint([]byte{byte(CompressionLZ4)}, 1<<31)
	lz4Bomb = append(lz4Bomb, 0x10, 0xff)

	m := types.NewModel("m", types.Regression, nil, bytes.Repeat([]byte("abc"), 4096))
	good, err := NewCompressed[*types.Model](MsgPack[*types.Model]{}, CompressionZstd).Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if CompressionTag(good[0]) != CompressionZstd {
		t.Fatalf("fixture stored with tag %s", CompressionTag(good[0]))
	}
	_, n := binary.Uvarint(good[1:])
	zstdBomb := binary.AppendUvarint([]byte{byte(CompressionZstd)}, 1<<31)
	zstdBomb = append(zstdBomb, good[1+n:]...)

	for name, in := range map[string][]byte{"lz4": lz4Bomb, "zstd": zstdBomb} {
		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		_, err := c.Decode(in)
		runtime.ReadMemStats(&after)

		if !errors.Is(err, herrors.ErrSerialization) {
			t.Errorf("%s: expected ErrSerialization, got %v", name, err)
		}
		if grew := after.TotalAlloc - before.TotalAlloc; grew > 64<<20 {
			t.Errorf("%s: decode allocated %d MiB for a %d-byte input", name, grew>>20, len(in))
		}
	}
}

func TestParquetCompressionNames(t *testing.T) {
	tests := map[string]CompressionType{
		"snappy": ParquetSnappy,
		"zstd":   ParquetZstd,
		"lz4":    ParquetLZ4,
		"gzip":   ParquetGzip,
		"none":   ParquetUncompressed,
		"":       ParquetUncompressed,
	}
	for name, want := range tests {
		if got := ParseCompressionType(name); got != want {
			t.Errorf("ParseCompressionType(%q) = %d, want %d", name, got, want)
		}
	}
	if DefaultOptions().Compression != ParquetZstd {
		t.Errorf("default Parquet compression = %d", DefaultOptions().Compression)
	}
}

func TestCodecsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	tc, err := ForTable(&cfg.Tabular)
	if err != nil {
		t.Fatalf("ForTable: %v", err)
	}
	if tc.Extension() != "csv" {
		t.Errorf("default table extension = %s", tc.Extension())
	}

	cfg.Tabular.Format = "parquet"
	if tc, err = ForTable(&cfg.Tabular); err != nil || tc.Extension() != "parquet" {
		t.Errorf("parquet codec = %v, %v", tc, err)
	}

	mc, err := ForModel(&cfg.Model)
	if err != nil {
		t.Fatalf("ForModel: %v", err)
	}
	if mc.Extension() != "msgpack" {
		t.Errorf("default model extension = %s", mc.Extension())
	}

	cfg.Model.Encoding = "cbor"
	cfg.Model.Compression = "zstd"
	if mc, err = ForModel(&cfg.Model); err != nil || mc.Extension() != "cbor.zst" {
		t.Errorf("cbor+zstd codec extension = %v, %v", mc, err)
	}

	cfg.Tabular.Format = "xlsx"
	if _, err := ForTable(&cfg.Tabular); !herrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	cfg.Model.Compression = "brotli"
	if _, err := ForModel(&cfg.Model); !herrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
