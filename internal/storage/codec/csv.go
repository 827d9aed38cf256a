package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/xtxerr/hivestore/config"
	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// CSV encodes tables as delimited text with a header row. Null cells are
// written as the null token; a cell equal to the token reads back as null.
type CSV struct {
	delimiter rune
	nullToken string
}

// NewCSV creates a CSV codec.
func NewCSV(delimiter rune, nullToken string) *CSV {
	if delimiter == 0 {
		delimiter = []rune(config.DefaultDelimiter)[0]
	}
	if nullToken == "" {
		nullToken = config.DefaultNullToken
	}
	return &CSV{delimiter: delimiter, nullToken: nullToken}
}

// Extension implements Codec.
func (c *CSV) Extension() string {
	return "csv"
}

// Encode implements Codec.
func (c *CSV) Encode(t *types.Table) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, herrors.NewSerialization("csv encode", err)
	}
	if len(t.Columns) == 0 {
		return nil, herrors.NewSerialization("csv encode", errors.New("table has no columns"))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = c.delimiter

	if err := w.Write(t.Columns); err != nil {
		return nil, herrors.NewSerialization("csv header", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		// encoding/csv writes a lone empty field as a blank line, which
		// readers skip.
		if len(row) == 1 && row[0].Equal(types.String("")) {
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		for j, v := range row {
			if s, ok := v.Str(); ok {
				record[j] = s
			} else {
				record[j] = c.nullToken
			}
		}
		if err := w.Write(record); err != nil {
			return nil, herrors.NewSerialization(fmt.Sprintf("csv row %d", i), err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, herrors.NewSerialization("csv flush", err)
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (c *CSV) Decode(data []byte) (*types.Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = c.delimiter

	records, err := r.ReadAll()
	if err != nil {
		return nil, herrors.NewSerialization("csv decode", err)
	}
	if len(records) == 0 {
		return nil, herrors.NewSerialization("csv decode", errors.New("missing header row"))
	}

	t := types.NewTable(records[0]...)
	t.Rows = make([][]types.Value, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]types.Value, len(rec))
		for j, s := range rec {
			if s == c.nullToken {
				row[j] = types.Null()
			} else {
				row[j] = types.String(s)
			}
		}
		t.Rows = append(t.Rows, row)
	}

	if err := t.Validate(); err != nil {
		return nil, herrors.NewSerialization("csv decode", err)
	}
	return t, nil
}
