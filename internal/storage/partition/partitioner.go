package partition

import (
	"fmt"
	"strconv"
	"strings"

	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// Partition is one key combination with the rows that carry it.
type Partition struct {
	Key   Key
	Table *types.Table
}

// Split groups rows by their values on columns. Partitions come back in
// order of first occurrence and keep every column of the input, partition
// columns included. Rows are grouped in a single pass.
//
// An empty column list yields one partition with an empty key holding the
// whole table.
func Split(t *types.Table, columns []string) ([]Partition, error) {
	if err := t.Validate(); err != nil {
		return nil, herrors.NewInvalidPartition(err.Error())
	}
	if len(columns) == 0 {
		return []Partition{{Key: Key{}, Table: t}}, nil
	}

	idx := make([]int, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, herrors.NewInvalidPartition(fmt.Sprintf("column %q listed twice", c))
		}
		seen[c] = struct{}{}
		idx[i] = t.ColumnIndex(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("partition column %q: %w", c, herrors.ErrColumnNotFound)
		}
	}

	slots := make(map[string]int)
	var keys []Key
	var rows [][]int
	var b strings.Builder
	for r, row := range t.Rows {
		b.Reset()
		for _, i := range idx {
			writeTuplePart(&b, row[i])
		}
		slot, ok := slots[b.String()]
		if !ok {
			slot = len(keys)
			slots[b.String()] = slot
			key := make(Key, len(columns))
			for j, i := range idx {
				key[j] = Pair{Column: columns[j], Value: row[i]}
			}
			keys = append(keys, key)
			rows = append(rows, nil)
		}
		rows[slot] = append(rows[slot], r)
	}

	parts := make([]Partition, len(keys))
	for i := range keys {
		parts[i] = Partition{Key: keys[i], Table: t.Select(rows[i])}
	}
	return parts, nil
}

// writeTuplePart appends an unambiguous encoding of v: a null marker, or
// a length-prefixed string.
func writeTuplePart(b *strings.Builder, v types.Value) {
	s, ok := v.Str()
	if !ok {
		b.WriteString("N;")
		return
	}
	b.WriteString("S")
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
