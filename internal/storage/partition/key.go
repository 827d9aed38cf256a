// Package partition implements Hive-style partition keys and the
// partitioner that splits a table by distinct combinations of columns.
//
// A key renders as ordered "column=value" labels, one directory level per
// pair. Characters that would break a path segment or the '=' split are
// escaped as %XX, and a null value renders as __HIVE_DEFAULT_PARTITION__,
// both following Hive's conventions.
package partition

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xtxerr/hivestore/config"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// Pair is one (column, value) component of a key.
type Pair struct {
	Column string
	Value  types.Value
}

// Key is an ordered partition key.
type Key []Pair

// Labels renders the key as "column=value" labels.
func (k Key) Labels() []string {
	labels := make([]string, len(k))
	for i, p := range k {
		labels[i] = Label(p.Column, p.Value)
	}
	return labels
}

// Path joins the labels with '/'.
func (k Key) Path() string {
	return strings.Join(k.Labels(), "/")
}

// Dir returns the partition directory below root.
func (k Key) Dir(root string) string {
	return filepath.Join(append([]string{root}, k.Labels()...)...)
}

// Columns returns the key's column names in order.
func (k Key) Columns() []string {
	cols := make([]string, len(k))
	for i, p := range k {
		cols[i] = p.Column
	}
	return cols
}

// Equal reports whether two keys have the same pairs in the same order.
func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i].Column != o[i].Column || !k[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Path()
}

// Label renders one pair.
func Label(column string, v types.Value) string {
	s, ok := v.Str()
	if !ok {
		return Escape(column) + "=" + config.NullPartitionValue
	}
	return Escape(column) + "=" + Escape(s)
}

// ParseLabel is the inverse of Label.
func ParseLabel(label string) (Pair, error) {
	col, val, ok := strings.Cut(label, "=")
	if !ok {
		return Pair{}, fmt.Errorf("label %q: missing '='", label)
	}
	column, err := Unescape(col)
	if err != nil {
		return Pair{}, fmt.Errorf("label %q: %w", label, err)
	}
	if column == "" {
		return Pair{}, fmt.Errorf("label %q: empty column", label)
	}
	if val == config.NullPartitionValue {
		return Pair{Column: column, Value: types.Null()}, nil
	}
	value, err := Unescape(val)
	if err != nil {
		return Pair{}, fmt.Errorf("label %q: %w", label, err)
	}
	return Pair{Column: column, Value: types.String(value)}, nil
}

// ParseKey parses "a=1/b=2" into a key. Segments without '=' are skipped,
// so a path prefix such as "data/sales.csv/a=1" yields just a=1.
func ParseKey(path string) (Key, error) {
	var key Key
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if !strings.Contains(seg, "=") {
			continue
		}
		p, err := ParseLabel(seg)
		if err != nil {
			return nil, err
		}
		key = append(key, p)
	}
	return key, nil
}

// needsEscape mirrors Hive's FileUtils escape set.
func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

// Escape percent-encodes characters that are unsafe in a label. Bytes
// that are not part of a valid UTF-8 sequence are encoded too, so every
// label survives the JSON index unchanged.
func Escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if needsEscape(c) {
				fmt.Fprintf(&b, "%%%02X", c)
			} else {
				b.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, "%%%02X", c)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// Unescape decodes %XX sequences produced by Escape.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape in %q", s)
		}
		n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape %q in %q", s[i:i+3], s)
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return b.String(), nil
}
