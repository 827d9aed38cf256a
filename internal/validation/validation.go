// Package validation checks the names callers hand to the store: dataset
// names, model names and partition columns.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names that become a single
// path component as-is.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// DatasetNameRules returns the rules for dataset names. Dots are allowed
// so a name may carry its format extension ("sales.csv").
func DatasetNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with '.'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateDatasetName validates a dataset name. Failures wrap
// ErrInvalidPartition.
func ValidateDatasetName(name string) error {
	if err := ValidateName(name, DatasetNameRules()); err != nil {
		return herrors.NewInvalidPartition(fmt.Sprintf("dataset name %q: %v", name, err))
	}
	return nil
}

// =============================================================================
// Escaped Names
// =============================================================================

// maxModelName leaves room in a 255-byte filename for the escaped name's
// growth, the timestamp and the extension.
const maxModelName = 64

// ValidateModelName validates a model name. Model names are escaped
// before they reach the filesystem, so only emptiness, control
// characters and length are checked.
func ValidateModelName(name string) error {
	if name == "" {
		return herrors.NewInvalidPartition("model name is required")
	}
	if len(name) > maxModelName {
		return herrors.NewInvalidPartition(fmt.Sprintf("model name too long: maximum %d bytes", maxModelName))
	}
	for i, r := range name {
		if r < 32 || r == 127 {
			return herrors.NewInvalidPartition(fmt.Sprintf("model name %q: control character at position %d", name, i))
		}
	}
	return nil
}

// ValidatePartitionColumns checks a partition column list: at least one
// column, none empty, none repeated.
func ValidatePartitionColumns(columns []string) error {
	if len(columns) == 0 {
		return herrors.NewInvalidPartition("at least one partition column is required")
	}
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if c == "" {
			return herrors.NewInvalidPartition(fmt.Sprintf("partition column %d is empty", i))
		}
		if _, dup := seen[c]; dup {
			return herrors.NewInvalidPartition(fmt.Sprintf("column %q listed twice", c))
		}
		seen[c] = struct{}{}
	}
	return nil
}
