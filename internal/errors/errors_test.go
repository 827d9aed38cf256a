package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		retriable bool
		index     bool
	}{
		{"path", NewPathNotFound("/tmp/x"), true, false, false},
		{"index", fmt.Errorf("discover: %w", ErrIndexNotFound), true, false, false},
		{"partition", NewPartitionNotFound("a=1", ""), true, false, false},
		{"shape", NewShapeConflict("a=1", "leaf reached"), false, false, true},
		{"malformed", fmt.Errorf("load: %w", ErrMalformedIndex), false, false, true},
		{"lock", fmt.Errorf("lock %s: %w", "/tmp/x", ErrLockTimeout), false, true, false},
		{"serialization", NewSerialization("encode", fmt.Errorf("boom")), false, false, false},
		{"config", NewValidation("lock timeout", "must be positive"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsRetriable(tt.err); got != tt.retriable {
				t.Errorf("IsRetriable = %v, want %v", got, tt.retriable)
			}
			if got := IsIndexError(tt.err); got != tt.index {
				t.Errorf("IsIndexError = %v, want %v", got, tt.index)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(NewInvalidPartition("no columns")) {
		t.Error("invalid partition should be a validation error")
	}
	if !IsValidation(NewValidation("format", "unknown")) {
		t.Error("invalid config should be a validation error")
	}
	if IsValidation(NewPathNotFound("/x")) {
		t.Error("path not found is not a validation error")
	}
}

func TestSerializationKeepsCause(t *testing.T) {
	err := NewSerialization("decode shard", fmt.Errorf("unexpected EOF"))
	if !errors.Is(err, ErrSerialization) {
		t.Fatal("expected ErrSerialization")
	}
	if got := err.Error(); got != "decode shard: serialization error: unexpected EOF" {
		t.Errorf("unexpected message %q", got)
	}
}
