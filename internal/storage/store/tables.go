package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/xtxerr/hivestore/config"
	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/logging"
	"github.com/xtxerr/hivestore/internal/storage/codec"
	storageconfig "github.com/xtxerr/hivestore/internal/storage/config"
	"github.com/xtxerr/hivestore/internal/storage/partition"
	"github.com/xtxerr/hivestore/internal/storage/types"
	"github.com/xtxerr/hivestore/internal/validation"
)

// TableStore stores tables split into partitions, one shard file per
// partition per write.
type TableStore struct {
	*Store[*types.Table]
}

// NewTableStore creates a table store.
func NewTableStore(c codec.Codec[*types.Table], opts Options) *TableStore {
	return &TableStore{Store: New(c, opts)}
}

// TablesFromConfig creates a table store with the configured codec.
func TablesFromConfig(cfg *storageconfig.Config) (*TableStore, error) {
	c, err := codec.ForTable(&cfg.Tabular)
	if err != nil {
		return nil, err
	}
	return NewTableStore(c, OptionsFromConfig(cfg)), nil
}

// Root returns the dataset root for name under baseDir. The codec's
// extension is appended unless name already carries it.
func (s *TableStore) Root(baseDir, name string) string {
	ext := "." + s.codec.Extension()
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	return filepath.Join(baseDir, name)
}

// ShardName returns a fresh shard filename.
func (s *TableStore) ShardName() string {
	return config.ShardPrefix + strings.ReplaceAll(uuid.New().String(), "-", "") + "." + s.codec.Extension()
}

// WriteTable splits t by columns and writes one shard per partition under
// Root(baseDir, name). At least one partition column is required. It
// returns the dataset root.
func (s *TableStore) WriteTable(ctx context.Context, baseDir, name string, t *types.Table, columns []string) (string, error) {
	if err := validation.ValidateDatasetName(name); err != nil {
		return "", err
	}
	if err := validation.ValidatePartitionColumns(columns); err != nil {
		return "", err
	}

	parts, err := partition.Split(t, columns)
	if err != nil {
		return "", err
	}

	entries := make([]Entry[*types.Table], len(parts))
	for i, p := range parts {
		entries[i] = Entry[*types.Table]{
			Key:      p.Key,
			Filename: s.ShardName(),
			Value:    p.Table,
		}
	}

	root := s.Root(baseDir, name)
	if err := s.Write(ctx, root, entries); err != nil {
		return "", err
	}

	logging.WithContext(ctx, s.log).Debug("table written",
		"root", root,
		"rows", t.Len(),
		"partitions", len(parts))
	return root, nil
}

// ReadTable reads every shard at or below path and stacks them. Columns
// are the union of all shard columns in first-seen order.
func (s *TableStore) ReadTable(ctx context.Context, path string) (*types.Table, error) {
	shards, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("%s: %w", path, herrors.ErrEmptyResult)
	}
	return types.Concat(shards...), nil
}
