package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xtxerr/hivestore/config"
	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/logging"
	"github.com/xtxerr/hivestore/internal/storage/codec"
	storageconfig "github.com/xtxerr/hivestore/internal/storage/config"
	"github.com/xtxerr/hivestore/internal/storage/partition"
	"github.com/xtxerr/hivestore/internal/storage/types"
	"github.com/xtxerr/hivestore/internal/validation"
)

// ModelStore stores model artifacts under baseDir/model_name=<name>/,
// one file per model version.
type ModelStore struct {
	*Store[*types.Model]
}

// NewModelStore creates a model store.
func NewModelStore(c codec.Codec[*types.Model], opts Options) *ModelStore {
	return &ModelStore{Store: New(c, opts)}
}

// ModelsFromConfig creates a model store with the configured codec.
func ModelsFromConfig(cfg *storageconfig.Config) (*ModelStore, error) {
	c, err := codec.ForModel(&cfg.Model)
	if err != nil {
		return nil, err
	}
	return NewModelStore(c, OptionsFromConfig(cfg)), nil
}

// ModelKey returns the partition key of a model name.
func ModelKey(name string) partition.Key {
	return partition.Key{{Column: config.ModelNameColumn, Value: types.String(name)}}
}

// ModelFilename returns the file a model version is stored as:
// <name>_<timestamp>.<ext>. Two versions of a model with the same
// timestamp share a file; the later write replaces the earlier one.
func (s *ModelStore) ModelFilename(m *types.Model) string {
	return partition.Escape(m.Name) + "_" + m.FormatTimestamp() + "." + s.codec.Extension()
}

// WriteModel stores m under baseDir and returns the file path.
func (s *ModelStore) WriteModel(ctx context.Context, baseDir string, m *types.Model) (string, error) {
	if m == nil {
		return "", herrors.NewInvalidPartition("model is nil")
	}
	if err := validation.ValidateModelName(m.Name); err != nil {
		return "", err
	}

	key := ModelKey(m.Name)
	filename := s.ModelFilename(m)
	if err := s.Write(ctx, baseDir, []Entry[*types.Model]{{Key: key, Filename: filename, Value: m}}); err != nil {
		return "", err
	}

	path := filepath.Join(key.Dir(baseDir), filename)
	logging.WithContext(ctx, s.log).Debug("model written", "model", m.Name, "path", path)
	return path, nil
}

// ReadModels reads every model at or below path.
func (s *ModelStore) ReadModels(ctx context.Context, path string) ([]*types.Model, error) {
	return s.Read(ctx, path)
}

// LatestModel returns the newest model at or below path.
func (s *ModelStore) LatestModel(ctx context.Context, path string) (*types.Model, error) {
	return Latest(ctx, s.Store, path)
}

// Models returns the versions of the named model under baseDir, or only
// the newest one when latestOnly is set.
func (s *ModelStore) Models(ctx context.Context, baseDir, name string, latestOnly bool) ([]*types.Model, error) {
	if err := validation.ValidateModelName(name); err != nil {
		return nil, err
	}
	path := ModelKey(name).Dir(baseDir)

	if latestOnly {
		m, err := s.LatestModel(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		return []*types.Model{m}, nil
	}

	models, err := s.ReadModels(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	return models, nil
}
