// Package store ties the partition index, the advisory lock and a codec
// together into a partitioned artifact store.
//
// A write puts every data file in place first and only then records the
// files in the index, under the exclusive lock. A crash between the two
// leaves unreferenced files behind, never index entries without files.
// Reads start from any directory at or below an index root; the governing
// index is found by walking up the tree.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	hconfig "github.com/xtxerr/hivestore/config"
	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/logging"
	"github.com/xtxerr/hivestore/internal/storage/codec"
	"github.com/xtxerr/hivestore/internal/storage/config"
	"github.com/xtxerr/hivestore/internal/storage/index"
	"github.com/xtxerr/hivestore/internal/storage/partition"
)

// Entry is one artifact to store under Key as Filename.
type Entry[T any] struct {
	Key      partition.Key
	Filename string
	Value    T
}

// Options configures a Store.
type Options struct {
	// IndexFilename is the index file name inside every index root.
	IndexFilename string

	// Lock configures lock acquisition.
	Lock index.LockOptions

	// LockRetries is the number of extra attempts after a lock timeout.
	LockRetries int

	// RetryInterval is the initial wait between those attempts.
	RetryInterval time.Duration

	// Parallelism caps concurrent encodes/decodes per call.
	Parallelism int
}

// OptionsFromConfig derives store options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IndexFilename: cfg.Index.Filename,
		Lock: index.LockOptions{
			Filename: cfg.Index.LockFilename(),
			Timeout:  cfg.Index.LockTimeout,
			Interval: cfg.Index.RetryInterval,
		},
		LockRetries:   cfg.Index.LockRetries,
		RetryInterval: cfg.Index.RetryInterval,
		Parallelism:   cfg.IO.Parallelism,
	}
}

// DefaultOptions returns options from the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// Store is a partitioned store of artifacts of type T.
type Store[T any] struct {
	codec codec.Codec[T]
	opts  Options
	log   *slog.Logger
}

// New creates a store that encodes artifacts with c. Zero fields of opts
// take their defaults.
func New[T any](c codec.Codec[T], opts Options) *Store[T] {
	def := DefaultOptions()
	if opts.IndexFilename == "" {
		opts.IndexFilename = def.IndexFilename
	}
	if opts.Lock.Filename == "" {
		opts.Lock.Filename = opts.IndexFilename + hconfig.LockSuffix
	}
	if opts.Lock.Timeout <= 0 {
		opts.Lock.Timeout = def.Lock.Timeout
	}
	if opts.Lock.Interval <= 0 {
		opts.Lock.Interval = def.Lock.Interval
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if opts.LockRetries < 0 {
		opts.LockRetries = 0
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Store[T]{
		codec: c,
		opts:  opts,
		log:   logging.Component("store"),
	}
}

// Codec returns the store's codec.
func (s *Store[T]) Codec() codec.Codec[T] {
	return s.codec
}

// Options returns the store's options.
func (s *Store[T]) Options() Options {
	return s.opts
}

// Write stores entries below root and records them in root's index.
//
// Partition directories are created and data files encoded and written in
// parallel. Any failure there returns before the index is touched. The
// index is then loaded, merged and persisted under the exclusive lock;
// lock timeouts are retried, nothing else is. With no entries the root
// and its index are still created, so the root reads back as empty.
func (s *Store[T]) Write(ctx context.Context, root string, entries []Entry[T]) error {
	for _, e := range entries {
		if err := s.checkEntry(e); err != nil {
			return err
		}
	}

	log := logging.WithContext(ctx, s.log)
	start := time.Now()

	if err := os.MkdirAll(root, 0755); err != nil {
		return herrors.NewDirectoryCreate(root, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.writeFile(root, e)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	idxEntries := make([]index.Entry, len(entries))
	for i, e := range entries {
		idxEntries[i] = index.Entry{Key: e.Key, Filename: e.Filename}
	}
	if err := s.commit(ctx, root, idxEntries); err != nil {
		return err
	}

	log.Debug("write complete",
		"root", root,
		"files", len(entries),
		"duration", time.Since(start))
	return nil
}

func (s *Store[T]) checkEntry(e Entry[T]) error {
	if len(e.Key) == 0 {
		return herrors.NewInvalidPartition(fmt.Sprintf("file %q has an empty partition key", e.Filename))
	}
	if !index.ValidFilename(e.Filename) {
		return herrors.NewInvalidPartition(fmt.Sprintf("bad filename %q", e.Filename))
	}
	if e.Filename == s.opts.IndexFilename || e.Filename == s.opts.Lock.Filename {
		return herrors.NewInvalidPartition(fmt.Sprintf("filename %q is reserved", e.Filename))
	}
	return nil
}

func (s *Store[T]) writeFile(root string, e Entry[T]) error {
	dir := e.Key.Dir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return herrors.NewDirectoryCreate(dir, err)
	}

	data, err := s.codec.Encode(e.Value)
	if err != nil {
		if !errors.Is(err, herrors.ErrSerialization) {
			err = herrors.NewSerialization("encode "+e.Filename, err)
		}
		return fmt.Errorf("%s: %w", e.Key.Path(), err)
	}

	if err := index.WriteFileAtomic(dir, e.Filename, data); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Join(dir, e.Filename), err)
	}
	return nil
}

// commit records entries in root's index, retrying lock timeouts.
func (s *Store[T]) commit(ctx context.Context, root string, entries []index.Entry) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	op := func() error {
		attempt++
		err := s.commitOnce(ctx, root, entries)
		if err == nil {
			return nil
		}
		if herrors.IsRetriable(err) {
			s.log.Warn("index lock busy, retrying",
				"root", root,
				"attempt", attempt,
				"error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.LockRetries)), ctx)
	return backoff.Retry(op, policy)
}

func (s *Store[T]) commitOnce(ctx context.Context, root string, entries []index.Entry) error {
	lock, err := index.LockExclusive(ctx, root, s.opts.Lock)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ix, err := index.Load(root, s.opts.IndexFilename)
	if err != nil {
		return err
	}
	if err := ix.Merge(entries); err != nil {
		return err
	}
	return ix.Persist(root, s.opts.IndexFilename)
}

// View is a loaded index together with the position a path resolved to.
type View struct {
	// Base is the index root directory.
	Base string

	// Labels lead from Base to the requested path.
	Labels []string

	// Index is the index loaded under the shared lock.
	Index *index.Index
}

// Node resolves the view's labels.
func (v *View) Node() (*index.Node, error) {
	return v.Index.Resolve(v.Labels)
}

// Dir returns the directory the view's labels name.
func (v *View) Dir() string {
	return filepath.Join(append([]string{v.Base}, v.Labels...)...)
}

// Open finds the index governing path and loads it under the shared lock.
func (s *Store[T]) Open(ctx context.Context, path string) (*View, error) {
	return Open(ctx, path, s.opts)
}

// Open finds the index governing path and loads it under the shared lock.
func Open(ctx context.Context, path string, opts Options) (*View, error) {
	base, labels, err := index.Discover(path, opts.IndexFilename)
	if err != nil {
		return nil, err
	}

	lock, err := index.LockShared(ctx, base, opts.Lock)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	ix, err := index.Load(base, opts.IndexFilename)
	if err != nil {
		return nil, err
	}
	return &View{Base: base, Labels: labels, Index: ix}, nil
}

// Files returns the data files at or below path, in flattened order.
func (s *Store[T]) Files(ctx context.Context, path string) ([]string, error) {
	v, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	node, err := v.Node()
	if err != nil {
		return nil, err
	}

	dir := v.Dir()
	rel := index.Flatten(node)
	files := make([]string, len(rel))
	for i, r := range rel {
		files[i] = filepath.Join(dir, filepath.FromSlash(r))
	}
	return files, nil
}

// Read decodes every artifact at or below path. Results follow the
// flattened index order.
func (s *Store[T]) Read(ctx context.Context, path string) ([]T, error) {
	files, err := s.Files(ctx, path)
	if err != nil {
		return nil, err
	}

	log := logging.WithContext(ctx, s.log)
	start := time.Now()

	out := make([]T, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := s.readFile(f)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("read complete",
		"path", path,
		"files", len(files),
		"duration", time.Since(start))
	return out, nil
}

func (s *Store[T]) readFile(path string) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, fmt.Errorf("indexed file missing: %w", herrors.NewPathNotFound(path))
		}
		return zero, fmt.Errorf("read %s: %w", path, err)
	}

	v, err := s.codec.Decode(data)
	if err != nil {
		if !errors.Is(err, herrors.ErrSerialization) {
			err = herrors.NewSerialization("decode", err)
		}
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Timestamped is an artifact that knows when it was created.
type Timestamped interface {
	Timestamp() time.Time
}

// Latest returns the artifact at or below path with the greatest
// timestamp. Ties go to the later artifact in flattened order. An empty
// result fails with ErrEmptyResult.
func Latest[T Timestamped](ctx context.Context, s *Store[T], path string) (T, error) {
	var best T
	values, err := s.Read(ctx, path)
	if err != nil {
		return best, err
	}
	if len(values) == 0 {
		return best, fmt.Errorf("%s: %w", path, herrors.ErrEmptyResult)
	}

	best = values[0]
	for _, v := range values[1:] {
		if !v.Timestamp().Before(best.Timestamp()) {
			best = v
		}
	}
	return best, nil
}
