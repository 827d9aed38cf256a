// Package index implements the partition side-index: a tree whose inner
// levels are "column=value" labels and whose leaves list the files stored
// in the matching partition directory.
//
// The tree is persisted as one JSON document per index root:
//
//	{"A=1": {"B=3": ["part-1f0c.csv"]}, "A=2": {"B=2": ["part-9a7e.csv"]}}
//
// Readers use it to enumerate files without scanning directories. Writers
// load it, merge new entries and persist it in full under an exclusive
// advisory lock (see Lock).
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	herrors "github.com/xtxerr/hivestore/internal/errors"
	"github.com/xtxerr/hivestore/internal/storage/partition"
)

// Entry records that filename lives in the partition identified by Key.
type Entry struct {
	Key      partition.Key
	Filename string
}

// Index is an in-memory partition index.
type Index struct {
	root *Node
}

// New returns an empty index with its own tree.
func New() *Index {
	return &Index{root: newInner()}
}

// Root returns the root node.
func (ix *Index) Root() *Node {
	return ix.root
}

// Len returns the number of filenames in the index.
func (ix *Index) Len() int {
	return ix.root.countFiles()
}

// Load reads dir/filename. A missing directory or file yields an empty
// index; unparsable content fails with ErrMalformedIndex.
func Load(dir, filename string) (*Index, error) {
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	root := &Node{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, herrors.ErrMalformedIndex, err)
	}
	if root.kind != Inner {
		return nil, fmt.Errorf("%s: %w: root must be an object", path, herrors.ErrMalformedIndex)
	}
	return &Index{root: root}, nil
}

// Merge adds entries. For every entry the key's pairs are walked in order:
// inner nodes are created for all but the last pair and a leaf for the
// last, and the filename is appended unless already present.
//
// Every path sharing a prefix must have the same depth; a key that ends
// where an inner node exists, or continues below an existing leaf, fails
// with ErrIndexShapeConflict. Merge is all-or-nothing: on error the index
// is left unchanged.
func (ix *Index) Merge(entries []Entry) error {
	next := ix.root.clone()
	for _, e := range entries {
		if err := mergeOne(next, e); err != nil {
			return err
		}
	}
	ix.root = next
	return nil
}

func mergeOne(root *Node, e Entry) error {
	if len(e.Key) == 0 {
		return herrors.NewInvalidPartition(fmt.Sprintf("file %q has an empty partition key", e.Filename))
	}
	if !ValidFilename(e.Filename) {
		return herrors.NewInvalidPartition(fmt.Sprintf("bad filename %q", e.Filename))
	}

	labels := e.Key.Labels()
	node := root
	for depth, label := range labels {
		last := depth == len(labels)-1
		child, ok := node.children[label]
		switch {
		case !ok:
			want := Inner
			if last {
				want = Leaf
			}
			if k, has := childKind(node); has && k != want {
				return herrors.NewShapeConflict(strings.Join(labels, "/"),
					fmt.Sprintf("siblings at depth %d are %s nodes", depth+1, k))
			}
			if last {
				child = newLeaf()
			} else {
				child = newInner()
			}
			node.children[label] = child
		case last && child.kind != Leaf:
			return herrors.NewShapeConflict(strings.Join(labels, "/"), "key ends above existing partitions")
		case !last && child.kind == Leaf:
			return herrors.NewShapeConflict(strings.Join(labels, "/"),
				fmt.Sprintf("key continues below leaf %s", strings.Join(labels[:depth+1], "/")))
		}
		node = child
	}

	node.addFile(e.Filename)
	return nil
}

// ValidFilename reports whether name can be recorded in a leaf: a valid
// UTF-8 single path element that is not "." or "..". The index is JSON,
// which cannot carry other byte sequences unchanged.
func ValidFilename(name string) bool {
	return name != "" && name != "." && name != ".." &&
		utf8.ValidString(name) && filepath.Base(name) == name
}

// childKind returns the kind shared by n's children.
func childKind(n *Node) (Kind, bool) {
	for _, c := range n.children {
		return c.kind, true
	}
	return Inner, false
}

// Persist writes the index to dir/filename atomically: a temp file in the
// same directory is written, synced and renamed over the old index.
func (ix *Index) Persist(dir, filename string) error {
	data, err := json.Marshal(ix.root)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := WriteFileAtomic(dir, filename, data); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

// WriteFileAtomic writes dir/name through a synced temp file in the same
// directory and renames it into place. Readers see the old content or the
// new content, never a prefix.
func WriteFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Resolve descends from the root along labels. No labels returns the
// root. A missing label, or a label below a leaf, fails with
// ErrPartitionNotFound.
func (ix *Index) Resolve(labels []string) (*Node, error) {
	node := ix.root
	for i, label := range labels {
		child, ok := node.children[label]
		if !ok {
			return nil, herrors.NewPartitionNotFound(label, strings.Join(labels[:i], "/"))
		}
		node = child
	}
	return node, nil
}

// Children lists the labels directly below the node at labels.
func (ix *Index) Children(labels []string) ([]string, error) {
	node, err := ix.Resolve(labels)
	if err != nil {
		return nil, err
	}
	return node.Labels(), nil
}

// Flatten lists every file below node breadth-first, visiting children in
// lexicographic label order. Paths are relative to node and use '/'.
func Flatten(node *Node) []string {
	type item struct {
		prefix string
		node   *Node
	}

	var files []string
	queue := []item{{"", node}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		if it.node.kind == Leaf {
			for _, f := range it.node.files {
				files = append(files, join(it.prefix, f))
			}
			continue
		}
		for _, label := range it.node.Labels() {
			queue = append(queue, item{join(it.prefix, label), it.node.children[label]})
		}
	}
	return files
}

// LeafInfo is a fully specified partition and its files.
type LeafInfo struct {
	Path  string
	Files []string
}

// Leaves lists every leaf in the same order Flatten visits them.
func (ix *Index) Leaves() []LeafInfo {
	var out []LeafInfo
	ix.Walk(func(path string, n *Node) {
		if n.IsLeaf() {
			out = append(out, LeafInfo{Path: path, Files: n.Files()})
		}
	})
	return out
}

// Walk visits every node below the root breadth-first in label order.
func (ix *Index) Walk(fn func(path string, n *Node)) {
	type item struct {
		path string
		node *Node
	}

	queue := []item{{"", ix.root}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		for _, label := range it.node.Labels() {
			child := it.node.children[label]
			p := join(it.path, label)
			fn(p, child)
			queue = append(queue, item{p, child})
		}
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
