package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags a node as Inner or Leaf.
type Kind uint8

const (
	// Inner maps labels to child nodes.
	Inner Kind = iota

	// Leaf holds the filenames of one fully specified partition.
	Leaf
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Inner:
		return "inner"
	case Leaf:
		return "leaf"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Node is one level of the index tree.
type Node struct {
	kind     Kind
	children map[string]*Node
	files    []string
}

func newInner() *Node {
	return &Node{kind: Inner, children: make(map[string]*Node)}
}

func newLeaf() *Node {
	return &Node{kind: Leaf}
}

// Kind returns the node kind.
func (n *Node) Kind() Kind {
	return n.kind
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool {
	return n.kind == Leaf
}

// Labels returns the child labels in lexicographic order. Leaves have none.
func (n *Node) Labels() []string {
	labels := make([]string, 0, len(n.children))
	for l := range n.children {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Child returns the child under label.
func (n *Node) Child(label string) (*Node, bool) {
	c, ok := n.children[label]
	return c, ok
}

// Files returns a copy of a leaf's filenames in insertion order.
func (n *Node) Files() []string {
	out := make([]string, len(n.files))
	copy(out, n.files)
	return out
}

// addFile appends name unless the leaf already lists it.
func (n *Node) addFile(name string) {
	for _, f := range n.files {
		if f == name {
			return
		}
	}
	n.files = append(n.files, name)
}

func (n *Node) clone() *Node {
	if n.kind == Leaf {
		return &Node{kind: Leaf, files: append([]string(nil), n.files...)}
	}
	c := newInner()
	for l, child := range n.children {
		c.children[l] = child.clone()
	}
	return c
}

// countFiles returns the number of filenames below n.
func (n *Node) countFiles() int {
	if n.kind == Leaf {
		return len(n.files)
	}
	total := 0
	for _, c := range n.children {
		total += c.countFiles()
	}
	return total
}

// MarshalJSON renders an inner node as an object and a leaf as an array of
// filenames. encoding/json sorts object keys, so output is deterministic.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.kind == Leaf {
		files := n.files
		if files == nil {
			files = []string{}
		}
		return json.Marshal(files)
	}
	return json.Marshal(n.children)
}

// UnmarshalJSON accepts an object (inner node) or an array of strings (leaf).
func (n *Node) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty node")
	}

	switch data[0] {
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		n.kind = Inner
		n.files = nil
		n.children = make(map[string]*Node, len(raw))
		for label, msg := range raw {
			child := &Node{}
			if err := child.UnmarshalJSON(msg); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
			n.children[label] = child
		}
		return nil
	case '[':
		var files []string
		if err := json.Unmarshal(data, &files); err != nil {
			return err
		}
		n.kind = Leaf
		n.children = nil
		n.files = files
		return nil
	default:
		return fmt.Errorf("node must be an object or an array, got %.20s", data)
	}
}
