// Copyright (c) 2020, The NETS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package params provides the hierarchical parameter tree from which all
network entities are resolved.  Each node carries a local key -> value
mapping and an ordered set of named children.  Lookups resolve through
scoped inheritance: a node's effective value for a key is its local value
if present, else the nearest ancestor's.  Trees can be merged with earlier
trees taking precedence per key.
*/
package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goki/ki/indent"
)

var (
	// ErrPathNotFound is returned when an intermediate child name in a
	// path does not exist.
	ErrPathNotFound = errors.New("params: path not found")

	// ErrKeyNotFound is returned when the final key of a path is absent
	// from the destination node and all of its ancestors.
	ErrKeyNotFound = errors.New("params: key not found")
)

// Node is one named node in a parameter tree.  The zero value is not
// usable -- use NewNode.  Nodes own their local Data and their children;
// the parent pointer is a weak back-reference used only for scoped lookup.
type Node struct {
	Nm   string           `desc:"name of this node -- unique among its siblings"`
	Data map[string]any   `desc:"local key -> value mapping for this node"`
	Kids []*Node          `desc:"ordered child nodes"`
	kidm map[string]*Node // name -> child index, kept in sync with Kids
	Par  *Node            `view:"-" desc:"parent node -- nil at the root; never owned"`
}

// NewNode returns a named node with no data and no children.
func NewNode(name string) *Node {
	return &Node{Nm: name, Data: map[string]any{}, kidm: map[string]*Node{}}
}

// Name returns the node name.
func (nd *Node) Name() string { return nd.Nm }

// SetData sets a local key on this node and returns the node, for chaining
// during tree construction.
func (nd *Node) SetData(key string, val any) *Node {
	nd.Data[key] = val
	return nd
}

// Child returns the child of the given name, or nil.
func (nd *Node) Child(name string) *Node {
	return nd.kidm[name]
}

// AddChild adds a child node, replacing any existing child of the same
// name, and sets its parent reference.  Returns the child.
func (nd *Node) AddChild(kid *Node) *Node {
	if ex, ok := nd.kidm[kid.Nm]; ok {
		for i, k := range nd.Kids {
			if k == ex {
				nd.Kids[i] = kid
				break
			}
		}
	} else {
		nd.Kids = append(nd.Kids, kid)
	}
	nd.kidm[kid.Nm] = kid
	kid.Par = nd
	return kid
}

// NewChild adds and returns a new empty child of the given name.
func (nd *Node) NewChild(name string) *Node {
	return nd.AddChild(NewNode(name))
}

// Node traverses children by name and returns the destination node.
// Returns ErrPathNotFound if any name along the path is absent.
func (nd *Node) Node(path ...string) (*Node, error) {
	cur := nd
	for _, name := range path {
		kid := cur.Child(name)
		if kid == nil {
			return nil, fmt.Errorf("%w: no child %q under %q", ErrPathNotFound, name, cur.Nm)
		}
		cur = kid
	}
	return cur, nil
}

// Get traverses children for all but the last element of path, then
// resolves the last element as a key through scoped inheritance: the
// destination node's local value if present, else the nearest ancestor's.
// Returns ErrPathNotFound for a missing intermediate child and
// ErrKeyNotFound if no node on the ancestor chain defines the key.
func (nd *Node) Get(path ...string) (any, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}
	dst, err := nd.Node(path[:len(path)-1]...)
	if err != nil {
		return nil, err
	}
	return dst.Scoped(path[len(path)-1])
}

// Scoped resolves a key on this node through scoped inheritance.
func (nd *Node) Scoped(key string) (any, error) {
	for cur := nd; cur != nil; cur = cur.Par {
		if val, ok := cur.Data[key]; ok {
			return val, nil
		}
	}
	return nil, fmt.Errorf("%w: %q at node %q", ErrKeyNotFound, key, nd.Nm)
}

// Set traverses children for all but the last element of path and stores
// the value in the local mapping of the destination node.  Ancestors are
// never mutated.
func (nd *Node) Set(path []string, val any) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}
	dst, err := nd.Node(path[:len(path)-1]...)
	if err != nil {
		return err
	}
	dst.Data[path[len(path)-1]] = val
	return nil
}

// Flat returns the effective flat key -> value mapping of this node:
// local data overriding everything inherited from ancestors.
func (nd *Node) Flat() map[string]any {
	flat := map[string]any{}
	var walk func(cur *Node)
	walk = func(cur *Node) {
		if cur == nil {
			return
		}
		walk(cur.Par) // ancestors first so deeper values override
		for k, v := range cur.Data {
			flat[k] = v
		}
	}
	walk(nd)
	return flat
}

// Leaves returns all nodes with no children, depth-first.  Sibling order
// follows insertion order but must not be relied upon -- use NamedLeaves
// where downstream determinism matters.
func (nd *Node) Leaves() []*Node {
	if len(nd.Kids) == 0 {
		return []*Node{nd}
	}
	var lvs []*Node
	for _, kid := range nd.Kids {
		lvs = append(lvs, kid.Leaves()...)
	}
	return lvs
}

// NamedLeaves returns the leaf nodes sorted by name.
func (nd *Node) NamedLeaves() []*Node {
	lvs := nd.Leaves()
	sort.Slice(lvs, func(i, j int) bool { return lvs[i].Nm < lvs[j].Nm })
	return lvs
}

// Merge combines trees into a new tree.  Earlier trees take precedence:
// where two trees define the same key at the same path, the value from the
// earlier tree wins.  Children are unioned and merged recursively,
// preserving the child order of the earliest tree that defines each name.
// The inputs are not modified.
func Merge(trees ...*Node) *Node {
	merged := NewNode("")
	if len(trees) == 0 {
		return merged
	}
	merged.Nm = trees[0].Nm
	for i := len(trees) - 1; i >= 0; i-- { // later first so earlier overrides
		for k, v := range trees[i].Data {
			merged.Data[k] = v
		}
	}
	var names []string
	seen := map[string]bool{}
	for _, tr := range trees {
		for _, kid := range tr.Kids {
			if !seen[kid.Nm] {
				seen[kid.Nm] = true
				names = append(names, kid.Nm)
			}
		}
	}
	for _, name := range names {
		var sub []*Node
		for _, tr := range trees {
			if kid := tr.Child(name); kid != nil {
				sub = append(sub, kid)
			}
		}
		merged.AddChild(Merge(sub...))
	}
	return merged
}

// String renders the tree with indented children, for logs and dumps.
func (nd *Node) String() string {
	var b strings.Builder
	nd.write(&b, 0)
	return b.String()
}

func (nd *Node) write(b *strings.Builder, depth int) {
	fmt.Fprintf(b, "%s%s: %v\n", indent.Spaces(depth, 2), nd.Nm, nd.Data)
	for _, kid := range nd.Kids {
		kid.write(b, depth+1)
	}
}
