package ggpk

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"
)

var (
	// ErrMissingRecord means a directory entry points at an offset the
	// scanner produced no record for (typically lost during resync).
	ErrMissingRecord = errors.New("missing record")
	// ErrCycle means the offset graph revisits a record, which a
	// well-formed archive never does.
	ErrCycle = errors.New("cyclic offset graph")
	// ErrBadRoot means the root offset does not resolve to a directory.
	ErrBadRoot = errors.New("root offset is not a directory record")
)

// Node is one entry of the resolved directory tree. Nodes own their children
// and hold a non-owning back-reference to their parent; both the tree and the
// records hanging off it are immutable after buildTree returns.
type Node struct {
	Name   string
	Dir    bool
	Record Record // *DirectoryRecord or *FileRecord
	Parent *Node
	// Children maps child name to node, directories only. A name never maps
	// to more than one child; if the source data repeats a name the last
	// entry wins (a defect of the archive, not a feature).
	Children map[string]*Node
}

// Path returns the node's /-separated absolute path.
func (n *Node) Path() string {
	if n.Parent == nil {
		return "/"
	}
	prefix := n.Parent.Path()
	if prefix == "/" {
		return "/" + n.Name
	}
	return prefix + "/" + n.Name
}

// buildTree resolves the flat offset map into a rooted tree, starting at the
// container's root directory offset. Resolution trusts the offset graph
// unconditionally: entry hashes are never checked against the child they
// point at. Any hole in the map aborts the whole build; robustness against
// corruption lives in the scanner's resync, not in tolerating holes here.
func buildTree(records map[int64]Record, rootOffset int64) (*Node, error) {
	b := &treeBuilder{records: records, visited: roaring64.New()}
	root, err := b.resolve(rootOffset, nil)
	if err != nil {
		return nil, err
	}
	if !root.Dir {
		return nil, fmt.Errorf("%w: offset %d", ErrBadRoot, rootOffset)
	}
	return root, nil
}

type treeBuilder struct {
	records map[int64]Record
	visited *roaring64.Bitmap
}

func (b *treeBuilder) resolve(offset int64, parent *Node) (*Node, error) {
	if b.visited.Contains(uint64(offset)) {
		return nil, fmt.Errorf("%w: offset %d visited twice", ErrCycle, offset)
	}
	b.visited.Add(uint64(offset))

	rec, ok := b.records[offset]
	if !ok {
		return nil, fmt.Errorf("%w: offset %d", ErrMissingRecord, offset)
	}

	switch r := rec.(type) {
	case *DirectoryRecord:
		node := &Node{
			Name:     r.Name,
			Dir:      true,
			Record:   r,
			Parent:   parent,
			Children: make(map[string]*Node, len(r.Entries)),
		}
		for _, entry := range r.Entries {
			child, err := b.resolve(entry.Offset, node)
			if err != nil {
				return nil, err
			}
			node.Children[child.Name] = child
		}
		return node, nil

	case *FileRecord:
		return &Node{Name: r.Name, Dir: false, Record: r, Parent: parent}, nil

	default:
		return nil, fmt.Errorf("%w: offset %d holds a %T, want directory or file",
			ErrMissingRecord, offset, rec)
	}
}
