package ggpk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("path not found")
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	// ErrBadContainer means the record at offset 0 is not a container
	// record with a usable root directory pointer.
	ErrBadContainer = errors.New("invalid container record")
)

// Entry is one row of a directory listing.
type Entry struct {
	Name string
	Dir  bool
}

// Archive is the public façade over an open GGPK file: a rooted directory
// tree plus the underlying stream for lazy payload extraction. The tree and
// record map are immutable after Open; payload reads go through ReadAt, so a
// single Archive may serve concurrent readers.
type Archive struct {
	f       *os.File
	size    int64
	version int32
	records map[int64]Record
	root    *Node
}

// Open scans the archive at path, verifies the container invariant (the
// record at offset 0 is a container whose first pointer locates the root
// directory) and builds the directory tree.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	a, err := newArchive(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return a, nil
}

func newArchive(f *os.File, size int64) (*Archive, error) {
	records, version := scan(f, size)

	container, ok := records[0].(*ContainerRecord)
	if !ok {
		return nil, fmt.Errorf("%w: first record is not a container", ErrBadContainer)
	}
	if len(container.RootOffsets) == 0 {
		return nil, fmt.Errorf("%w: no directory pointers", ErrBadContainer)
	}

	root, err := buildTree(records, container.RootOffsets[0])
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}

	return &Archive{
		f:       f,
		size:    size,
		version: version,
		records: records,
		root:    root,
	}, nil
}

// Close releases the underlying file. The tree is discarded with the archive.
func (a *Archive) Close() error {
	return a.f.Close()
}

// Root returns the tree's root node.
func (a *Archive) Root() *Node { return a.root }

// Version returns the container format version.
func (a *Archive) Version() int32 { return a.version }

// Records exposes the raw offset map produced by the scanner. Diagnostic
// surface; the map must not be mutated.
func (a *Archive) Records() map[int64]Record { return a.records }

// Resolve walks the tree one path component at a time. The empty path and
// "/" resolve to the root. Resolution fails as soon as a component is
// missing or a file is traversed as a directory.
func (a *Archive) Resolve(path string) (*Node, error) {
	node := a.root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		if !node.Dir {
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, node.Path())
		}
		child, ok := node.Children[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		node = child
	}
	return node, nil
}

// List returns the entries of the directory at path, sorted by name.
func (a *Archive) List(path string) ([]Entry, error) {
	node, err := a.Resolve(path)
	if err != nil {
		return nil, err
	}
	if !node.Dir {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	entries := make([]Entry, 0, len(node.Children))
	for name, child := range node.Children {
		entries = append(entries, Entry{Name: name, Dir: child.Dir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Size returns the stored payload length of the file at path without reading
// any payload bytes.
func (a *Archive) Size(path string) (int64, error) {
	file, err := a.fileRecord(path)
	if err != nil {
		return 0, err
	}
	return file.DataLength, nil
}

// Extract reads the whole payload of the file at path.
func (a *Archive) Extract(path string) ([]byte, error) {
	node, err := a.Resolve(path)
	if err != nil {
		return nil, err
	}
	sec, err := a.Section(node)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(sec)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return data, nil
}

// Section returns a reader over a file node's payload. The payload is read
// lazily via ReadAt at the file record's stored offset and length, so the
// archive handle's position is never disturbed.
func (a *Archive) Section(node *Node) (*io.SectionReader, error) {
	file, ok := node.Record.(*FileRecord)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, node.Path())
	}
	return io.NewSectionReader(a.f, file.DataOffset, file.DataLength), nil
}

func (a *Archive) fileRecord(path string) (*FileRecord, error) {
	node, err := a.Resolve(path)
	if err != nil {
		return nil, err
	}
	file, ok := node.Record.(*FileRecord)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	return file, nil
}
