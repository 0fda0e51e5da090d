// Package ggpkfs exposes an open GGPK archive as a read-only
// billy.Filesystem, suitable for serving over NFS with willscott/go-nfs.
package ggpkfs

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/ggpk/internal/ggpk"
)

var errReadOnly = errors.New("read-only filesystem")

// FS adapts a ggpk.Archive to billy.Filesystem. All mutating operations
// fail: the archive format carries no write path.
type FS struct {
	archive   *ggpk.Archive
	mountTime time.Time
}

// New wraps an open archive. The archive must stay open for the lifetime of
// the filesystem.
func New(a *ggpk.Archive) *FS {
	return &FS{archive: a, mountTime: time.Now()}
}

// --- billy.Basic ---

func (fs *FS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *FS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *FS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	filename = cleanPath(filename)

	node, err := fs.archive.Resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if node.Dir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: ggpk.ErrIsDirectory}
	}
	sec, err := fs.archive.Section(node)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	return &archiveFile{name: filename, sec: sec}, nil
}

func (fs *FS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *FS) Rename(oldpath, newpath string) error { return errReadOnly }
func (fs *FS) Remove(filename string) error         { return errReadOnly }

func (fs *FS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *FS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *FS) ReadDir(path string) ([]os.FileInfo, error) {
	path = cleanPath(path)

	node, err := fs.archive.Resolve(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}
	if !node.Dir {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: ggpk.ErrNotDirectory}
	}

	entries, err := fs.archive.List(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, fs.entryInfo(node, e))
	}
	return infos, nil
}

func (fs *FS) MkdirAll(filename string, perm os.FileMode) error { return errReadOnly }

// --- billy.Symlink ---

func (fs *FS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	node, err := fs.archive.Resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return fs.nodeInfo(node), nil
}

func (fs *FS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *FS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *FS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *FS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *FS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

func (fs *FS) nodeInfo(node *ggpk.Node) os.FileInfo {
	name := node.Name
	if node.Parent == nil {
		name = "/"
	}
	return fs.fileInfo(name, node)
}

func (fs *FS) entryInfo(parent *ggpk.Node, e ggpk.Entry) os.FileInfo {
	return fs.fileInfo(e.Name, parent.Children[e.Name])
}

func (fs *FS) fileInfo(name string, node *ggpk.Node) os.FileInfo {
	info := &staticFileInfo{name: name, mode: 0o444, modTime: fs.mountTime}
	if node.Dir {
		info.mode = os.ModeDir | 0o555
		return info
	}
	if rec, ok := node.Record.(*ggpk.FileRecord); ok {
		info.size = rec.DataLength
	}
	return info
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*FS)(nil)
	_ billy.Capable    = (*FS)(nil)
)
