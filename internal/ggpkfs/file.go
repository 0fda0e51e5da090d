package ggpkfs

import (
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// archiveFile implements billy.File over a file's payload section. Reads go
// through the section's ReadAt, so concurrent opens of the same archive
// never race on stream position.
type archiveFile struct {
	name string
	sec  *io.SectionReader
}

func (f *archiveFile) Name() string { return f.name }

func (f *archiveFile) Read(p []byte) (int, error) {
	return f.sec.Read(p)
}

func (f *archiveFile) ReadAt(p []byte, off int64) (int, error) {
	return f.sec.ReadAt(p, off)
}

func (f *archiveFile) Seek(offset int64, whence int) (int64, error) {
	return f.sec.Seek(offset, whence)
}

func (f *archiveFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *archiveFile) Truncate(int64) error      { return errReadOnly }
func (f *archiveFile) Lock() error               { return nil }
func (f *archiveFile) Unlock() error             { return nil }
func (f *archiveFile) Close() error              { return nil }

var _ billy.File = (*archiveFile)(nil)
