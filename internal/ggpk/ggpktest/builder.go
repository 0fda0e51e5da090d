// Package ggpktest builds synthetic GGPK byte streams for tests. The
// production packages are strictly read-only; fixture construction lives
// here so every test exercises the same wire layout.
package ggpktest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// Builder accumulates records into one in-memory archive image. Offsets are
// assigned in append order, so children must be appended before the
// directories that reference them.
type Builder struct {
	buf     bytes.Buffer
	Version int32
}

// New returns a builder for the given container format version. The
// container record itself is written by Container, which callers are
// expected to invoke first so it lands at offset 0.
func New(version int32) *Builder {
	return &Builder{Version: version}
}

// Offset returns the offset the next appended record will start at.
func (b *Builder) Offset() int64 { return int64(b.buf.Len()) }

// Bytes returns the assembled archive image.
func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

// WriteFile writes the image to a file under dir and returns its path.
func (b *Builder) WriteFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "test.ggpk")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture archive: %v", err)
	}
	return path
}

// Container appends a container record pointing at rootOffset and returns
// the record's offset.
func (b *Builder) Container(rootOffset int64) int64 {
	off := b.Offset()
	body := new(bytes.Buffer)
	write(body, b.Version)
	write(body, rootOffset)
	write(body, int64(0)) // second pointer candidate, unused
	b.record("GGPK", body.Bytes())
	return off
}

// Directory appends a directory record and returns its offset. Entries are
// (hash, offset) pairs; hashes are informational and may be zero.
func (b *Builder) Directory(name string, entries ...Entry) int64 {
	off := b.Offset()
	body := new(bytes.Buffer)
	encoded := b.encodeName(name)
	write(body, int32(len([]rune(name))+1))
	write(body, int32(len(entries)))
	body.Write(make([]byte, 32)) // hash, unvalidated
	body.Write(encoded)
	for _, e := range entries {
		write(body, e.Hash)
		write(body, e.Offset)
	}
	b.record("PDIR", body.Bytes())
	return off
}

// Entry references a previously appended child record.
type Entry struct {
	Hash   uint32
	Offset int64
}

// File appends a file record with the given payload and returns its offset.
func (b *Builder) File(name string, payload []byte) int64 {
	off := b.Offset()
	body := new(bytes.Buffer)
	write(body, int32(len([]rune(name))+1))
	body.Write(make([]byte, 32)) // hash, unvalidated
	body.Write(b.encodeName(name))
	body.Write(payload)
	b.record("FILE", body.Bytes())
	return off
}

// Free appends a free-space record of the given total length (minimum 16)
// and returns its offset.
func (b *Builder) Free(totalLen uint32, nextFree int64) int64 {
	off := b.Offset()
	body := new(bytes.Buffer)
	write(body, nextFree)
	if totalLen > 16 {
		body.Write(make([]byte, totalLen-16))
	}
	b.record("FREE", body.Bytes())
	return off
}

// Raw appends arbitrary bytes without framing, for corruption tests.
func (b *Builder) Raw(p []byte) {
	b.buf.Write(p)
}

func (b *Builder) record(tag string, body []byte) {
	write(&b.buf, uint32(8+len(body)))
	b.buf.WriteString(tag)
	b.buf.Write(body)
}

// encodeName encodes name plus a terminator in the version-dependent width.
func (b *Builder) encodeName(name string) []byte {
	out := new(bytes.Buffer)
	if b.Version == 4 {
		for _, r := range name {
			write(out, uint32(r))
		}
		write(out, uint32(0))
		return out.Bytes()
	}
	for _, u := range utf16.Encode([]rune(name)) {
		write(out, u)
	}
	write(out, uint16(0))
	return out.Bytes()
}

func write(w *bytes.Buffer, v any) {
	_ = binary.Write(w, binary.LittleEndian, v)
}
