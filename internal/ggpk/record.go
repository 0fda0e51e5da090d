// Package ggpk reads the GGPK container format: a flat sequence of
// self-describing, offset-linked binary records that together encode a
// directory tree. The package scans the raw record stream (recovering from
// corruption by resynchronization), resolves the offset graph into a rooted
// tree, and exposes path-based lookup and lazy payload extraction over it.
package ggpk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

// Record framing: every record starts with a uint32 LE total length followed
// by a 4-byte tag selecting the body layout.
const (
	HeaderSize = 8  // length field + tag
	HashSize   = 32 // SHA256 digest carried by directory and file records
)

// Tags as little-endian uint32 values of their ASCII names.
const (
	TagContainer = 0x4B504747 // "GGPK"
	TagDirectory = 0x52494450 // "PDIR"
	TagFile      = 0x454C4946 // "FILE"
	TagFree      = 0x45455246 // "FREE"
)

var (
	// ErrUnknownTag is a structural decode failure for an unrecognized
	// 4-byte tag, distinct from a framing failure.
	ErrUnknownTag = errors.New("unknown record tag")
	// ErrDecode covers a body that contradicts its declared record length.
	ErrDecode = errors.New("malformed record body")
)

// Record is one decoded unit of the container. The set of implementations is
// closed: ContainerRecord, DirectoryRecord, FileRecord and FreeRecord.
type Record interface {
	// Offset is the record's starting byte offset in the archive.
	Offset() int64
	// Length is the record's total on-disk length, framing included.
	Length() uint32

	record()
}

// header carries the structural (non-payload) metadata common to all records.
type header struct {
	off int64
	len uint32
}

func (h header) Offset() int64  { return h.off }
func (h header) Length() uint32 { return h.len }
func (h header) record()        {}

// ContainerRecord is the master record at offset 0. Its first root offset is
// the byte offset of the root directory record; the second candidate is
// carried but unused by the observed format.
type ContainerRecord struct {
	header
	Version     int32
	RootOffsets []int64
}

// DirEntry is one child reference inside a directory record. The hash is
// informational only; the offset is authoritative.
type DirEntry struct {
	Hash   uint32
	Offset int64
}

// DirectoryRecord names a directory and lists its children by offset.
type DirectoryRecord struct {
	header
	Name    string
	Digest  [HashSize]byte
	Entries []DirEntry
}

// FileRecord names a file and locates its payload. The payload itself is
// never decoded; DataOffset/DataLength support lazy random-access extraction.
type FileRecord struct {
	header
	Name       string
	Digest     [HashSize]byte
	DataOffset int64
	DataLength int64
}

// FreeRecord is one link of the archive's free-space list. Read-only
// acknowledgement: this package never allocates from it.
type FreeRecord struct {
	header
	NextFree int64
}

// charWidth returns the per-character byte width of record names for a
// container format version. Version 4 archives store 4-byte code points,
// everything else observed stores UTF-16LE code units.
func charWidth(version int32) int64 {
	if version == 4 {
		return 4
	}
	return 2
}

// decodeRecord decodes the record whose framing (length + tag) has already
// been validated. r must be positioned at the body, bounded to the record,
// i.e. an io.SectionReader over [off+HeaderSize, off+length). The decoder
// never reads past that bound; file payloads and free-space padding are
// located, not consumed.
func decodeRecord(r io.Reader, tag uint32, off int64, length uint32, version int32) (Record, error) {
	h := header{off: off, len: length}
	switch tag {
	case TagContainer:
		return decodeContainer(r, h)
	case TagDirectory:
		return decodeDirectory(r, h, version)
	case TagFile:
		return decodeFile(r, h, version)
	case TagFree:
		return decodeFree(r, h)
	default:
		return nil, fmt.Errorf("%w: %#08x at offset %d", ErrUnknownTag, tag, off)
	}
}

func decodeContainer(r io.Reader, h header) (*ContainerRecord, error) {
	var body struct {
		Version int32
		Roots   [2]int64
	}
	if err := binary.Read(r, binary.LittleEndian, &body); err != nil {
		return nil, fmt.Errorf("%w: container at offset %d: %v", ErrDecode, h.off, err)
	}
	return &ContainerRecord{
		header:      h,
		Version:     body.Version,
		RootOffsets: []int64{body.Roots[0], body.Roots[1]},
	}, nil
}

func decodeDirectory(r io.Reader, h header, version int32) (*DirectoryRecord, error) {
	var fixed struct {
		NameLen    int32
		EntryCount int32
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("%w: directory at offset %d: %v", ErrDecode, h.off, err)
	}
	if fixed.NameLen < 1 || fixed.EntryCount < 0 {
		return nil, fmt.Errorf("%w: directory at offset %d: name length %d, entry count %d",
			ErrDecode, h.off, fixed.NameLen, fixed.EntryCount)
	}

	rec := &DirectoryRecord{header: h}
	if _, err := io.ReadFull(r, rec.Digest[:]); err != nil {
		return nil, fmt.Errorf("%w: directory hash at offset %d: %v", ErrDecode, h.off, err)
	}

	name, err := readName(r, fixed.NameLen, version)
	if err != nil {
		return nil, fmt.Errorf("%w: directory name at offset %d: %v", ErrDecode, h.off, err)
	}
	rec.Name = name

	rec.Entries = make([]DirEntry, fixed.EntryCount)
	for i := range rec.Entries {
		var e struct {
			Hash   uint32
			Offset int64
		}
		if err := binary.Read(r, binary.LittleEndian, &e); err != nil {
			return nil, fmt.Errorf("%w: directory entry %d at offset %d: %v", ErrDecode, i, h.off, err)
		}
		rec.Entries[i] = DirEntry{Hash: e.Hash, Offset: e.Offset}
	}
	return rec, nil
}

func decodeFile(r io.Reader, h header, version int32) (*FileRecord, error) {
	var nameLen int32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("%w: file at offset %d: %v", ErrDecode, h.off, err)
	}
	if nameLen < 1 {
		return nil, fmt.Errorf("%w: file at offset %d: name length %d", ErrDecode, h.off, nameLen)
	}

	rec := &FileRecord{header: h}
	if _, err := io.ReadFull(r, rec.Digest[:]); err != nil {
		return nil, fmt.Errorf("%w: file hash at offset %d: %v", ErrDecode, h.off, err)
	}

	name, err := readName(r, nameLen, version)
	if err != nil {
		return nil, fmt.Errorf("%w: file name at offset %d: %v", ErrDecode, h.off, err)
	}
	rec.Name = name

	// Payload length is derived, not stored: total length minus the 44 fixed
	// header bytes (8 framing + 4 name length + 32 hash) and the encoded name.
	width := charWidth(version)
	rec.DataLength = int64(h.len) - 44 - int64(nameLen)*width
	if rec.DataLength < 0 {
		return nil, fmt.Errorf("%w: file %q at offset %d: derived payload length %d",
			ErrDecode, rec.Name, h.off, rec.DataLength)
	}
	rec.DataOffset = h.off + 44 + int64(nameLen)*width
	return rec, nil
}

func decodeFree(r io.Reader, h header) (*FreeRecord, error) {
	var next int64
	if err := binary.Read(r, binary.LittleEndian, &next); err != nil {
		return nil, fmt.Errorf("%w: free record at offset %d: %v", ErrDecode, h.off, err)
	}
	// The remaining length-16 bytes are unused padding and stay unread.
	return &FreeRecord{header: h, NextFree: next}, nil
}

// readName decodes nameLen-1 characters in the version-dependent encoding and
// skips the trailing terminator character without interpreting it.
func readName(r io.Reader, nameLen int32, version int32) (string, error) {
	width := charWidth(version)
	buf := make([]byte, int64(nameLen)*width)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	buf = buf[:int64(nameLen-1)*width] // drop the terminator

	if width == 4 {
		runes := make([]rune, 0, nameLen-1)
		for i := 0; i < len(buf); i += 4 {
			runes = append(runes, rune(binary.LittleEndian.Uint32(buf[i:i+4])))
		}
		return string(runes), nil
	}

	units := make([]uint16, 0, nameLen-1)
	for i := 0; i < len(buf); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(buf[i:i+2]))
	}
	return string(utf16.Decode(units)), nil
}
