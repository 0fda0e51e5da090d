package ggpk

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// ResyncWindow is the number of bytes searched for a known tag after a
// framing or decode failure.
const ResyncWindow = 1 << 20

// resyncTags is the fixed priority order in which tags are searched during
// resync: container first, free last. The order matches the reference
// tooling, so multi-tag windows resolve the same way.
var resyncTags = [][]byte{
	[]byte("GGPK"),
	[]byte("PDIR"),
	[]byte("FILE"),
	[]byte("FREE"),
}

// scanner walks an archive stream once, front to back, producing the offset
// to record map. It is the only component that touches the raw byte stream
// sequentially; everything downstream works off the map.
type scanner struct {
	r    io.ReaderAt
	size int64

	version int32
	records map[int64]Record
	seen    *roaring64.Bitmap // offsets already stored, never re-emitted
}

// scan reads every well-framed record from r, skipping corrupted stretches
// via resync. A corrupted archive never fails the scan; the result is simply
// a possibly-incomplete map.
func scan(r io.ReaderAt, size int64) (map[int64]Record, int32) {
	s := &scanner{
		r:       r,
		size:    size,
		records: make(map[int64]Record),
		seen:    roaring64.New(),
	}
	s.run()
	return s.records, s.version
}

func (s *scanner) run() {
	cursor := int64(0)
	for cursor+HeaderSize <= s.size {
		length, tag, ok := s.readHeader(cursor)
		if !ok || !s.wellFramed(cursor, length) {
			cursor = s.resync(cursor)
			continue
		}

		body := io.NewSectionReader(s.r, cursor+HeaderSize, int64(length)-HeaderSize)
		rec, err := decodeRecord(body, tag, cursor, length, s.version)
		if err != nil {
			cursor = s.resync(cursor)
			continue
		}

		if !s.seen.Contains(uint64(cursor)) {
			s.records[cursor] = rec
			s.seen.Add(uint64(cursor))
		}
		if c, isContainer := rec.(*ContainerRecord); isContainer {
			// Name decoding of later records depends on the format version.
			s.version = c.Version
		}
		// The codec never overruns the declared length; the next record
		// starts exactly at the end of this one.
		cursor += int64(length)
	}
}

// readHeader reads the 4-byte length and 4-byte tag at off.
func (s *scanner) readHeader(off int64) (length uint32, tag uint32, ok bool) {
	var buf [HeaderSize]byte
	if _, err := s.r.ReadAt(buf[:], off); err != nil {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint32(buf[0:4]), binary.LittleEndian.Uint32(buf[4:8]), true
}

// wellFramed reports whether a record of the given length can start at off.
func (s *scanner) wellFramed(off int64, length uint32) bool {
	return length >= HeaderSize && off+int64(length) <= s.size
}

// resync recovers from a framing or decode failure at cursor. It searches a
// bounded window for the known tags in priority order and returns the first
// candidate start that is strictly past the failure point and well-framed.
// If nothing qualifies, it skips most of the window. Either way the returned
// cursor is strictly greater than the input, so scanning always terminates.
func (s *scanner) resync(cursor int64) int64 {
	window := make([]byte, ResyncWindow)
	n, _ := s.r.ReadAt(window, cursor)
	window = window[:n]

	for _, tag := range resyncTags {
		idx := bytes.Index(window, tag)
		if idx < 0 {
			continue
		}
		// The length field sits 4 bytes before the tag.
		candidate := cursor + int64(idx) - 4
		if candidate <= cursor {
			// At or before the record that just failed; taking it would
			// either backtrack or loop.
			continue
		}
		if s.seen.Contains(uint64(candidate)) {
			continue
		}
		if length, _, ok := s.readHeader(candidate); ok && s.wellFramed(candidate, length) {
			return candidate
		}
	}
	return cursor + ResyncWindow - 4
}
