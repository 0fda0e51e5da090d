package dat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

var (
	// ErrTruncated means the file ends before the record count or the
	// fixed-width block it declares.
	ErrTruncated = errors.New("truncated table file")
	// ErrUnterminatedString is returned under the strict-strings option
	// when a pointer field's string has no NUL before the end of the
	// variable region. The default policy resolves it to "".
	ErrUnterminatedString = errors.New("unterminated string")
)

// Row maps field names to decoded values: uint8, bool, uint32, float32,
// uint64, or string.
type Row map[string]any

// Table is one fully decoded data table. Produced fresh on every decode
// call; nothing is cached between calls.
type Table struct {
	Name   string
	Width  int      // record width in bytes, computed from the schema
	Fields []string // field names in record-layout order
	Rows   []Row    // one per record, preserving file order
}

// Options tune decode policy. The zero value matches the reference tooling.
type Options struct {
	// DeclaredWidth, when non-zero, is the caller's record width for the
	// file. A mismatch with the schema's computed width fails the decode
	// before any record is read.
	DeclaredWidth int
	// StrictStrings fails the decode when a pointer field's string is
	// unterminated instead of resolving it to "".
	StrictStrings bool
}

// Option mutates decode Options.
type Option func(*Options)

// WithRecordWidth declares the file's per-record width for validation
// against the schema.
func WithRecordWidth(w int) Option {
	return func(o *Options) { o.DeclaredWidth = w }
}

// WithStrictStrings makes unterminated pointer strings a decode failure.
func WithStrictStrings() Option {
	return func(o *Options) { o.StrictStrings = true }
}

// DecodeFile reads and decodes the table file at path.
func DecodeFile(path string, schema *Schema, opts ...Option) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table file: %w", err)
	}
	table, err := Decode(data, schema, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Decode decodes one table image against schema. The caller always receives
// either a fully decoded table or an error, never a partial result.
func Decode(data []byte, schema *Schema, opts ...Option) (*Table, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	width, err := schema.Validate()
	if err != nil {
		return nil, err
	}
	if o.DeclaredWidth != 0 && o.DeclaredWidth != width {
		return nil, fmt.Errorf("%w: schema computes %d bytes, caller declared %d",
			ErrWidthMismatch, width, o.DeclaredWidth)
	}

	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes, record count needs 8", ErrTruncated, len(data))
	}
	count := binary.LittleEndian.Uint64(data[0:8])

	// Division avoids overflow on hostile record counts.
	if count > (uint64(len(data))-8)/uint64(width) {
		return nil, fmt.Errorf("%w: %d records of %d bytes exceed the %d remaining bytes",
			ErrTruncated, count, width, len(data)-8)
	}
	fixedLen := count * uint64(width)
	fixed := data[8 : 8+fixedLen]
	variable := data[8+fixedLen:]

	table := &Table{
		Name:   schema.Name,
		Width:  width,
		Fields: schema.FieldNames(),
		Rows:   make([]Row, 0, count),
	}
	for i := uint64(0); i < count; i++ {
		record := fixed[i*uint64(width) : (i+1)*uint64(width)]
		row := make(Row, len(schema.Fields))
		for _, f := range schema.Fields {
			value, err := decodeField(record, variable, f, o)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i, f.Name, err)
			}
			row[f.Name] = value
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func decodeField(record, variable []byte, f Field, o Options) (any, error) {
	span := record[f.Offset : f.Offset+f.Kind.Width()]
	switch f.Kind {
	case KindU8:
		return span[0], nil
	case KindBool:
		return span[0] != 0, nil
	case KindU32:
		return binary.LittleEndian.Uint32(span), nil
	case KindF32:
		return math.Float32frombits(binary.LittleEndian.Uint32(span)), nil
	case KindU64:
		return binary.LittleEndian.Uint64(span), nil
	case KindString:
		return resolveString(variable, binary.LittleEndian.Uint64(span), o)
	default:
		return nil, fmt.Errorf("%w: kind %v", ErrInvalidSchema, f.Kind)
	}
}

// resolveString dereferences a pointer field: the bytes strictly between the
// offset and the next NUL in the variable region, decoded as UTF-8 with
// invalid sequences dropped. A pointer past the region or with no NUL before
// its end resolves to "" unless strict strings are on.
func resolveString(variable []byte, offset uint64, o Options) (string, error) {
	if offset >= uint64(len(variable)) {
		if o.StrictStrings {
			return "", fmt.Errorf("%w: pointer %d past %d-byte variable region",
				ErrUnterminatedString, offset, len(variable))
		}
		return "", nil
	}
	raw := variable[offset:]
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		if o.StrictStrings {
			return "", fmt.Errorf("%w: pointer %d", ErrUnterminatedString, offset)
		}
		return "", nil
	}
	return strings.ToValidUTF8(string(raw[:end]), ""), nil
}
