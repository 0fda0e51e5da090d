// Package dat decodes the fixed-width tabular binary format used for the
// game's structured data tables: an 8-byte record count, a block of
// fixed-width records, and a trailing variable-length region holding
// NUL-terminated strings addressed by byte-offset "pointer" fields.
package dat

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidSchema covers empty schemas, unknown field kinds, duplicate
	// field names, and declared offsets that do not tile the record.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrWidthMismatch means the schema's computed record width differs
	// from the caller-declared file record width.
	ErrWidthMismatch = errors.New("record width mismatch")
)

// Kind is the primitive format of one schema field.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindU8           // 1-byte unsigned integer
	KindBool         // 1-byte boolean
	KindU32          // 4-byte unsigned integer, little-endian
	KindF32          // 4-byte IEEE 754 float, little-endian
	KindU64          // 8-byte unsigned integer, little-endian
	KindString       // 8-byte pointer into the variable-length region
)

var kindNames = map[Kind]string{
	KindU8:     "u8",
	KindBool:   "bool",
	KindU32:    "u32",
	KindF32:    "f32",
	KindU64:    "u64",
	KindString: "string",
}

// ParseKind maps a schema-file type name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: unknown field type %q", ErrInvalidSchema, name)
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Width returns the fixed byte span the kind occupies in a record.
func (k Kind) Width() int {
	switch k {
	case KindU8, KindBool:
		return 1
	case KindU32, KindF32:
		return 4
	case KindU64, KindString:
		return 8
	default:
		return 0
	}
}

// Field is one column of a table schema: a name, the byte offset of its span
// inside a record, and its primitive kind.
type Field struct {
	Name   string
	Offset int
	Kind   Kind
}

// Schema describes one table's record layout. Fields may be declared in any
// order; Validate sorts them by offset.
type Schema struct {
	Name   string
	Fields []Field
}

// Validate checks the schema is well-formed and normalizes it: fields are
// sorted by declared offset and, in that order, must tile the record exactly
// (each offset equal to the running width sum). Returns the computed record
// width.
func (s *Schema) Validate() (int, error) {
	if len(s.Fields) == 0 {
		return 0, fmt.Errorf("%w: table %q has no fields", ErrInvalidSchema, s.Name)
	}

	sort.SliceStable(s.Fields, func(i, j int) bool {
		return s.Fields[i].Offset < s.Fields[j].Offset
	})

	names := make(map[string]struct{}, len(s.Fields))
	width := 0
	for _, f := range s.Fields {
		if f.Name == "" {
			return 0, fmt.Errorf("%w: table %q has an unnamed field", ErrInvalidSchema, s.Name)
		}
		if _, dup := names[f.Name]; dup {
			return 0, fmt.Errorf("%w: table %q declares field %q twice", ErrInvalidSchema, s.Name, f.Name)
		}
		names[f.Name] = struct{}{}

		if f.Kind.Width() == 0 {
			return 0, fmt.Errorf("%w: field %q has kind %v", ErrInvalidSchema, f.Name, f.Kind)
		}
		if f.Offset != width {
			return 0, fmt.Errorf("%w: field %q declared at offset %d, record layout puts it at %d",
				ErrInvalidSchema, f.Name, f.Offset, width)
		}
		width += f.Kind.Width()
	}
	if width <= 0 {
		return 0, fmt.Errorf("%w: table %q computes record width %d", ErrInvalidSchema, s.Name, width)
	}
	return width, nil
}

// FieldNames returns the field names in record-layout order. Valid after
// Validate.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}
