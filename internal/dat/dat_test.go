package dat

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTable assembles a table image: record count, fixed block, variable
// region.
func buildTable(count uint64, fixed, variable []byte) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, count)
	buf.Write(fixed)
	buf.Write(variable)
	return buf.Bytes()
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

var pointerSchema = func() *Schema {
	return &Schema{
		Name: "Items",
		Fields: []Field{
			{Name: "count", Offset: 0, Kind: KindU32},
			{Name: "id", Offset: 4, Kind: KindString},
		},
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	variable := []byte("first\x00second\x00")
	fixed := bytes.Join([][]byte{
		u32le(11), u64le(0), // -> "first"
		u32le(22), u64le(6), // -> "second"
	}, nil)

	table, err := Decode(buildTable(2, fixed, variable), pointerSchema())
	require.NoError(t, err)

	assert.Equal(t, 12, table.Width)
	assert.Equal(t, []string{"count", "id"}, table.Fields)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, Row{"count": uint32(11), "id": "first"}, table.Rows[0])
	assert.Equal(t, Row{"count": uint32(22), "id": "second"}, table.Rows[1])
}

func TestDecodeAllKinds(t *testing.T) {
	schema := &Schema{
		Name: "Everything",
		Fields: []Field{
			{Name: "b", Offset: 0, Kind: KindU8},
			{Name: "flag", Offset: 1, Kind: KindBool},
			{Name: "n", Offset: 2, Kind: KindU32},
			{Name: "f", Offset: 6, Kind: KindF32},
			{Name: "big", Offset: 10, Kind: KindU64},
		},
	}

	record := new(bytes.Buffer)
	record.WriteByte(0x7F)
	record.WriteByte(0x01)
	record.Write(u32le(123456))
	_ = binary.Write(record, binary.LittleEndian, float32(2.5))
	record.Write(u64le(1 << 40))

	table, err := Decode(buildTable(1, record.Bytes(), nil), schema)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, Row{
		"b":    uint8(0x7F),
		"flag": true,
		"n":    uint32(123456),
		"f":    float32(2.5),
		"big":  uint64(1 << 40),
	}, table.Rows[0])
}

func TestDecodeWidthMismatch(t *testing.T) {
	image := buildTable(0, nil, nil)
	_, err := Decode(image, pointerSchema(), WithRecordWidth(16))
	require.ErrorIs(t, err, ErrWidthMismatch)

	// The matching declaration passes.
	_, err = Decode(image, pointerSchema(), WithRecordWidth(12))
	require.NoError(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3}, pointerSchema())
	assert.ErrorIs(t, err, ErrTruncated)

	// Count claims more records than the file holds.
	_, err = Decode(buildTable(5, make([]byte, 12), nil), pointerSchema())
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeSchemaValidation(t *testing.T) {
	cases := map[string]*Schema{
		"empty": {Name: "t"},
		"gap": {Name: "t", Fields: []Field{
			{Name: "a", Offset: 0, Kind: KindU32},
			{Name: "b", Offset: 8, Kind: KindU32}, // layout puts b at 4
		}},
		"duplicate": {Name: "t", Fields: []Field{
			{Name: "a", Offset: 0, Kind: KindU32},
			{Name: "a", Offset: 4, Kind: KindU32},
		}},
		"badkind": {Name: "t", Fields: []Field{
			{Name: "a", Offset: 0, Kind: KindInvalid},
		}},
	}
	for name, schema := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(buildTable(0, nil, nil), schema)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestDecodeSchemaFieldOrderNormalized(t *testing.T) {
	schema := &Schema{
		Name: "t",
		Fields: []Field{
			{Name: "second", Offset: 4, Kind: KindU32},
			{Name: "first", Offset: 0, Kind: KindU32},
		},
	}
	table, err := Decode(buildTable(0, nil, nil), schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, table.Fields)
}

func TestStringPointerPolicies(t *testing.T) {
	schema := &Schema{Name: "t", Fields: []Field{{Name: "s", Kind: KindString}}}

	// No NUL before the end of the variable region: empty string by
	// default, error under strict strings.
	image := buildTable(1, u64le(0), []byte("dangling"))
	table, err := Decode(image, schema)
	require.NoError(t, err)
	assert.Equal(t, "", table.Rows[0]["s"])

	_, err = Decode(image, schema, WithStrictStrings())
	assert.ErrorIs(t, err, ErrUnterminatedString)

	// Pointer past the region behaves the same way.
	image = buildTable(1, u64le(99), []byte("short\x00"))
	table, err = Decode(image, schema)
	require.NoError(t, err)
	assert.Equal(t, "", table.Rows[0]["s"])
}

func TestStringInvalidUTF8Dropped(t *testing.T) {
	schema := &Schema{Name: "t", Fields: []Field{{Name: "s", Kind: KindString}}}
	image := buildTable(1, u64le(0), []byte("ab\xFFcd\x00"))

	table, err := Decode(image, schema)
	require.NoError(t, err)
	assert.Equal(t, "abcd", table.Rows[0]["s"])
}

func TestDecodeIdempotent(t *testing.T) {
	image := buildTable(2, bytes.Join([][]byte{
		u32le(1), u64le(0),
		u32le(2), u64le(2),
	}, nil), []byte("a\x00b\x00"))

	first, err := Decode(image, pointerSchema())
	require.NoError(t, err)
	second, err := Decode(image, pointerSchema())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "absent.dat64"), pointerSchema())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const testSchemaHCL = `
table "Items" {
  field "id" {
    offset = 0
    type   = "string"
  }
  field "count" {
    offset = 8
    type   = "u32"
  }
}

table "Flags" {
  field "on" {
    offset = 0
    type   = "bool"
  }
}
`

func TestLoadSchemas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.hcl")
	require.NoError(t, os.WriteFile(path, []byte(testSchemaHCL), 0o644))

	schemas, err := LoadSchemas(path)
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	items, err := FindSchema(schemas, "Items")
	require.NoError(t, err)
	width, err := items.Validate()
	require.NoError(t, err)
	assert.Equal(t, 12, width)
	assert.Equal(t, KindString, items.Fields[0].Kind)

	_, err = FindSchema(schemas, "Nope")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestLoadSchemasRejectsBadType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	bad := "table \"T\" {\n  field \"x\" {\n    offset = 0\n    type   = \"i128\"\n  }\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadSchemas(path)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}
