package tests

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/ggpk/internal/dat"
	"github.com/agentic-research/ggpk/internal/export"
	"github.com/agentic-research/ggpk/internal/ggpk"
	"github.com/agentic-research/ggpk/internal/ggpk/ggpktest"
	"github.com/agentic-research/ggpk/internal/ggpkfs"
)

const questSchemaHCL = `
table "Quests" {
  field "id" {
    offset = 0
    type   = "string"
  }
  field "act" {
    offset = 8
    type   = "u32"
  }
}
`

// questTable is a two-row DAT image matching questSchemaHCL.
func questTable() []byte {
	buf := new(bytes.Buffer)
	write := func(v any) { _ = binary.Write(buf, binary.LittleEndian, v) }

	write(uint64(2)) // record count
	write(uint64(0)) // -> "enemy_at_the_gate"
	write(uint32(1))
	write(uint64(18)) // -> "mercy_mission"
	write(uint32(1))
	buf.WriteString("enemy_at_the_gate\x00mercy_mission\x00")
	return buf.Bytes()
}

// buildFixture packs a DAT table file inside a synthetic archive:
//
//	/
//	└── Data/
//	    └── Quests.dat64
func buildFixture(t *testing.T) string {
	t.Helper()

	layout := func(rootOff int64) (*ggpktest.Builder, int64) {
		b := ggpktest.New(3)
		b.Container(rootOff)
		datOff := b.File("Quests.dat64", questTable())
		dirOff := b.Directory("Data", ggpktest.Entry{Offset: datOff})
		return b, b.Directory("", ggpktest.Entry{Offset: dirOff})
	}
	_, rootOff := layout(0)
	b, _ := layout(rootOff)
	return b.WriteFile(t, t.TempDir())
}

// TestArchiveToSQLite drives the full pipeline: open the archive, extract
// the table file through the filesystem surface, decode it against an HCL
// schema, export it to SQLite, and read the rows back.
func TestArchiveToSQLite(t *testing.T) {
	workDir := t.TempDir()

	archive, err := ggpk.Open(buildFixture(t))
	require.NoError(t, err)
	defer func() { _ = archive.Close() }()

	// 1. The tree resolves and lists as expected.
	entries, err := archive.List("/Data")
	require.NoError(t, err)
	require.Equal(t, []ggpk.Entry{{Name: "Quests.dat64", Dir: false}}, entries)

	// 2. Extraction through the billy surface matches direct extraction.
	fs := ggpkfs.New(archive)
	f, err := fs.Open("/Data/Quests.dat64")
	require.NoError(t, err)
	viaFS, err := io.ReadAll(f)
	require.NoError(t, err)
	_ = f.Close()

	direct, err := archive.Extract("/Data/Quests.dat64")
	require.NoError(t, err)
	assert.Equal(t, direct, viaFS)

	size, err := archive.Size("/Data/Quests.dat64")
	require.NoError(t, err)
	assert.Equal(t, size, int64(len(direct)))

	// 3. Decode the extracted table against the HCL schema.
	schemaPath := filepath.Join(workDir, "quests.hcl")
	require.NoError(t, os.WriteFile(schemaPath, []byte(questSchemaHCL), 0o644))
	schemas, err := dat.LoadSchemas(schemaPath)
	require.NoError(t, err)
	schema, err := dat.FindSchema(schemas, "Quests")
	require.NoError(t, err)

	table, err := dat.Decode(direct, schema, dat.WithRecordWidth(12))
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "enemy_at_the_gate", table.Rows[0]["id"])
	assert.Equal(t, "mercy_mission", table.Rows[1]["id"])

	// 4. Export to SQLite and read back.
	dbPath := filepath.Join(workDir, "quests.db")
	require.NoError(t, export.WriteTable(dbPath, table))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var id string
	var act int64
	row := db.QueryRow(`SELECT "id", "act" FROM "Quests" ORDER BY "id" LIMIT 1`)
	require.NoError(t, row.Scan(&id, &act))
	assert.Equal(t, "enemy_at_the_gate", id)
	assert.Equal(t, int64(1), act)
}

// TestCorruptedArchiveStillServes verifies the scanner's resync keeps an
// archive usable when garbage separates valid records.
func TestCorruptedArchiveStillServes(t *testing.T) {
	layout := func(rootOff int64) (*ggpktest.Builder, int64) {
		b := ggpktest.New(3)
		b.Container(rootOff)
		fileOff := b.File("kept.txt", []byte("survived"))
		b.Raw(bytes.Repeat([]byte{0xAA}, 512)) // free-floating garbage
		return b, b.Directory("", ggpktest.Entry{Offset: fileOff})
	}
	_, rootOff := layout(0)
	b, _ := layout(rootOff)

	archive, err := ggpk.Open(b.WriteFile(t, t.TempDir()))
	require.NoError(t, err)
	defer func() { _ = archive.Close() }()

	data, err := archive.Extract("/kept.txt")
	require.NoError(t, err)
	assert.Equal(t, "survived", string(data))
}
