package export

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/ggpk/internal/dat"
)

func TestWriteTableRoundTrip(t *testing.T) {
	table := &dat.Table{
		Name:   "Items",
		Width:  12,
		Fields: []string{"count", "id"},
		Rows: []dat.Row{
			{"count": uint32(11), "id": "first"},
			{"count": uint32(22), "id": "second"},
		},
	}

	dbPath := filepath.Join(t.TempDir(), "out.db")
	require.NoError(t, WriteTable(dbPath, table))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT "count", "id" FROM "Items" ORDER BY "count"`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var got []struct {
		count int64
		id    string
	}
	for rows.Next() {
		var r struct {
			count int64
			id    string
		}
		require.NoError(t, rows.Scan(&r.count, &r.id))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, 2)
	assert.Equal(t, int64(11), got[0].count)
	assert.Equal(t, "first", got[0].id)
	assert.Equal(t, int64(22), got[1].count)
	assert.Equal(t, "second", got[1].id)
}

func TestWriteTableReplacesExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "out.db")

	table := &dat.Table{
		Name:   "Flags",
		Fields: []string{"on"},
		Rows:   []dat.Row{{"on": true}},
	}
	require.NoError(t, WriteTable(dbPath, table))

	table.Rows = []dat.Row{{"on": false}, {"on": true}}
	require.NoError(t, WriteTable(dbPath, table))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "Flags"`).Scan(&n))
	assert.Equal(t, 2, n)
}
