// Package export writes decoded data tables into SQLite databases for ad-hoc
// querying. It is a derived-artifact export: the source archive and table
// files are never modified.
package export

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/ggpk/internal/dat"
)

// WriteTable creates (or replaces) one relation named after the table in the
// database at dbPath and bulk-inserts every row inside a single transaction.
// Columns follow the schema's record-layout order.
func WriteTable(dbPath string, table *dat.Table) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	// Bulk-load tuning; durability does not matter for a rebuildable export.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		return err
	}

	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table.Name))); err != nil {
		return fmt.Errorf("drop stale table: %w", err)
	}
	if _, err := db.Exec(createStmt(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	stmt, err := tx.Prepare(insertStmt(table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	args := make([]any, len(table.Fields))
	for i, row := range table.Rows {
		for j, name := range table.Fields {
			args[j] = columnValue(row[name])
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func createStmt(table *dat.Table) string {
	cols := make([]string, len(table.Fields))
	for i, name := range table.Fields {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(name), columnType(table, name))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table.Name), strings.Join(cols, ", "))
}

func insertStmt(table *dat.Table) string {
	cols := make([]string, len(table.Fields))
	marks := make([]string, len(table.Fields))
	for i, name := range table.Fields {
		cols[i] = quoteIdent(name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// columnType maps a field's decoded Go type to a SQLite affinity by probing
// the first row; an empty table defaults everything to TEXT.
func columnType(table *dat.Table, name string) string {
	if len(table.Rows) == 0 {
		return "TEXT"
	}
	switch table.Rows[0][name].(type) {
	case uint8, uint32, uint64, bool:
		return "INTEGER"
	case float32:
		return "REAL"
	default:
		return "TEXT"
	}
}

// columnValue converts decoded values into driver-friendly types.
func columnValue(v any) any {
	switch x := v.(type) {
	case uint8:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// quoteIdent quotes an identifier for SQLite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
