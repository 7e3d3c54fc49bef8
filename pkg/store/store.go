// Package store defines the contract of the relational storage gateway used
// by the ingestion pipeline. Implementations live in internal/iostore.
//
// The gateway is a table abstraction: create-table-if-absent, additive
// schema evolution, upsert-many by primary key and filtered select. Rows
// are column -> value maps and may be heterogeneous. Columns missing from a
// row are stored as NULL.
package store

import (
	"context"
	"fmt"
	"strings"
)

// Column types understood by all gateways. Gateways translate them to
// their own SQL dialect.
const (
	Text    = "TEXT"
	Real    = "REAL"
	Integer = "INTEGER"
)

// ColumnDef describes one column.
type ColumnDef struct {
	Name string
	Type string
}

// Table describes a table with a single-column primary key.
type Table struct {
	Name       string
	PrimaryKey string
	Columns    []ColumnDef
}

// ColumnNames returns the names of all declared columns.
func (t Table) ColumnNames() []string {
	res := make([]string, len(t.Columns))
	for i, v := range t.Columns {
		res[i] = v.Name
	}
	return res
}

// DDL returns CREATE TABLE IF NOT EXISTS for the table with quoted
// identifiers. typeOf maps generic column types to dialect types; nil
// keeps them as is.
func (t Table) DDL(typeOf func(string) string) string {
	if typeOf == nil {
		typeOf = func(s string) string { return s }
	}
	cols := make([]string, len(t.Columns))
	for i, v := range t.Columns {
		col := Quote(v.Name) + " " + typeOf(v.Type)
		if v.Name == t.PrimaryKey {
			col += " PRIMARY KEY"
		}
		cols[i] = col
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		Quote(t.Name), strings.Join(cols, ", "))
}

// Quote wraps an identifier in double quotes. Attribute names may turn
// into SQL keywords such as "group" or "order".
func Quote(name string) string {
	return `"` + name + `"`
}

// Row is one record, column name -> value. Nil values are stored as NULL.
type Row map[string]any

// Writer is the subset of gateway operations used during a flush.
type Writer interface {
	// AddColumnsIfMissing adds columns that do not exist yet. Existing
	// columns are never changed or dropped. Safe to call before every
	// flush.
	AddColumnsIfMissing(ctx context.Context, table string, cols []ColumnDef) error

	// UpsertMany inserts rows, replacing any stored row with the same
	// primary key. Replacement is complete: columns absent from the new row
	// become NULL. Returns the number of rows written.
	UpsertMany(ctx context.Context, table string, rows []Row) (int, error)
}

// Gateway is a generic relational store.
type Gateway interface {
	Writer

	// CreateTable creates a table if it does not exist. Idempotent.
	CreateTable(ctx context.Context, t Table) error

	// HasTable reports if a table exists.
	HasTable(ctx context.Context, table string) (bool, error)

	// Columns lists the current columns of a table in storage order.
	Columns(ctx context.Context, table string) ([]string, error)

	// Select returns rows matching all equality filters. Nil or empty
	// filters select every row. Limit <= 0 means no limit.
	Select(
		ctx context.Context,
		table string,
		filters map[string]any,
		limit int,
	) ([]Row, error)

	// Count returns the number of rows in a table.
	Count(ctx context.Context, table string) (int, error)

	// DropTables drops the tables that exist.
	DropTables(ctx context.Context, tables ...string) error

	// Batch runs fn in one transaction. Either every write made through
	// the Writer is stored, or none is.
	Batch(ctx context.Context, fn func(Writer) error) error

	// Close releases the underlying connections.
	Close() error
}

// MaxIdentifierLen is the longest table or column name accepted. It is
// the PostgreSQL limit, which truncates longer names silently.
const MaxIdentifierLen = 63

// ValidIdentifier reports if s is a safe table or column name: ASCII
// letters, digits and underscores, not starting with a digit, at most
// MaxIdentifierLen bytes long.
func ValidIdentifier(s string) bool {
	if s == "" || len(s) > MaxIdentifierLen {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
