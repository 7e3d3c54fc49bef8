package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/clasier/catdb/pkg/store"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGo)
)

// SQLite DSN parameters for a single-writer file database.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

var errNoPrimaryKey = errors.New("table has no primary key")

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteWriter implements store.Writer over a connection or a
// transaction.
type sqliteWriter struct {
	q         sqlQuerier
	batchSize int
	keys      *keyCache
}

// sqliteGateway implements store.Gateway for a SQLite file.
type sqliteGateway struct {
	sqliteWriter
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) a SQLite database file. The pool
// has one connection; SQLite allows a single writer anyway.
func OpenSQLite(
	ctx context.Context,
	path string,
	batchSize int,
) (store.Gateway, error) {
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, OpenSQLiteError(path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, OpenSQLiteError(path, err)
	}

	res := &sqliteGateway{
		sqliteWriter: sqliteWriter{
			q:         db,
			batchSize: batchSize,
			keys:      newKeyCache(),
		},
		db:   db,
		path: path,
	}
	return res, nil
}

// buildDSN constructs a modernc SQLite DSN with hardened parameters.
func buildDSN(path string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout("+defaultBusyTimeout+")")
	params.Add("_pragma", "journal_mode("+defaultJournalMode+")")
	params.Add("_pragma", "synchronous("+defaultSynchronous+")")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// Close implements store.Gateway.
func (g *sqliteGateway) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

// CreateTable implements store.Gateway.
func (g *sqliteGateway) CreateTable(ctx context.Context, t store.Table) error {
	ddl, err := sqliteDialect.createTableSQL(t)
	if err != nil {
		return err
	}
	if _, err = g.db.ExecContext(ctx, ddl); err != nil {
		return CreateTableError(t.Name, err)
	}
	g.keys.set(t.Name, t.PrimaryKey)
	return nil
}

// HasTable implements store.Gateway.
func (g *sqliteGateway) HasTable(ctx context.Context, table string) (bool, error) {
	var n int
	err := g.db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&n)
	if err != nil {
		return false, QueryError(table, err)
	}
	return n > 0, nil
}

// Columns implements store.Gateway.
func (g *sqliteGateway) Columns(ctx context.Context, table string) ([]string, error) {
	return g.columns(ctx, table)
}

// Select implements store.Gateway.
func (g *sqliteGateway) Select(
	ctx context.Context,
	table string,
	filters map[string]any,
	limit int,
) ([]store.Row, error) {
	pk, err := g.primaryKey(ctx, table)
	if err != nil && !errors.Is(err, errNoPrimaryKey) {
		return nil, QueryError(table, err)
	}
	stmt, err := sqliteDialect.selectSQL(table, pk, filters, limit)
	if err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx, stmt.query, stmt.args...)
	if err != nil {
		return nil, QueryError(table, err)
	}
	defer rows.Close()

	res, err := scanRows(rows)
	if err != nil {
		return nil, QueryError(table, err)
	}
	return res, nil
}

// Count implements store.Gateway.
func (g *sqliteGateway) Count(ctx context.Context, table string) (int, error) {
	if err := checkIdents(table); err != nil {
		return 0, err
	}
	var n int
	err := g.db.QueryRowContext(ctx,
		"SELECT count(*) FROM "+quote(table)).Scan(&n)
	if err != nil {
		return 0, QueryError(table, err)
	}
	return n, nil
}

// DropTables implements store.Gateway.
func (g *sqliteGateway) DropTables(ctx context.Context, tables ...string) error {
	for _, v := range tables {
		if err := checkIdents(v); err != nil {
			return err
		}
		if _, err := g.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(v)); err != nil {
			return DropTableError(v, err)
		}
		g.keys.remove(v)
	}
	return nil
}

// Batch implements store.Gateway.
func (g *sqliteGateway) Batch(
	ctx context.Context,
	fn func(store.Writer) error,
) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return TransactionError(err)
	}
	w := &sqliteWriter{q: tx, batchSize: g.batchSize, keys: g.keys}
	if err = fn(w); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return TransactionError(err)
	}
	return nil
}

// AddColumnsIfMissing implements store.Writer.
func (w *sqliteWriter) AddColumnsIfMissing(
	ctx context.Context,
	table string,
	cols []store.ColumnDef,
) error {
	if err := checkIdents(table); err != nil {
		return err
	}
	existing, err := w.columns(ctx, table)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return AlterTableError(table, "", fmt.Errorf("table %s does not exist", table))
	}
	has := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		has[v] = struct{}{}
	}

	for _, v := range cols {
		if _, ok := has[v.Name]; ok {
			continue
		}
		if err = checkIdents(v.Name); err != nil {
			return err
		}
		if _, err = w.q.ExecContext(ctx, sqliteDialect.addColumnSQL(table, v)); err != nil {
			return AlterTableError(table, v.Name, err)
		}
		has[v.Name] = struct{}{}
	}
	return nil
}

// UpsertMany implements store.Writer.
func (w *sqliteWriter) UpsertMany(
	ctx context.Context,
	table string,
	rows []store.Row,
) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := checkIdents(table); err != nil {
		return 0, err
	}
	pk, err := w.primaryKey(ctx, table)
	if err != nil {
		return 0, UpsertError(table, err)
	}
	cols, err := w.columns(ctx, table)
	if err != nil {
		return 0, err
	}
	rows, err = dedupRows(table, pk, rows)
	if err != nil {
		return 0, err
	}

	stmts, err := sqliteDialect.upsertStatements(table, pk, cols, rows, w.batchSize)
	if err != nil {
		return 0, err
	}
	for _, v := range stmts {
		if _, err = w.q.ExecContext(ctx, v.query, v.args...); err != nil {
			return 0, UpsertError(table, err)
		}
	}
	return len(rows), nil
}

func (w *sqliteWriter) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := w.q.QueryContext(ctx,
		"SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, QueryError(table, err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, QueryError(table, err)
		}
		res = append(res, name)
	}
	if err = rows.Err(); err != nil {
		return nil, QueryError(table, err)
	}
	return res, nil
}

func (w *sqliteWriter) primaryKey(ctx context.Context, table string) (string, error) {
	if pk, ok := w.keys.get(table); ok {
		return pk, nil
	}
	var pk string
	err := w.q.QueryRowContext(ctx,
		"SELECT name FROM pragma_table_info(?) WHERE pk = 1", table,
	).Scan(&pk)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNoPrimaryKey
	}
	if err != nil {
		return "", err
	}
	w.keys.set(table, pk)
	return pk, nil
}

// scanRows reads all rows into column -> value maps. TEXT arrives as
// string, INTEGER as int64, REAL as float64 and NULL as nil.
func scanRows(rows *sql.Rows) ([]store.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var res []store.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(store.Row, len(cols))
		for i, v := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[v] = string(b)
				continue
			}
			row[v] = vals[i]
		}
		res = append(res, row)
	}
	return res, rows.Err()
}
