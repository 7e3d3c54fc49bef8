// Package iostore implements store.Gateway for SQLite and PostgreSQL.
// This is an impure I/O package that implements contracts
// defined in pkg/.
package iostore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/store"
)

// Open connects to the storage backend selected in the config.
func Open(ctx context.Context, cfg *config.Config) (store.Gateway, error) {
	switch cfg.Database.Backend {
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath(), cfg.Database.BatchSize)
	case "postgres":
		return OpenPostgres(ctx, &cfg.Database)
	default:
		return nil, UnknownBackendError(cfg.Database.Backend)
	}
}

// Describe returns a human-readable location of the configured database.
func Describe(cfg *config.Config) string {
	if cfg.Database.Backend == "postgres" {
		db := cfg.Database
		return fmt.Sprintf("postgres://%s@%s:%d/%s",
			db.User, db.Host, db.Port, db.Database)
	}
	return cfg.SQLitePath()
}

// dialect holds the SQL differences between backends.
type dialect struct {
	// maxParams is the bind parameter limit of one statement.
	maxParams int
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// typeOf maps generic column types to SQL types.
	typeOf func(string) string
	// conflict returns the tail of an upsert statement.
	conflict func(pk string, cols []string) string
	// insert is the verb of an upsert statement.
	insert string
}

var sqliteDialect = dialect{
	maxParams:   32_766,
	placeholder: func(int) string { return "?" },
	typeOf:      func(s string) string { return s },
	conflict:    func(string, []string) string { return "" },
	insert:      "INSERT OR REPLACE INTO",
}

var pgDialect = dialect{
	maxParams:   65_535,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	typeOf: func(s string) string {
		switch s {
		case store.Real:
			return "DOUBLE PRECISION"
		case store.Integer:
			return "BIGINT"
		default:
			return "TEXT"
		}
	},
	conflict: func(pk string, cols []string) string {
		var sets []string
		for _, v := range cols {
			if v == pk {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(v), quote(v)))
		}
		if len(sets) == 0 {
			return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quote(pk))
		}
		return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s",
			quote(pk), strings.Join(sets, ", "))
	},
	insert: "INSERT INTO",
}

// statement is one SQL statement with its arguments.
type statement struct {
	query string
	args  []any
}

func quote(name string) string {
	return store.Quote(name)
}

func checkIdents(names ...string) error {
	for _, v := range names {
		if !store.ValidIdentifier(v) {
			return IdentifierError(v)
		}
	}
	return nil
}

// createTableSQL returns DDL for a table.
func (d dialect) createTableSQL(t store.Table) (string, error) {
	if err := checkIdents(append(t.ColumnNames(), t.Name)...); err != nil {
		return "", err
	}
	return t.DDL(d.typeOf), nil
}

func (d dialect) addColumnSQL(table string, col store.ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quote(table), quote(col.Name), d.typeOf(col.Type))
}

// dedupRows keeps the last row for every primary key, in the order of
// first appearance.
func dedupRows(table, pk string, rows []store.Row) ([]store.Row, error) {
	idx := make(map[any]int, len(rows))
	res := make([]store.Row, 0, len(rows))
	for _, v := range rows {
		key, ok := v[pk]
		if !ok || key == nil || key == "" {
			return nil, MissingKeyError(table, pk)
		}
		if i, ok := idx[key]; ok {
			res[i] = v
			continue
		}
		idx[key] = len(res)
		res = append(res, v)
	}
	return res, nil
}

// upsertStatements builds multi-row upserts of rows into table. Every
// statement lists all table columns so that columns missing from a row
// are overwritten with NULL.
func (d dialect) upsertStatements(
	table, pk string,
	cols []string,
	rows []store.Row,
	batchSize int,
) ([]statement, error) {
	known := make(map[string]struct{}, len(cols))
	for _, v := range cols {
		known[v] = struct{}{}
	}
	for _, row := range rows {
		for k := range row {
			if _, ok := known[k]; !ok {
				return nil, UnknownColumnError(table, k)
			}
		}
	}

	perStmt := d.maxParams / len(cols)
	if batchSize > 0 && batchSize < perStmt {
		perStmt = batchSize
	}

	head := fmt.Sprintf("%s %s (%s) VALUES ", d.insert, quote(table),
		strings.Join(quoteAll(cols), ", "))
	tail := d.conflict(pk, cols)

	var res []statement
	for i := 0; i < len(rows); i += perStmt {
		end := min(i+perStmt, len(rows))
		chunk := rows[i:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		n := 1
		for j, row := range chunk {
			ph := make([]string, len(cols))
			for k, col := range cols {
				ph[k] = d.placeholder(n)
				n++
				args = append(args, row[col])
			}
			values[j] = "(" + strings.Join(ph, ", ") + ")"
		}
		res = append(res, statement{
			query: head + strings.Join(values, ", ") + tail,
			args:  args,
		})
	}
	return res, nil
}

func quoteAll(names []string) []string {
	res := make([]string, len(names))
	for i, v := range names {
		res[i] = quote(v)
	}
	return res
}

// selectSQL builds a filtered select ordered by the primary key. Filter
// columns are sorted for stable statements.
func (d dialect) selectSQL(
	table, pk string,
	filters map[string]any,
	limit int,
) (statement, error) {
	if err := checkIdents(table); err != nil {
		return statement{}, err
	}
	var res statement
	var conds []string
	for _, k := range slices.Sorted(maps.Keys(filters)) {
		if err := checkIdents(k); err != nil {
			return statement{}, err
		}
		res.args = append(res.args, filters[k])
		conds = append(conds,
			fmt.Sprintf("%s = %s", quote(k), d.placeholder(len(res.args))))
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM " + quote(table))
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if pk != "" {
		sb.WriteString(" ORDER BY " + quote(pk))
	}
	if limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	}
	res.query = sb.String()
	return res, nil
}

// keyCache remembers primary keys of tables.
type keyCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newKeyCache() *keyCache {
	return &keyCache{m: make(map[string]string)}
}

func (k *keyCache) get(table string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	res, ok := k.m[table]
	return res, ok
}

func (k *keyCache) set(table, pk string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[table] = pk
}

func (k *keyCache) remove(table string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, table)
}
