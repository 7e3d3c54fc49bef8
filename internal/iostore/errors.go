package iostore

import (
	"fmt"
	"runtime"

	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/errcode"
	"github.com/gnames/gn"
)

// ConnectionError is returned when PostgreSQL cannot be reached.
func ConnectionError(cfg *config.DatabaseConfig, err error) error {
	msg := `Could not connect to PostgreSQL at <em>%s:%d/%s</em>

  1. Check if PostgreSQL is running: pg_isready -h %s -p %d
  2. Review connection settings in ~/.config/catdb/config.yaml
     or use the file database with CATDB_DATABASE_BACKEND=sqlite`
	vars := []any{cfg.Host, cfg.Port, cfg.Database, cfg.Host, cfg.Port}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreConnectionError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: failed to connect to %s:%d/%s: %w",
			fn.Name(), cfg.Host, cfg.Port, cfg.Database, err),
	}
}

func OpenSQLiteError(path string, err error) error {
	msg := "Cannot open SQLite database <em>%s</em>"
	vars := []any{path}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreConnectionError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: cannot open %s: %w",
			fn.Name(), path, err),
	}
}

func UnknownBackendError(backend string) error {
	msg := "Unknown database backend <em>%s</em>"
	vars := []any{backend}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreUnknownBackendError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: unknown backend %q", fn.Name(), backend),
	}
}

func IdentifierError(name string) error {
	msg := "<em>%s</em> is not a valid table or column name"
	vars := []any{name}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreIdentifierError,
		Msg:  msg,
		Vars: vars,
		Err:  fmt.Errorf("from %s: invalid identifier %q", fn.Name(), name),
	}
}

func CreateTableError(table string, err error) error {
	msg := "Cannot create table <em>%s</em>"
	vars := []any{table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreCreateTableError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: create table %s: %w",
			fn.Name(), table, err),
	}
}

func AlterTableError(table, column string, err error) error {
	msg := "Cannot add column <em>%s</em> to table <em>%s</em>"
	vars := []any{column, table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreAlterTableError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: add column %s.%s: %w",
			fn.Name(), table, column, err),
	}
}

func UpsertError(table string, err error) error {
	msg := "Cannot write rows to table <em>%s</em>"
	vars := []any{table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreUpsertError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: upsert %s: %w",
			fn.Name(), table, err),
	}
}

func UnknownColumnError(table, column string) error {
	msg := "Table <em>%s</em> has no column <em>%s</em>"
	vars := []any{table, column}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreUpsertError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: unknown column %s.%s",
			fn.Name(), table, column),
	}
}

func MissingKeyError(table, pk string) error {
	msg := "Row for table <em>%s</em> has no primary key <em>%s</em>"
	vars := []any{table, pk}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreUpsertError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: missing primary key %s.%s",
			fn.Name(), table, pk),
	}
}

func QueryError(table string, err error) error {
	msg := "Cannot query table <em>%s</em>"
	vars := []any{table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreQueryError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: query %s: %w",
			fn.Name(), table, err),
	}
}

func DropTableError(table string, err error) error {
	msg := "Cannot drop table <em>%s</em>"
	vars := []any{table}
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreDropTableError,
		Msg:  msg,
		Vars: vars,
		Err: fmt.Errorf("from %s: drop table %s: %w",
			fn.Name(), table, err),
	}
}

func TransactionError(err error) error {
	msg := "Database transaction failed"
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreTransactionError,
		Msg:  msg,
		Err:  fmt.Errorf("from %s: transaction: %w", fn.Name(), err),
	}
}

func NotConnectedError() error {
	msg := "Database is not connected"
	pc, _, _, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	return &gn.Error{
		Code: errcode.StoreNotConnectedError,
		Msg:  msg,
		Err:  fmt.Errorf("from %s: not connected", fn.Name()),
	}
}
