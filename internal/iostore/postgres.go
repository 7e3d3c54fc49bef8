package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/clasier/catdb/pkg/config"
	"github.com/clasier/catdb/pkg/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgWriter implements store.Writer over the pool or a transaction.
type pgWriter struct {
	q         pgQuerier
	batchSize int
	keys      *keyCache
}

// pgGateway implements store.Gateway for PostgreSQL. Writes and DDL go
// through pgx, reads through GORM on top of the same pool.
type pgGateway struct {
	pgWriter
	pool  *pgxpool.Pool
	sqlDB *sql.DB
	gorm  *gorm.DB
}

// OpenPostgres establishes a connection pool to PostgreSQL.
// Uses sensible hardcoded pool settings that work well for
// most use cases.
func OpenPostgres(
	ctx context.Context,
	cfg *config.DatabaseConfig,
) (store.Gateway, error) {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + cfg.SSLMode,
	}

	poolConfig, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, ConnectionError(cfg, err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, ConnectionError(cfg, err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ConnectionError(cfg, err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{Conn: sqlDB}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, ConnectionError(cfg, err)
	}

	res := &pgGateway{
		pgWriter: pgWriter{
			q:         pool,
			batchSize: cfg.BatchSize,
			keys:      newKeyCache(),
		},
		pool:  pool,
		sqlDB: sqlDB,
		gorm:  gormDB,
	}
	return res, nil
}

// Close releases all database connections.
func (g *pgGateway) Close() error {
	if g.pool == nil {
		return nil
	}
	err := g.sqlDB.Close()
	g.pool.Close()
	return err
}

// CreateTable implements store.Gateway.
func (g *pgGateway) CreateTable(ctx context.Context, t store.Table) error {
	ddl, err := pgDialect.createTableSQL(t)
	if err != nil {
		return err
	}
	if _, err = g.pool.Exec(ctx, ddl); err != nil {
		return CreateTableError(t.Name, err)
	}
	g.keys.set(t.Name, t.PrimaryKey)
	return nil
}

// HasTable implements store.Gateway.
func (g *pgGateway) HasTable(ctx context.Context, table string) (bool, error) {
	return g.gorm.WithContext(ctx).Migrator().HasTable(table), nil
}

// Columns implements store.Gateway.
func (g *pgGateway) Columns(ctx context.Context, table string) ([]string, error) {
	return g.columns(ctx, table)
}

// Select implements store.Gateway.
func (g *pgGateway) Select(
	ctx context.Context,
	table string,
	filters map[string]any,
	limit int,
) ([]store.Row, error) {
	if err := checkIdents(table); err != nil {
		return nil, err
	}
	for k := range filters {
		if err := checkIdents(k); err != nil {
			return nil, err
		}
	}

	tx := g.gorm.WithContext(ctx).Table(table)
	if len(filters) > 0 {
		tx = tx.Where(filters)
	}
	pk, err := g.primaryKey(ctx, table)
	if err != nil && !errors.Is(err, errNoPrimaryKey) {
		return nil, QueryError(table, err)
	}
	if pk != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: pk}})
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []map[string]any
	if err = tx.Find(&rows).Error; err != nil {
		return nil, QueryError(table, err)
	}

	res := make([]store.Row, len(rows))
	for i, v := range rows {
		res[i] = store.Row(v)
	}
	return res, nil
}

// Count implements store.Gateway.
func (g *pgGateway) Count(ctx context.Context, table string) (int, error) {
	if err := checkIdents(table); err != nil {
		return 0, err
	}
	var n int64
	if err := g.gorm.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
		return 0, QueryError(table, err)
	}
	return int(n), nil
}

// DropTables implements store.Gateway.
func (g *pgGateway) DropTables(ctx context.Context, tables ...string) error {
	for _, v := range tables {
		if err := checkIdents(v); err != nil {
			return err
		}
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", quote(v))
		if _, err := g.pool.Exec(ctx, dropSQL); err != nil {
			return DropTableError(v, err)
		}
		g.keys.remove(v)
	}
	return nil
}

// Batch implements store.Gateway.
func (g *pgGateway) Batch(
	ctx context.Context,
	fn func(store.Writer) error,
) error {
	var fnErr error
	err := pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
		fnErr = fn(&pgWriter{q: tx, batchSize: g.batchSize, keys: g.keys})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return TransactionError(err)
	}
	return nil
}

// AddColumnsIfMissing implements store.Writer.
func (w *pgWriter) AddColumnsIfMissing(
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
		if _, err = w.q.Exec(ctx, pgDialect.addColumnSQL(table, v)); err != nil {
			return AlterTableError(table, v.Name, err)
		}
		has[v.Name] = struct{}{}
	}
	return nil
}

// UpsertMany implements store.Writer.
func (w *pgWriter) UpsertMany(
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

	stmts, err := pgDialect.upsertStatements(table, pk, cols, rows, w.batchSize)
	if err != nil {
		return 0, err
	}
	for _, v := range stmts {
		if _, err = w.q.Exec(ctx, v.query, v.args...); err != nil {
			return 0, UpsertError(table, err)
		}
	}
	return len(rows), nil
}

func (w *pgWriter) columns(ctx context.Context, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = $1
		ORDER BY ordinal_position
	`
	rows, err := w.q.Query(ctx, query, table)
	if err != nil {
		return nil, QueryError(table, err)
	}
	res, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, QueryError(table, err)
	}
	return res, nil
}

func (w *pgWriter) primaryKey(ctx context.Context, table string) (string, error) {
	if pk, ok := w.keys.get(table); ok {
		return pk, nil
	}
	query := `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a
			ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = to_regclass($1) AND i.indisprimary
	`
	var pk string
	err := w.q.QueryRow(ctx, query, quote(table)).Scan(&pk)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errNoPrimaryKey
	}
	if err != nil {
		return "", err
	}
	w.keys.set(table, pk)
	return pk, nil
}
