// Package sqlstore implements every mediagate store on database/sql. The same
// queries run against PostgreSQL (lib/pq) and SQLite (go-sqlite3); statements
// are written with ? placeholders and rebound for postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/sharing"
	"github.com/platinummonkey/mediagate/pkg/storage"
)

var (
	_ rbac.ProfileStore = (*Store)(nil)
	_ content.Store     = (*Store)(nil)
	_ groups.Store      = (*Store)(nil)
	_ bundles.Store     = (*Store)(nil)
	_ access.Store      = (*Store)(nil)
	_ billing.Store     = (*Store)(nil)
	_ sharing.Store     = (*Store)(nil)
)

//go:embed migrations/*.up.sql
var migrations embed.FS

var tracer = otel.Tracer("github.com/platinummonkey/mediagate/pkg/storage/sqlstore")

// Store is a SQL-backed implementation of the mediagate stores
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database, applies the pool settings and
// runs pending migrations
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	driver, err := cfg.DriverName()
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required for %s storage", cfg.Type)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Type, err)
	}

	if driver == "sqlite3" {
		// a single long-lived connection; an in-memory database lives only as long as it does
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Type, err)
	}

	s := New(db, driver)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection. driver is "postgres" or "sqlite3".
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// DB exposes the pool for health checks and pool metrics
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies every embedded migration that has not run yet
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql")

		var applied int
		err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		ddl := string(body)
		if s.driver == "sqlite3" {
			ddl = strings.ReplaceAll(ddl, "TIMESTAMPTZ", "DATETIME")
		}

		err = s.withTx(ctx, "Migrate", func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", s.system())),
	)
}

func (s *Store) system() string {
	if s.driver == "sqlite3" {
		return "sqlite"
	}
	return "postgresql"
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// exec runs a write and maps driver errors
func (s *Store) exec(ctx context.Context, op, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := s.startSpan(ctx, op)
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	err = mapError(err)
	endSpan(span, err)
	return res, err
}

// execOne runs a write that must touch exactly one row
func (s *Store) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := s.exec(ctx, op, query, args...)
	if err != nil {
		return err
	}
	return requireOne(res)
}

// get runs a single-row select; scan receives the row's Scan
func (s *Store) get(ctx context.Context, op, query string, args []interface{}, scan func(func(...interface{}) error) error) error {
	ctx, span := s.startSpan(ctx, op)
	err := mapError(scan(s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan))
	endSpan(span, err)
	return err
}

// query runs a select and hands every row to scan
func (s *Store) query(ctx context.Context, op, query string, args []interface{}, scan func(*sql.Rows) error) error {
	ctx, span := s.startSpan(ctx, op)
	err := s.queryRows(ctx, query, args, scan)
	endSpan(span, err)
	return err
}

func (s *Store) queryRows(ctx context.Context, query string, args []interface{}, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
	}
	return mapError(rows.Err())
}

// withTx runs fn in a transaction and rolls back on error
func (s *Store) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	ctx, span := s.startSpan(ctx, op)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("failed to start transaction: %w", err)
		endSpan(span, err)
		return err
	}
	defer tx.Rollback()

	if err = fn(tx); err == nil {
		err = tx.Commit()
	}
	err = mapError(err)
	endSpan(span, err)
	return err
}

// txExec is exec inside a transaction
func (s *Store) txExec(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	return tx.ExecContext(ctx, s.rebind(query), args...)
}

// txExists reports whether a query returns a row
func (s *Store) txExists(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, s.rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// mapError translates driver errors into storage sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
