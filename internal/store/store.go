// Package store is the SQL side of an import: a Session that runs DDL, DML
// and queries over one connection or transaction, and the Dialects that
// describe where AgensGraph and the embedded SQLite catalog differ.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverAgens  = "agensgraph"
	DriverSQLite = "sqlite"
)

// Conn is the part of *sql.DB and *sql.Tx a Session uses.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stmt is one statement with its arguments, written with ? placeholders.
type Stmt struct {
	SQL  string
	Args []any
}

// Session runs statements for one import. It is not safe for concurrent use;
// an import is strictly sequential.
type Session struct {
	conn    Conn
	dialect Dialect
	log     zerolog.Logger
}

// NewSession binds conn to d. Pass a *sql.Tx to keep the whole import in one
// transaction, which AgensGraph needs for graph_path to stick.
func NewSession(conn Conn, d Dialect, log *zerolog.Logger) *Session {
	s := &Session{conn: conn, dialect: d, log: zerolog.Nop()}
	if log != nil {
		s.log = *log
	}
	return s
}

func (s *Session) Dialect() Dialect { return s.dialect }

// ExecDDL runs a schema statement.
func (s *Session) ExecDDL(ctx context.Context, query string) error {
	s.log.Debug().Str("sql", query).Msg("ddl")
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ddl %q: %w", abbrev(query), err)
	}
	return nil
}

// ExecDML runs a data statement and returns the affected row count.
func (s *Session) ExecDML(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.conn.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("exec %q: %w", abbrev(query), err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Exec runs statements in order, stopping at the first failure.
func (s *Session) Exec(ctx context.Context, stmts ...Stmt) error {
	for _, st := range stmts {
		if len(st.Args) == 0 {
			if err := s.ExecDDL(ctx, st.SQL); err != nil {
				return err
			}
			continue
		}
		if _, err := s.ExecDML(ctx, st.SQL, st.Args...); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a statement that returns rows.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.conn.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", abbrev(query), err)
	}
	return rows, nil
}

// QueryRow runs a statement expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func abbrev(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 80 {
		return q[:77] + "..."
	}
	return q
}

// Open connects to driver and returns the pool with its dialect.
func Open(driver, dsn, user, password string) (*sql.DB, Dialect, error) {
	switch driver {
	case DriverAgens:
		db, err := OpenAgens(dsn, user, password)
		return db, Agens{}, err
	case DriverSQLite:
		db, err := OpenSQLite(dsn)
		return db, SQLite{}, err
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", driver)
}

// OpenAgens opens an AgensGraph (PostgreSQL protocol) pool through pgx.
// JDBC-style URLs are accepted; user and password, when set, override the
// credentials in dsn.
func OpenAgens(dsn, user, password string) (*sql.DB, error) {
	cfg, err := agensConfig(dsn, user, password)
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*cfg), nil
}

func agensConfig(dsn, user, password string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(strings.TrimPrefix(dsn, "jdbc:"))
	if err != nil {
		return nil, fmt.Errorf("parse agensgraph dsn: %w", err)
	}
	if user != "" {
		cfg.User = user
	}
	if password != "" {
		cfg.Password = password
	}
	return cfg, nil
}

// OpenSQLite opens the embedded store. The pool is pinned to one connection
// so ":memory:" databases and transactions see a single database.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	// Bulk staging, the surrounding transaction is the durability boundary.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
