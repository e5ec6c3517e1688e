package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/liberaldart/epicsearch-sub000/dialect"
)

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn binds an ExecQuerier to a dialect.
type Conn struct {
	ExecQuerier
	dialect string
}

// Dialect returns the dialect name of the connection.
func (c Conn) Dialect() string {
	return Dialect(c.dialect)
}

// Dialect normalizes a driver name to one of the supported dialects.
// Wrapped driver names such as "sqlite3" or "postgres-otel" keep their prefix.
func Dialect(name string) string {
	for _, d := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(name, d) {
			return d
		}
	}
	return name
}

// openDB opens a database for a dialect. MySQL sources are parsed and
// normalized before use.
func openDB(name, source string) (*sql.DB, error) {
	switch Dialect(name) {
	case dialect.MySQL:
		cfg, err := mysql.ParseDSN(source)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: parse mysql dsn: %w", err)
		}
		cfg.InterpolateParams = true
		source = cfg.FormatDSN()
	case dialect.SQLite, dialect.Postgres:
	default:
		return nil, fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
	db, err := sql.Open(name, source)
	if err != nil {
		return nil, err
	}
	if Dialect(name) == dialect.SQLite {
		// One connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
