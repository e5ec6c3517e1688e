package sql

import (
	"context"
	"fmt"

	"github.com/liberaldart/epicsearch-sub000/dialect"
)

// Default table names.
const (
	DocumentsTable = "documents"
	TermsTable     = "terms"
)

// columnTypes holds the column types of a dialect.
type columnTypes struct {
	key     string
	version string
	source  string
}

func typesOf(d string) columnTypes {
	switch d {
	case dialect.Postgres:
		return columnTypes{key: "TEXT", version: "BIGINT", source: "BYTEA"}
	case dialect.MySQL:
		return columnTypes{key: "VARCHAR(191)", version: "BIGINT", source: "LONGBLOB"}
	default:
		return columnTypes{key: "TEXT", version: "INTEGER", source: "BLOB"}
	}
}

// migrations returns the statements creating the store tables. Each one
// is idempotent.
func (s *Store) migrations() []string {
	t := typesOf(s.dialect)
	stmts := []string{
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (idx %s NOT NULL, id %s NOT NULL, version %s NOT NULL, source %s, PRIMARY KEY (idx, id))",
			s.documents, t.key, t.key, t.version, t.source,
		),
	}
	lookup := quote(s.dialect, s.prefix+"terms_lookup")
	if s.dialect == dialect.MySQL {
		// MySQL has no CREATE INDEX IF NOT EXISTS.
		return append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (idx %s NOT NULL, id %s NOT NULL, field %s NOT NULL, value %s NOT NULL, PRIMARY KEY (idx, id, field, value), INDEX %s (idx, field, value))",
			s.terms, t.key, t.key, t.key, t.key, lookup,
		))
	}
	return append(stmts,
		fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (idx %s NOT NULL, id %s NOT NULL, field %s NOT NULL, value %s NOT NULL, PRIMARY KEY (idx, id, field, value))",
			s.terms, t.key, t.key, t.key, t.key,
		),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (idx, field, value)", lookup, s.terms),
	)
}

// Migrate creates the store tables if they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dialect/sql: migrate: %w", err)
		}
	}
	s.logger.DebugContext(ctx, "document tables ready", "dialect", s.dialect, "documents", s.documents)
	return nil
}
