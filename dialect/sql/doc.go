// Package sql provides a document store over database/sql.
//
// Documents live in two tables: one row per document holding its version
// and encoded source, and one row per searchable term. The store runs on
// SQLite (modernc.org/sqlite), PostgreSQL (github.com/lib/pq) and MySQL
// (github.com/go-sql-driver/mysql):
//
//	store, err := sql.Open(ctx, dialect.SQLite, "file:epic.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// Tables are created on open unless WithSkipMigration is given. Every write
// runs in its own transaction, so a failed document in a Bulk call never
// rolls back its neighbours.
package sql
