package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/liberaldart/epicsearch-sub000/dialect"
)

// maxInList bounds the number of ids bound in one IN list.
const maxInList = 500

// Store is a dialect.Store over a SQL database.
type Store struct {
	db        *sql.DB
	dialect   string
	prefix    string
	documents string
	terms     string
	migrate   bool
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTablePrefix prefixes the store table names.
func WithTablePrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithSkipMigration disables table creation on open.
func WithSkipMigration() Option {
	return func(s *Store) {
		s.migrate = false
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open opens a database and returns a store over it.
func Open(ctx context.Context, driverName, source string, opts ...Option) (*Store, error) {
	db, err := openDB(driverName, source)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, driverName, opts...)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return s, nil
}

// New returns a store over an open database.
func New(ctx context.Context, db *sql.DB, driverName string, opts ...Option) (*Store, error) {
	s := &Store{db: db, dialect: Dialect(driverName), migrate: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.documents = quote(s.dialect, s.prefix+DocumentsTable)
	s.terms = quote(s.dialect, s.prefix+TermsTable)
	if s.migrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store dialect.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements dialect.Store.
func (s *Store) Get(ctx context.Context, index, id string) (*dialect.Document, error) {
	docs, err := s.MGet(ctx, index, []string{id})
	if err != nil {
		return nil, err
	}
	return docs[0], nil
}

// MGet implements dialect.Store.
func (s *Store) MGet(ctx context.Context, index string, ids []string) ([]*dialect.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []*dialect.Document
	for _, chunk := range dialect.Chunk(slices.Compact(slices.Sorted(slices.Values(ids))), maxInList) {
		b := newBuilder(s.dialect).
			WriteString("SELECT id, version, source FROM ").WriteString(s.documents).
			WriteString(" WHERE idx = ").Arg(index).
			WriteString(" AND id IN (").Args(anys(chunk)...).WriteString(")")
		docs, err := s.queryDocuments(ctx, Conn{s.db, s.dialect}, index, b)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: mget %s: %w", index, err)
		}
		found = append(found, docs...)
	}
	if err := s.loadTerms(ctx, index, found); err != nil {
		return nil, fmt.Errorf("dialect/sql: mget %s: %w", index, err)
	}
	return dialect.AlignDocuments(index, ids, found), nil
}

// Search implements dialect.Store.
func (s *Store) Search(ctx context.Context, q dialect.Query) ([]*dialect.Document, error) {
	b := newBuilder(s.dialect).
		WriteString("SELECT d.id, d.version, d.source FROM ").WriteString(s.documents).
		WriteString(" d WHERE d.idx = ").Arg(q.Index)
	for _, f := range q.Fields() {
		b.WriteString(" AND EXISTS (SELECT 1 FROM ").WriteString(s.terms).
			WriteString(" t WHERE t.idx = d.idx AND t.id = d.id AND t.field = ").Arg(f).
			WriteString(" AND t.value = ").Arg(q.Terms[f]).
			WriteString(")")
	}
	b.WriteString(" ORDER BY d.id")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ").Arg(q.Limit)
	}
	docs, err := s.queryDocuments(ctx, Conn{s.db, s.dialect}, q.Index, b)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: search %s: %w", q.Index, err)
	}
	if err := s.loadTerms(ctx, q.Index, docs); err != nil {
		return nil, fmt.Errorf("dialect/sql: search %s: %w", q.Index, err)
	}
	return docs, nil
}

func (s *Store) queryDocuments(ctx context.Context, c Conn, index string, b *builder) ([]*dialect.Document, error) {
	query, args := b.Query()
	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*dialect.Document
	for rows.Next() {
		d := &dialect.Document{Index: index, Found: true}
		if err := rows.Scan(&d.ID, &d.Version, &d.Source); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// loadTerms fills the terms of found documents.
func (s *Store) loadTerms(ctx context.Context, index string, docs []*dialect.Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[string]*dialect.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	for _, chunk := range dialect.Chunk(slices.Sorted(maps.Keys(byID)), maxInList) {
		query, args := newBuilder(s.dialect).
			WriteString("SELECT id, field, value FROM ").WriteString(s.terms).
			WriteString(" WHERE idx = ").Arg(index).
			WriteString(" AND id IN (").Args(anys(chunk)...).WriteString(")").
			WriteString(" ORDER BY id, field, value").
			Query()
		if err := s.scanTerms(ctx, query, args, byID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) scanTerms(ctx context.Context, query string, args []any, byID map[string]*dialect.Document) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id, field, value string
		if err := rows.Scan(&id, &field, &value); err != nil {
			return err
		}
		d := byID[id]
		if d == nil {
			continue
		}
		if d.Terms == nil {
			d.Terms = make(map[string][]string)
		}
		d.Terms[field] = append(d.Terms[field], value)
	}
	return rows.Err()
}

// Put implements dialect.Store.
func (s *Store) Put(ctx context.Context, op dialect.WriteOp) (dialect.WriteResult, error) {
	res := s.put(ctx, op)
	return res, res.Err
}

// Bulk implements dialect.Store. Each document is written in its own
// transaction.
func (s *Store) Bulk(ctx context.Context, ops []dialect.WriteOp) ([]dialect.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]dialect.WriteResult, len(ops))
	for i, op := range ops {
		results[i] = s.put(ctx, op)
	}
	return results, nil
}

func (s *Store) put(ctx context.Context, op dialect.WriteOp) (res dialect.WriteResult) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	res = dialect.WriteResult{Index: op.Index, ID: op.ID}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		res.Err = fmt.Errorf("dialect/sql: put %s/%s: begin: %w", op.Index, op.ID, err)
		return res
	}
	res.Version, res.Created, err = s.write(ctx, Conn{tx, s.dialect}, op)
	if err != nil {
		res.Err = fmt.Errorf("dialect/sql: put %s/%s: %w", op.Index, op.ID, errors.Join(err, tx.Rollback()))
		return res
	}
	if err := tx.Commit(); err != nil {
		res.Err = fmt.Errorf("dialect/sql: put %s/%s: commit: %w", op.Index, op.ID, err)
	}
	return res
}

// write upserts a document row and replaces its terms.
func (s *Store) write(ctx context.Context, c Conn, op dialect.WriteOp) (version int64, created bool, err error) {
	version, found, err := s.currentVersion(ctx, c, op.Index, op.ID)
	if err != nil {
		return 0, false, err
	}
	version++
	var b *builder
	if found {
		b = newBuilder(s.dialect).
			WriteString("UPDATE ").WriteString(s.documents).
			WriteString(" SET version = ").Arg(version).
			WriteString(", source = ").Arg(op.Source).
			WriteString(" WHERE idx = ").Arg(op.Index).
			WriteString(" AND id = ").Arg(op.ID)
	} else {
		b = newBuilder(s.dialect).
			WriteString("INSERT INTO ").WriteString(s.documents).
			WriteString(" (idx, id, version, source) VALUES (").
			Args(op.Index, op.ID, version, op.Source).
			WriteString(")")
	}
	query, args := b.Query()
	if _, err := c.ExecContext(ctx, query, args...); err != nil {
		if IsUniqueConstraintError(err) {
			return 0, false, fmt.Errorf("concurrent create: %w", err)
		}
		return 0, false, err
	}
	if err := s.replaceTerms(ctx, c, op); err != nil {
		return 0, false, err
	}
	return version, !found, nil
}

func (s *Store) currentVersion(ctx context.Context, c Conn, index, id string) (int64, bool, error) {
	b := newBuilder(s.dialect).
		WriteString("SELECT version FROM ").WriteString(s.documents).
		WriteString(" WHERE idx = ").Arg(index).
		WriteString(" AND id = ").Arg(id)
	if s.dialect != dialect.SQLite {
		b.WriteString(" FOR UPDATE")
	}
	query, args := b.Query()
	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var version int64
	if err := rows.Scan(&version); err != nil {
		return 0, false, err
	}
	return version, true, rows.Err()
}

func (s *Store) replaceTerms(ctx context.Context, c Conn, op dialect.WriteOp) error {
	query, args := newBuilder(s.dialect).
		WriteString("DELETE FROM ").WriteString(s.terms).
		WriteString(" WHERE idx = ").Arg(op.Index).
		WriteString(" AND id = ").Arg(op.ID).
		Query()
	if _, err := c.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	type term struct{ field, value string }
	var terms []term
	for _, f := range slices.Sorted(maps.Keys(op.Terms)) {
		for _, v := range slices.Compact(slices.Sorted(slices.Values(op.Terms[f]))) {
			terms = append(terms, term{f, v})
		}
	}
	for _, chunk := range dialect.Chunk(terms, maxInList) {
		b := newBuilder(s.dialect).
			WriteString("INSERT INTO ").WriteString(s.terms).
			WriteString(" (idx, id, field, value) VALUES ")
		for i, t := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(").Args(op.Index, op.ID, t.field, t.value).WriteString(")")
		}
		query, args := b.Query()
		if _, err := c.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

var _ dialect.Store = (*Store)(nil)
