package dialect

import (
	"context"
	"maps"
	"slices"
)

// Dialect names of the SQL store.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Store is the document store collaborator.
type Store interface {
	// Get fetches one document. A missing document has Found false.
	Get(ctx context.Context, index, id string) (*Document, error)
	// MGet fetches documents by id. The result is aligned with ids.
	MGet(ctx context.Context, index string, ids []string) ([]*Document, error)
	// Put writes one document. An empty id is assigned by the store.
	Put(ctx context.Context, op WriteOp) (WriteResult, error)
	// Bulk writes many documents. The result is aligned with ops and
	// per-document failures are reported in WriteResult.Err.
	Bulk(ctx context.Context, ops []WriteOp) ([]WriteResult, error)
	// Search returns the documents of an index matching every term of q,
	// ordered by id.
	Search(ctx context.Context, q Query) ([]*Document, error)
	// Close releases the store.
	Close() error
}

// Document is a stored document.
type Document struct {
	Index   string
	ID      string
	Version int64
	Source  []byte
	Terms   map[string][]string
	Found   bool
}

// WriteOp writes the source and terms of one document.
type WriteOp struct {
	Index  string
	ID     string
	Source []byte
	Terms  map[string][]string
}

// WriteResult reports the outcome of one write.
type WriteResult struct {
	Index   string
	ID      string
	Version int64
	Created bool
	Err     error
}

// Query selects the documents of an index holding, for every field of
// Terms, the given value among its terms. A zero Limit means no limit.
type Query struct {
	Index string
	Terms map[string]string
	Limit int
}

// Matches reports if a document's terms satisfy the query.
func (q Query) Matches(terms map[string][]string) bool {
	for f, v := range q.Terms {
		if !slices.Contains(terms[f], v) {
			return false
		}
	}
	return true
}

// Fields returns the query fields in sorted order.
func (q Query) Fields() []string {
	return slices.Sorted(maps.Keys(q.Terms))
}
