// Package dialect defines the document store consumed by sessions.
//
// A store holds versioned documents grouped by index. Each entity type is
// stored in its own index. Documents carry an opaque source body and the
// searchable terms extracted from it:
//
//	type Store interface {
//	    Get(ctx context.Context, index, id string) (*Document, error)
//	    MGet(ctx context.Context, index string, ids []string) ([]*Document, error)
//	    Put(ctx context.Context, op WriteOp) (WriteResult, error)
//	    Bulk(ctx context.Context, ops []WriteOp) ([]WriteResult, error)
//	    Search(ctx context.Context, q Query) ([]*Document, error)
//	    Close() error
//	}
//
// A missing document is not an error: Get and MGet report it with
// Found set to false. Bulk never fails as a whole because of one document;
// per-document failures are reported in the matching WriteResult.
//
// # Implementations
//
//   - dialect/mem: in-memory store
//   - dialect/sql: SQL store over SQLite, PostgreSQL or MySQL
//
// # Statistics
//
// Any store can be wrapped to collect operation counts and report slow
// operations:
//
//	st := dialect.WithStats(store,
//	    dialect.WithSlowThreshold(200*time.Millisecond),
//	    dialect.WithSlowOpLog(logger),
//	)
//	fmt.Println(st.OpStats().Stats())
package dialect
