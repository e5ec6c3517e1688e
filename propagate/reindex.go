package propagate

import (
	"context"
	"errors"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/session"
)

var errUnknownType = errors.New("no such type in schema")

// Reindex recomputes every derived field of one entity from the live graph:
// union counts are rebuilt from walks, copies are read again and the joins
// of the engine's context are embedded afresh. Changes cascade like any
// other edit.
func (e *Engine) Reindex(ctx context.Context, s *session.Session, key epicsearch.Key) error {
	r := e.begin(ctx, s)
	if err := r.reindex(key); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "entity reindexed", "key", key.String(), "updated", len(r.updated))
	return nil
}

func (r *run) reindex(key epicsearch.Key) error {
	t, ok := r.reg.Type(key.Type)
	if !ok {
		return epicsearch.NewLookupError(key.Type, key.ID, errUnknownType)
	}
	x, err := r.entity(key)
	if err != nil {
		return err
	}
	for _, f := range t.Fields {
		if len(f.UnionsIn(r.label)) > 0 {
			if err := r.rebuildUnion(x, f); err != nil {
				return err
			}
		}
	}
	for _, f := range t.Fields {
		if len(f.CopiesIn(r.label)) > 0 {
			if err := r.recomputeCopy(x, f); err != nil {
				return err
			}
		}
	}
	changed, err := r.rebuildJoins(x)
	if err != nil || !changed {
		return err
	}
	return r.dirty(x)
}

// Republish reindexes the entity at key and the subgraph around it,
// breadth first up to depth relationship hops, and marks every visited
// entity dirty so that the next flush rewrites it. A walk never steps back
// across the relationship it arrived by. A depth of zero or less selects
// the engine default. It returns the number of entities visited.
func (e *Engine) Republish(ctx context.Context, s *session.Session, key epicsearch.Key, depth int) (int, error) {
	if depth <= 0 {
		depth = e.depth
	}
	r := e.begin(ctx, s)
	type visit struct {
		key   epicsearch.Key
		via   *graph.Field
		level int
	}
	var (
		queue = []visit{{key: key}}
		seen  = map[epicsearch.Key]bool{key: true}
		n     int
	)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if err := r.reindex(v.key); err != nil {
			return n, err
		}
		x, err := r.entity(v.key)
		if err != nil {
			return n, err
		}
		if err := r.dirty(x); err != nil {
			return n, err
		}
		n++
		if v.level >= depth {
			continue
		}
		t, _ := r.reg.Type(v.key.Type)
		var next []epicsearch.Key
		for _, rel := range t.Relationships() {
			if v.via != nil && rel == v.via.Inverse {
				continue
			}
			for _, id := range x.RefIDs(rel.Name) {
				k := epicsearch.Key{Type: rel.Target.Name, ID: id}
				if seen[k] {
					continue
				}
				seen[k] = true
				next = append(next, k)
				queue = append(queue, visit{key: k, via: rel, level: v.level + 1})
			}
		}
		if err := s.Prefetch(ctx, next); err != nil {
			return n, err
		}
	}
	r.logger.DebugContext(ctx, "subgraph republished", "key", key.String(), "depth", depth, "visited", n, "updated", len(r.updated))
	return n, nil
}
