package propagate

import (
	"cmp"
	"slices"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
)

// chain is one instance of a walked path: the entities reached after the
// start, in order.
type chain []*epicsearch.Entity

// end returns the last entity of the chain, or start for an empty chain.
func (c chain) end(start *epicsearch.Entity) *epicsearch.Entity {
	if len(c) == 0 {
		return start
	}
	return c[len(c)-1]
}

// walk follows rels from start through the live graph and returns every
// path instance. Each level is prefetched with one multi-get per type.
// A referenced entity missing from the store is a LookupError.
func (r *run) walk(start *epicsearch.Entity, rels []*graph.Field) ([]chain, error) {
	chains := []chain{nil}
	for _, rel := range rels {
		var keys []epicsearch.Key
		for _, c := range chains {
			for _, id := range c.end(start).RefIDs(rel.Name) {
				keys = append(keys, epicsearch.Key{Type: rel.Target.Name, ID: id})
			}
		}
		if len(keys) == 0 {
			return nil, nil
		}
		if err := r.s.Prefetch(r.ctx, keys); err != nil {
			return nil, err
		}
		next := make([]chain, 0, len(keys))
		for _, c := range chains {
			for _, id := range c.end(start).RefIDs(rel.Name) {
				e, err := r.entity(epicsearch.Key{Type: rel.Target.Name, ID: id})
				if err != nil {
					return nil, err
				}
				next = append(next, append(slices.Clip(c), e))
			}
		}
		chains = next
	}
	return chains, nil
}

// weighted is an entity reached by n path instances.
type weighted struct {
	e *epicsearch.Entity
	n int
}

// ends walks rels from start and counts the path instances reaching each
// entity. The result is ordered by key.
func (r *run) ends(start *epicsearch.Entity, rels []*graph.Field) ([]weighted, error) {
	chains, err := r.walk(start, rels)
	if err != nil {
		return nil, err
	}
	counts := make(map[*epicsearch.Entity]int)
	for _, c := range chains {
		counts[c.end(start)]++
	}
	out := make([]weighted, 0, len(counts))
	for e, n := range counts {
		out = append(out, weighted{e: e, n: n})
	}
	slices.SortFunc(out, func(a, b weighted) int {
		return cmp.Or(cmp.Compare(a.e.Type, b.e.Type), cmp.Compare(a.e.ID, b.e.ID))
	})
	return out, nil
}

// values returns the comparison set of a field's current value: referenced
// ids for relationships, canonical forms for scalars.
func values(e *epicsearch.Entity, f *graph.Field) map[string]struct{} {
	if f.IsRelationship() {
		return idSet(e.RefIDs(f.Name))
	}
	v, _ := e.Field(f.Name)
	return epicsearch.CanonicalSet(v)
}

// current returns the value of a field in the form fieldChanged expects
// as the old value.
func current(e *epicsearch.Entity, f *graph.Field) any {
	if f.IsRelationship() {
		return e.RefIDs(f.Name)
	}
	v, _ := e.Field(f.Name)
	return v
}

// valueSet returns the comparison set of a value captured by current.
func valueSet(f *graph.Field, v any) map[string]struct{} {
	if f.IsRelationship() {
		ids, _ := v.([]string)
		return idSet(ids)
	}
	return epicsearch.CanonicalSet(v)
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// leafCounts walks rels from start and counts, per value of leaf, the path
// instances reaching an entity holding it.
func (r *run) leafCounts(start *epicsearch.Entity, rels []*graph.Field, leaf *graph.Field) (map[string]int, error) {
	reached, err := r.ends(start, rels)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, w := range reached {
		for v := range values(w.e, leaf) {
			counts[v] += w.n
		}
	}
	return counts, nil
}

// diff returns +1 for values only in after and -1 for values only in before.
func diff(before, after map[string]struct{}) map[string]int {
	d := make(map[string]int)
	for v := range after {
		if _, ok := before[v]; !ok {
			d[v] = 1
		}
	}
	for v := range before {
		if _, ok := after[v]; !ok {
			d[v] = -1
		}
	}
	return d
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if _, ok := b[v]; !ok {
			return false
		}
	}
	return true
}

// scale multiplies every count of d by n.
func scale(d map[string]int, n int) map[string]int {
	out := make(map[string]int, len(d))
	for v, c := range d {
		out[v] = c * n
	}
	return out
}

// embedded returns the document embedding the last entity of path inside
// origin, following the relationships of hops. Missing references and
// embedded bodies are created on the way.
func embedded(origin *epicsearch.Entity, hops []*graph.Field, path []string) *epicsearch.Doc {
	doc := &origin.Doc
	for i, rel := range hops {
		ref := doc.AddRef(rel.Name, &epicsearch.Ref{ID: path[i]})
		if ref.Embed == nil {
			ref.Embed = &epicsearch.Doc{}
		}
		doc = ref.Embed
	}
	return doc
}

// origins walks back from start and returns, for every path instance, the
// origin entity and the ids leading from it forward to start.
func (r *run) origins(start *epicsearch.Entity, back []*graph.Field) ([]*epicsearch.Entity, [][]string, error) {
	chains, err := r.walk(start, back)
	if err != nil {
		return nil, nil, err
	}
	slices.SortFunc(chains, func(a, b chain) int {
		ea, eb := a.end(start), b.end(start)
		return cmp.Compare(ea.ID, eb.ID)
	})
	origins := make([]*epicsearch.Entity, len(chains))
	paths := make([][]string, len(chains))
	for i, c := range chains {
		origins[i] = c.end(start)
		if len(c) == 0 {
			continue
		}
		// c holds x[k-1] .. x[0]; the forward path from x[0] is x[1] .. x[k-1], start.
		ids := make([]string, 0, len(c))
		for j := len(c) - 2; j >= 0; j-- {
			ids = append(ids, c[j].ID)
		}
		paths[i] = append(ids, start.ID)
	}
	return origins, paths, nil
}
