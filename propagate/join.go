package propagate

import (
	"context"
	"reflect"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/session"
)

// materialize builds the body embedded for e under a join node: the node's
// fields, and the references of every nested join with their own bodies.
func (r *run) materialize(e *epicsearch.Entity, node *graph.JoinNode) (*epicsearch.Doc, error) {
	doc := &epicsearch.Doc{}
	for _, f := range node.Fields {
		if v, ok := e.Field(f.Name); ok {
			doc.SetField(f.Name, epicsearch.CloneValue(v))
		}
	}
	for _, c := range node.Children {
		refs := e.Refs(c.Relation.Name)
		if err := r.prefetchRefs(c.Relation, refs); err != nil {
			return nil, err
		}
		for _, ref := range refs {
			t, err := r.entity(epicsearch.Key{Type: c.Relation.Target.Name, ID: ref.ID})
			if err != nil {
				return nil, err
			}
			embed, err := r.materialize(t, c)
			if err != nil {
				return nil, err
			}
			doc.AddRef(c.Relation.Name, &epicsearch.Ref{ID: ref.ID, Own: ref.Own, Embed: embed})
		}
	}
	epicsearch.PurgeTransport(doc)
	return doc, nil
}

func (r *run) prefetchRefs(rel *graph.Field, refs []*epicsearch.Ref) error {
	if len(refs) == 0 {
		return nil
	}
	keys := make([]epicsearch.Key, len(refs))
	for i, ref := range refs {
		keys[i] = epicsearch.Key{Type: rel.Target.Name, ID: ref.ID}
	}
	return r.s.Prefetch(r.ctx, keys)
}

// joinEdge embeds dst, or drops its embedded copy, in every entity joining
// rel through a path crossing the edge src -rel-> dst.
func (r *run) joinEdge(src *epicsearch.Entity, rel *graph.Field, dst *epicsearch.Entity, op epicsearch.Op) error {
	seen := make(map[string]bool)
	for _, reg := range r.reg.Hops(dep.KindJoin, r.label, rel) {
		d := reg.Dep
		prefix := d.Path.Hops[:reg.Hop+1]
		id := d.Owner.Name + ":" + graph.Path{Hops: prefix}.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		var embed *epicsearch.Doc
		if op == epicsearch.OpAdd {
			var err error
			if embed, err = r.materialize(dst, r.reg.JoinNode(d.Owner.Name, r.label, prefix)); err != nil {
				return err
			}
		}
		origins, paths, err := r.origins(src, d.Path.Back(reg.Hop))
		if err != nil {
			return err
		}
		for i, o := range origins {
			parent := embedded(o, d.Path.Before(reg.Hop), paths[i])
			if op == epicsearch.OpAdd {
				ref := parent.AddRef(rel.Name, &epicsearch.Ref{ID: dst.ID})
				if live := src.Ref(rel.Name, dst.ID); live != nil {
					ref.Own = live.Own
				}
				ref.Embed = embed.Clone()
			} else {
				parent.RemoveRef(rel.Name, dst.ID)
			}
			if err := r.dirty(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// joinField rewrites the embedded copies of field f of x in every entity
// joining it.
func (r *run) joinField(x *epicsearch.Entity, f *graph.Field) error {
	v, has := x.Field(f.Name)
	for _, inv := range r.reg.Inverted(dep.KindJoin, r.label, f) {
		origins, paths, err := r.origins(x, inv.Reverse)
		if err != nil {
			return err
		}
		for i, o := range origins {
			doc := embedded(o, inv.Dep.Path.Hops, paths[i])
			cur, _ := doc.Field(f.Name)
			if reflect.DeepEqual(cur, v) {
				continue
			}
			if has {
				doc.SetField(f.Name, epicsearch.CloneValue(v))
			} else {
				doc.UnsetField(f.Name)
			}
			if err := r.dirty(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// rebuildJoins replaces every embedded body of x joined in the engine's
// context and reports whether any of them changed.
func (r *run) rebuildJoins(x *epicsearch.Entity) (bool, error) {
	changed := false
	for _, node := range r.reg.Joins(x.Type, r.label) {
		refs := x.Refs(node.Relation.Name)
		if err := r.prefetchRefs(node.Relation, refs); err != nil {
			return false, err
		}
		for _, ref := range refs {
			t, err := r.entity(epicsearch.Key{Type: node.Relation.Target.Name, ID: ref.ID})
			if err != nil {
				return false, err
			}
			embed, err := r.materialize(t, node)
			if err != nil {
				return false, err
			}
			if !reflect.DeepEqual(ref.Embed, embed) {
				ref.Embed = embed
				changed = true
			}
		}
	}
	return changed, nil
}

// ResolveJoins returns a copy of entity whose references embed their
// targets as declared by the joins of the context label. An empty label
// selects the engine's context. References already carrying a body are kept
// unless force is set. Transport fields are purged from the result.
func (e *Engine) ResolveJoins(ctx context.Context, s *session.Session, entity *epicsearch.Entity, label string, force bool) (*epicsearch.Entity, error) {
	r := e.begin(ctx, s)
	if label != "" {
		r.label = label
	}
	out := entity.Clone()
	for _, node := range r.reg.Joins(out.Type, r.label) {
		var missing []*epicsearch.Ref
		for _, ref := range out.Refs(node.Relation.Name) {
			if ref.Embed == nil || force {
				missing = append(missing, ref)
			}
		}
		if err := r.prefetchRefs(node.Relation, missing); err != nil {
			return nil, err
		}
		for _, ref := range missing {
			t, err := r.entity(epicsearch.Key{Type: node.Relation.Target.Name, ID: ref.ID})
			if err != nil {
				return nil, err
			}
			if ref.Embed, err = r.materialize(t, node); err != nil {
				return nil, err
			}
		}
	}
	epicsearch.PurgeTransport(&out.Doc)
	return out, nil
}
