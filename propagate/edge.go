package propagate

import (
	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
)

// bearer returns the side of a union-derived relationship holding the
// reference counts, or nil for a plain relationship.
func (r *run) bearer(rel *graph.Field) *graph.Field {
	switch {
	case len(rel.UnionsIn(r.label)) > 0:
		return rel
	case len(rel.Inverse.UnionsIn(r.label)) > 0:
		return rel.Inverse
	default:
		return nil
	}
}

// link adds the authored edge from -rel-> toID. A cardinality-one side
// first drops the reference it held.
func (r *run) link(from epicsearch.Key, rel *graph.Field, toID string) error {
	a, err := r.entity(from)
	if err != nil {
		return err
	}
	b, err := r.entity(epicsearch.Key{Type: rel.Target.Name, ID: toID})
	if err != nil {
		return err
	}
	if rel.Unique() {
		for _, old := range a.RefIDs(rel.Name) {
			if old != toID {
				if err := r.unlink(from, rel, old); err != nil {
					return err
				}
			}
		}
	}
	if rel.Inverse.Unique() {
		for _, old := range b.RefIDs(rel.Inverse.Name) {
			if old != from.ID {
				if err := r.unlink(b.Key, rel.Inverse, old); err != nil {
					return err
				}
			}
		}
	}
	ra, rb := a.Ref(rel.Name, toID), b.Ref(rel.Inverse.Name, from.ID)
	if ra != nil && rb != nil && ra.Own && rb.Own {
		return nil
	}
	existed := ra != nil
	oldA, oldB := current(a, rel), current(b, rel.Inverse)
	a.AddRef(rel.Name, &epicsearch.Ref{ID: toID}).Own = true
	b.AddRef(rel.Inverse.Name, &epicsearch.Ref{ID: from.ID}).Own = true
	if err := r.dirty(a); err != nil {
		return err
	}
	if err := r.dirty(b); err != nil {
		return err
	}
	if existed {
		return nil
	}
	return r.edgeChanged(a, rel, b, epicsearch.OpAdd, oldA, oldB)
}

// unlink removes the authored edge from -rel-> toID. On a union-derived
// relationship only the authorship is dropped while contributions remain.
func (r *run) unlink(from epicsearch.Key, rel *graph.Field, toID string) error {
	a, err := r.entity(from)
	if err != nil {
		return err
	}
	ra := a.Ref(rel.Name, toID)
	if ra == nil {
		return nil
	}
	b, err := r.entity(epicsearch.Key{Type: rel.Target.Name, ID: toID})
	if err != nil {
		return err
	}
	oldA, oldB := current(a, rel), current(b, rel.Inverse)
	keep := false
	if bf := r.bearer(rel); bf != nil {
		if bf == rel {
			keep = a.Count(rel.Name, toID) > 0
		} else {
			keep = b.Count(bf.Name, from.ID) > 0
		}
	}
	if keep {
		ra.Own = false
		if rb := b.Ref(rel.Inverse.Name, from.ID); rb != nil {
			rb.Own = false
		}
	} else {
		a.RemoveRef(rel.Name, toID)
		b.RemoveRef(rel.Inverse.Name, from.ID)
	}
	if err := r.dirty(a); err != nil {
		return err
	}
	if err := r.dirty(b); err != nil {
		return err
	}
	if keep {
		return nil
	}
	return r.edgeChanged(a, rel, b, epicsearch.OpRemove, oldA, oldB)
}

// edgeChanged propagates an edge already applied to both sides. oldA and
// oldB hold the relationship values before the change.
//
// Union deltas of every affected path are collected before any of them is
// applied, so that cascades triggered by the first delta see the values
// the other deltas were computed from.
func (r *run) edgeChanged(a *epicsearch.Entity, rel *graph.Field, b *epicsearch.Entity, op epicsearch.Op, oldA, oldB any) error {
	sign := 1
	if op == epicsearch.OpRemove {
		sign = -1
	}
	var plan []contribution
	for _, side := range []struct {
		src, dst *epicsearch.Entity
		rel      *graph.Field
	}{{a, b, rel}, {b, a, rel.Inverse}} {
		p, err := r.unionEdge(side.src, side.rel, side.dst, sign)
		if err != nil {
			return err
		}
		plan = append(plan, p...)
	}
	for _, side := range []struct {
		e   *epicsearch.Entity
		rel *graph.Field
		old any
	}{{a, rel, oldA}, {b, rel.Inverse, oldB}} {
		p, err := r.unionLeaf(side.e, side.rel, valueSet(side.rel, side.old), values(side.e, side.rel))
		if err != nil {
			return err
		}
		plan = append(plan, p...)
	}
	if err := r.applyPlan(plan); err != nil {
		return err
	}
	for _, side := range []struct {
		src, dst *epicsearch.Entity
		rel      *graph.Field
	}{{a, b, rel}, {b, a, rel.Inverse}} {
		if err := r.copyEdge(side.dst, side.rel); err != nil {
			return err
		}
		if err := r.joinEdge(side.src, side.rel, side.dst, op); err != nil {
			return err
		}
	}
	return nil
}
