package propagate

import (
	"maps"
	"slices"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
)

// contribution is a pending change of the reference counts of one union
// field on one entity.
type contribution struct {
	e     *epicsearch.Entity
	f     *graph.Field
	delta map[string]int
}

// unionEdge returns the count changes caused by the edge src -rel-> dst on
// every union path crossing rel. sign is +1 for an added edge and -1 for a
// removed one.
func (r *run) unionEdge(src *epicsearch.Entity, rel *graph.Field, dst *epicsearch.Entity, sign int) ([]contribution, error) {
	var plan []contribution
	for _, reg := range r.reg.Hops(dep.KindUnion, r.label, rel) {
		d := reg.Dep
		leaves, err := r.leafCounts(dst, d.Path.After(reg.Hop), d.Path.Leaf)
		if err != nil {
			return nil, err
		}
		if len(leaves) == 0 {
			continue
		}
		origins, err := r.ends(src, d.Path.Back(reg.Hop))
		if err != nil {
			return nil, err
		}
		r.logger.DebugContext(r.ctx, "union edge fan-out",
			"dependency", d.String(),
			"position", reg.Position().String(),
			"origins", len(origins),
			"values", len(leaves),
		)
		for _, o := range origins {
			plan = append(plan, contribution{e: o.e, f: d.Field, delta: scale(leaves, sign*o.n)})
		}
	}
	return plan, nil
}

// unionLeaf returns the count changes caused by the value of leaf on x
// moving from before to after, on every union path ending in leaf.
func (r *run) unionLeaf(x *epicsearch.Entity, leaf *graph.Field, before, after map[string]struct{}) ([]contribution, error) {
	d := diff(before, after)
	if len(d) == 0 {
		return nil, nil
	}
	var plan []contribution
	for _, inv := range r.reg.Inverted(dep.KindUnion, r.label, leaf) {
		origins, err := r.ends(x, inv.Reverse)
		if err != nil {
			return nil, err
		}
		for _, o := range origins {
			plan = append(plan, contribution{e: o.e, f: inv.Dep.Field, delta: scale(d, o.n)})
		}
	}
	return plan, nil
}

func (r *run) applyPlan(plan []contribution) error {
	for _, c := range plan {
		if err := r.updateUnion(c.e, c.f, c.delta); err != nil {
			return err
		}
	}
	return nil
}

// updateUnion adds delta to the counts of a union field and recomputes its
// value.
func (r *run) updateUnion(o *epicsearch.Entity, f *graph.Field, delta map[string]int) error {
	old := current(o, f)
	before := maps.Clone(o.Meta[f.Name])
	if o.ApplyCounts(f.Name, delta) {
		r.logger.WarnContext(r.ctx, "union count clamped at zero", "key", o.Key.String(), "field", f.Name)
	}
	return r.syncUnion(o, f, old, !maps.Equal(before, o.Meta[f.Name]))
}

// syncUnion sets a union field to its own values joined with every value of
// positive count, and cascades the change. The entity is marked dirty when
// the value changed or when touched reports a change of its counts.
func (r *run) syncUnion(o *epicsearch.Entity, f *graph.Field, old any, touched bool) error {
	var mirrors []mirror
	if f.IsRelationship() {
		var err error
		if mirrors, err = r.syncUnionRefs(o, f); err != nil {
			return err
		}
	} else if err := syncUnionValues(o, f); err != nil {
		return err
	}
	changed := !sameSet(valueSet(f, old), values(o, f))
	if !changed && !touched {
		return nil
	}
	if err := r.dirty(o); err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := r.fieldChanged(o, f, old); err != nil {
		return err
	}
	for _, m := range mirrors {
		if err := r.fieldChanged(m.e, f.Inverse, m.old); err != nil {
			return err
		}
	}
	return nil
}

func syncUnionValues(o *epicsearch.Entity, f *graph.Field) error {
	set := make(map[string]struct{})
	for _, v := range o.Own[f.Name] {
		set[v] = struct{}{}
	}
	for _, v := range o.Counted(f.Name) {
		set[v] = struct{}{}
	}
	if len(set) == 0 {
		o.UnsetField(f.Name)
		return nil
	}
	vs, err := f.Parse(slices.Sorted(maps.Keys(set)))
	if err != nil {
		return err
	}
	if old, ok := o.Field(f.Name); ok && sameSet(epicsearch.CanonicalSet(old), set) {
		return nil
	}
	o.SetField(f.Name, vs)
	return nil
}

// mirror is a target whose inverse references were rewritten along with a
// union relationship.
type mirror struct {
	e   *epicsearch.Entity
	old any
}

// syncUnionRefs adds a reference for every counted id and drops the
// references that are neither own nor counted. Each change is mirrored on
// the target's inverse field.
func (r *run) syncUnionRefs(o *epicsearch.Entity, f *graph.Field) ([]mirror, error) {
	counted := idSet(o.Counted(f.Name))
	var add, drop []string
	for _, id := range slices.Sorted(maps.Keys(counted)) {
		if o.Ref(f.Name, id) == nil {
			add = append(add, id)
		}
	}
	for _, ref := range o.Refs(f.Name) {
		if _, ok := counted[ref.ID]; !ok && !ref.Own {
			drop = append(drop, ref.ID)
		}
	}
	if len(add)+len(drop) == 0 {
		return nil, nil
	}
	var keys []epicsearch.Key
	for _, id := range slices.Concat(add, drop) {
		keys = append(keys, epicsearch.Key{Type: f.Target.Name, ID: id})
	}
	if err := r.s.Prefetch(r.ctx, keys); err != nil {
		return nil, err
	}
	mirrors := make([]mirror, 0, len(keys))
	for _, key := range keys {
		t, err := r.entity(key)
		if err != nil {
			return nil, err
		}
		m := mirror{e: t, old: current(t, f.Inverse)}
		if slices.Contains(add, key.ID) {
			o.AddRef(f.Name, &epicsearch.Ref{ID: key.ID})
			t.AddRef(f.Inverse.Name, &epicsearch.Ref{ID: o.ID})
		} else {
			o.RemoveRef(f.Name, key.ID)
			t.RemoveRef(f.Inverse.Name, o.ID)
		}
		if err := r.dirty(t); err != nil {
			return nil, err
		}
		mirrors = append(mirrors, m)
	}
	return mirrors, nil
}

// setOwn replaces the own values of a scalar union field.
func setOwn(o *epicsearch.Entity, f *graph.Field, v any) {
	own := slices.Sorted(maps.Keys(epicsearch.CanonicalSet(v)))
	if len(own) == 0 {
		delete(o.Own, f.Name)
		if len(o.Own) == 0 {
			o.Own = nil
		}
		return
	}
	if o.Own == nil {
		o.Own = make(map[string][]string)
	}
	o.Own[f.Name] = own
}

// rebuildUnion recomputes the counts of a union field from every path
// declared for it.
func (r *run) rebuildUnion(o *epicsearch.Entity, f *graph.Field) error {
	counts := make(map[string]int)
	for _, d := range f.UnionsIn(r.label) {
		leaves, err := r.leafCounts(o, d.Path.Hops, d.Path.Leaf)
		if err != nil {
			return err
		}
		for v, n := range leaves {
			counts[v] += n
		}
	}
	old := current(o, f)
	before := o.Meta[f.Name]
	o.SetCounts(f.Name, counts)
	touched := !maps.Equal(before, o.Meta[f.Name])
	return r.syncUnion(o, f, old, touched)
}
