package propagate

import (
	"fmt"
	"reflect"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
)

// setScalar writes an authored scalar value. On a union field the value
// replaces the field's own values; copy destinations are not writable.
func (r *run) setScalar(key epicsearch.Key, f *graph.Field, v any) error {
	if len(f.CopiesIn(r.label)) > 0 {
		return epicsearch.NewValidationError(f.String(), fmt.Errorf("%s is copied from another entity", f))
	}
	x, err := r.entity(key)
	if err != nil {
		return err
	}
	old, _ := x.Field(f.Name)
	if len(f.UnionsIn(r.label)) > 0 {
		setOwn(x, f, v)
		return r.syncUnion(x, f, old, true)
	}
	if reflect.DeepEqual(old, v) {
		return nil
	}
	x.SetField(f.Name, v)
	if err := r.dirty(x); err != nil {
		return err
	}
	return r.fieldChanged(x, f, old)
}

// fieldChanged propagates a change of field f on x whose previous value was
// old: union paths ending in f get the value delta, copies of f are
// recomputed on the entities they reach, and joins embedding f are
// rewritten.
func (r *run) fieldChanged(x *epicsearch.Entity, f *graph.Field, old any) error {
	plan, err := r.unionLeaf(x, f, valueSet(f, old), values(x, f))
	if err != nil {
		return err
	}
	if err := r.applyPlan(plan); err != nil {
		return err
	}
	if f.IsRelationship() {
		return nil
	}
	for _, d := range r.reg.CopySources(r.label, f) {
		reached, err := r.ends(x, d.Path.Hops)
		if err != nil {
			return err
		}
		for _, w := range reached {
			if err := r.recomputeCopy(w.e, d.Path.Leaf); err != nil {
				return err
			}
		}
	}
	return r.joinField(x, f)
}
