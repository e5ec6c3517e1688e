package propagate

import (
	"reflect"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
)

// copyEdge recomputes the copy destinations reached from dst after an edge
// on rel, pointing to dst, was added or removed.
func (r *run) copyEdge(dst *epicsearch.Entity, rel *graph.Field) error {
	for _, reg := range r.reg.Hops(dep.KindCopy, r.label, rel) {
		reached, err := r.ends(dst, reg.Dep.Path.After(reg.Hop))
		if err != nil {
			return err
		}
		for _, w := range reached {
			if err := r.recomputeCopy(w.e, reg.Dep.Path.Leaf); err != nil {
				return err
			}
		}
	}
	return nil
}

// recomputeCopy sets the copy destination f of t from its sources. Sources
// are tried in declaration order; among the entities reached by one source
// path the smallest id holding a value wins. Without any value the field is
// unset.
func (r *run) recomputeCopy(t *epicsearch.Entity, f *graph.Field) error {
	var value any
	for _, d := range f.CopiesIn(r.label) {
		origins, err := r.ends(t, d.Path.Reverse())
		if err != nil {
			return err
		}
		for _, o := range origins {
			if v, ok := o.e.Field(d.Field.Name); ok {
				value = v
				break
			}
		}
		if value != nil {
			break
		}
	}
	old, _ := t.Field(f.Name)
	if reflect.DeepEqual(old, value) {
		return nil
	}
	if value == nil {
		t.UnsetField(f.Name)
	} else {
		t.SetField(f.Name, epicsearch.CloneValue(value))
	}
	if err := r.dirty(t); err != nil {
		return err
	}
	return r.fieldChanged(t, f, old)
}
