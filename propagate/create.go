package propagate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/session"
)

var errNoLanguage = errors.New("no supported language to store a multilingual value")

// FindOrCreate returns the first entity of type typ matching every term.
// When none matches, a new entity is created holding the terms as its
// values, relationship terms being linked to the referenced id. The boolean
// reports whether the entity was created.
func (e *Engine) FindOrCreate(ctx context.Context, s *session.Session, typ string, terms map[string]string) (*epicsearch.Entity, bool, error) {
	found, err := s.Search(ctx, typ, terms, 1)
	if err != nil {
		return nil, false, err
	}
	if len(found) > 0 {
		return found[0], false, nil
	}
	type assignment struct {
		f *graph.Field
		v any
	}
	var plan []assignment
	for _, name := range slices.Sorted(maps.Keys(terms)) {
		f, err := e.reg.Field(typ, name)
		if err != nil {
			return nil, false, err
		}
		v, err := e.termValue(f, terms[name])
		if err != nil {
			return nil, false, err
		}
		plan = append(plan, assignment{f: f, v: v})
	}
	x, err := s.CreateEntity(typ, "")
	if err != nil {
		return nil, false, err
	}
	r := e.begin(ctx, s)
	for _, a := range plan {
		if a.f.IsRelationship() {
			err = r.link(x.Key, a.f, a.v.(string))
		} else {
			err = r.setScalar(x.Key, a.f, a.v)
		}
		if err != nil {
			return nil, false, err
		}
	}
	r.logger.DebugContext(ctx, "entity created on search miss", "key", x.Key.String(), "terms", len(terms), "updated", len(r.updated))
	return x, true, nil
}

// termValue converts a search term into the value stored in field f.
func (e *Engine) termValue(f *graph.Field, term string) (any, error) {
	if f.IsRelationship() {
		return term, nil
	}
	if len(f.CopiesIn(e.label)) > 0 {
		return nil, epicsearch.NewValidationError(f.String(), fmt.Errorf("%s is copied from another entity", f))
	}
	vs, err := f.Parse([]string{term})
	if err != nil {
		return nil, err
	}
	if !f.MultiLingual {
		return vs[0], nil
	}
	langs := e.reg.Languages()
	if len(langs) == 0 {
		return nil, epicsearch.NewValidationError(f.String(), errNoLanguage)
	}
	return map[string]any{langs[0]: vs[0]}, nil
}
