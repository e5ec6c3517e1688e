package graph

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"github.com/liberaldart/epicsearch-sub000"
)

// Normalize checks that v fits field f and returns the value to store.
// Multilingual values are keyed by canonical supported language tags, and
// relationship values are returned as a list of ids. A nil value unsets the
// field and is always valid.
func (r *Registry) Normalize(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	fail := func(err error) error {
		return epicsearch.NewValidationError(f.String(), err)
	}
	if f.IsRelationship() {
		ids, err := RefIDs(v)
		if err != nil {
			return nil, fail(err)
		}
		if f.Unique() && len(ids) > 1 {
			return nil, fail(fmt.Errorf("%d references for a cardinality one relationship", len(ids)))
		}
		return ids, nil
	}
	if f.MultiLingual {
		m, ok := v.(map[string]any)
		if !ok {
			if ms, isStrings := v.(map[string]string); isStrings {
				m = make(map[string]any, len(ms))
				for k, s := range ms {
					m[k] = s
				}
			} else {
				return nil, fail(fmt.Errorf("expected value keyed by language, got %T", v))
			}
		}
		out := make(map[string]any, len(m))
		for lang, lv := range m {
			tag, err := language.Parse(lang)
			if err != nil || !r.SupportsLanguage(tag.String()) {
				return nil, fail(fmt.Errorf("unsupported language %q", lang))
			}
			if err := checkAll(f, lv); err != nil {
				return nil, fail(err)
			}
			out[tag.String()] = lv
		}
		return out, nil
	}
	if err := checkAll(f, v); err != nil {
		return nil, fail(err)
	}
	return v, nil
}

func checkAll(f *Field, v any) error {
	for _, e := range epicsearch.Values(v) {
		if err := f.DataType.Check(e); err != nil {
			return err
		}
	}
	return nil
}

// RefIDs returns the referenced ids of a relationship value given as an id,
// a list of ids or a list of references.
func RefIDs(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case *epicsearch.Ref:
		return []string{v.ID}, nil
	case []*epicsearch.Ref:
		ids := make([]string, len(v))
		for i, r := range v {
			ids[i] = r.ID
		}
		return ids, nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected reference id, got %T", e)
			}
			ids = append(ids, s)
		}
		return ids, nil
	default:
		return nil, errors.New("expected reference ids")
	}
}

// Parse converts canonical values of a scalar field back into typed values.
func (f *Field) Parse(canonical []string) ([]any, error) {
	out := make([]any, 0, len(canonical))
	for _, s := range canonical {
		v, err := f.DataType.Parse(s)
		if err != nil {
			return nil, epicsearch.NewValidationError(f.String(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
