package graph

import (
	"slices"

	"golang.org/x/text/language"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/schema"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
)

// indexKey addresses a node of the dependency indices.
type indexKey struct {
	kind dep.Kind
	ctx  string
	typ  string
	name string
}

func keyOf(k dep.Kind, ctx string, f *Field) indexKey {
	return indexKey{kind: k, ctx: ctx, typ: f.Owner.Name, name: f.Name}
}

type joinKey struct {
	typ string
	ctx string
}

// Registry is the compiled, immutable schema. It is safe for concurrent use.
type Registry struct {
	settings  schema.Settings
	languages []language.Tag
	types     []*Type
	byName    map[string]*Type
	byIndex   map[string]*Type
	deps      []*Dependency

	startingFrom map[indexKey][]Registration
	through      map[indexKey][]Registration
	endingAt     map[indexKey][]Registration
	inverted     map[indexKey][]Inversion
	copySources  map[indexKey][]*Dependency
	joins        map[joinKey][]*JoinNode
}

// Settings returns the compiled settings, defaults applied.
func (r *Registry) Settings() schema.Settings {
	return r.settings
}

// IndexContext returns the context maintained on every graph edit.
func (r *Registry) IndexContext() string {
	return r.settings.IndexContext
}

// Languages returns the supported languages in canonical form.
func (r *Registry) Languages() []string {
	out := make([]string, len(r.languages))
	for i, t := range r.languages {
		out[i] = t.String()
	}
	return out
}

// SupportsLanguage reports if lang is one of the supported languages.
func (r *Registry) SupportsLanguage(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	return slices.Contains(r.languages, tag)
}

// Types returns all types in declaration order.
func (r *Registry) Types() []*Type {
	return r.types
}

// Type returns the type named name.
func (r *Registry) Type(name string) (*Type, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// TypeOfIndex returns the type stored in the named store index.
func (r *Registry) TypeOfIndex(index string) (*Type, bool) {
	t, ok := r.byIndex[index]
	return t, ok
}

// Field returns the field of a type, or a LookupError if either is absent.
func (r *Registry) Field(typ, name string) (*Field, error) {
	t, ok := r.byName[typ]
	if !ok {
		return nil, epicsearch.NewFieldLookupError(typ, name)
	}
	f, ok := t.Field(name)
	if !ok {
		return nil, epicsearch.NewFieldLookupError(typ, name)
	}
	return f, nil
}

// Dependencies returns the dependencies of a kind scoped to ctx. A zero
// kind matches every kind.
func (r *Registry) Dependencies(k dep.Kind, ctx string) []*Dependency {
	var out []*Dependency
	for _, d := range r.deps {
		if (k == dep.KindInvalid || d.Kind == k) && d.Context == ctx {
			out = append(out, d)
		}
	}
	return out
}

// StartingFrom returns the registrations of paths whose first hop is rel.
func (r *Registry) StartingFrom(k dep.Kind, ctx string, rel *Field) []Registration {
	return r.startingFrom[keyOf(k, ctx, rel)]
}

// Through returns the registrations of paths crossing rel as an interior hop.
func (r *Registry) Through(k dep.Kind, ctx string, rel *Field) []Registration {
	return r.through[keyOf(k, ctx, rel)]
}

// EndingAt returns the registrations of paths whose last hop is rel.
func (r *Registry) EndingAt(k dep.Kind, ctx string, rel *Field) []Registration {
	return r.endingAt[keyOf(k, ctx, rel)]
}

// Hops returns every registration of rel as a hop, first hops first.
func (r *Registry) Hops(k dep.Kind, ctx string, rel *Field) []Registration {
	key := keyOf(k, ctx, rel)
	var out []Registration
	out = append(out, r.startingFrom[key]...)
	out = append(out, r.through[key]...)
	for _, reg := range r.endingAt[key] {
		// Single hop paths are already listed as starting here.
		if len(reg.Dep.Path.Hops) > 1 {
			out = append(out, reg)
		}
	}
	return out
}

// Inverted returns the union or join paths ending in the leaf field f.
func (r *Registry) Inverted(k dep.Kind, ctx string, f *Field) []Inversion {
	return r.inverted[keyOf(k, ctx, f)]
}

// CopySources returns the copy dependencies reading from f.
func (r *Registry) CopySources(ctx string, f *Field) []*Dependency {
	return r.copySources[keyOf(dep.KindCopy, ctx, f)]
}

// Joins returns the join tree of a type in ctx.
func (r *Registry) Joins(typ, ctx string) []*JoinNode {
	return r.joins[joinKey{typ: typ, ctx: ctx}]
}

// JoinNode returns the node of the type's join tree reached by chain.
func (r *Registry) JoinNode(typ, ctx string, chain []*Field) *JoinNode {
	return Lookup(r.Joins(typ, ctx), chain)
}

func (r *Registry) register(d *Dependency) {
	r.deps = append(r.deps, d)
	hops := d.Path.Hops
	for i, h := range hops {
		reg := Registration{Dep: d, Hop: i}
		key := keyOf(d.Kind, d.Context, h)
		switch {
		case i == 0:
			r.startingFrom[key] = append(r.startingFrom[key], reg)
		case i < len(hops)-1:
			r.through[key] = append(r.through[key], reg)
		}
		if i == len(hops)-1 {
			r.endingAt[key] = append(r.endingAt[key], reg)
		}
	}
	switch d.Kind {
	case dep.KindUnion:
		d.Field.Unions = append(d.Field.Unions, d)
		r.invert(d)
	case dep.KindCopy:
		d.Path.Leaf.Copies = append(d.Path.Leaf.Copies, d)
		key := keyOf(dep.KindCopy, d.Context, d.Field)
		r.copySources[key] = append(r.copySources[key], d)
	case dep.KindJoin:
		r.invert(d)
		r.addJoin(d)
	}
}

func (r *Registry) invert(d *Dependency) {
	if d.Path.Leaf == nil {
		return
	}
	key := keyOf(d.Kind, d.Context, d.Path.Leaf)
	r.inverted[key] = append(r.inverted[key], Inversion{Dep: d, Reverse: d.Path.Reverse()})
}

func (r *Registry) addJoin(d *Dependency) {
	key := joinKey{typ: d.Owner.Name, ctx: d.Context}
	roots := r.joins[key]
	var node *JoinNode
	for i, h := range d.Path.Hops {
		var next *JoinNode
		if i == 0 {
			for _, n := range roots {
				if n.Relation == h {
					next = n
					break
				}
			}
			if next == nil {
				next = &JoinNode{Relation: h}
				roots = append(roots, next)
			}
		} else {
			next = node.Child(h.Name)
			if next == nil {
				next = &JoinNode{Relation: h}
				node.Children = append(node.Children, next)
			}
		}
		node = next
	}
	if leaf := d.Path.Leaf; leaf != nil && !node.HasField(leaf.Name) {
		node.Fields = append(node.Fields, leaf)
	}
	r.joins[key] = roots
}
