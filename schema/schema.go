package schema

import (
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/schema/edge"
	"github.com/liberaldart/epicsearch-sub000/schema/field"
)

// Default settings.
const (
	DefaultIndexContext   = "index"
	DefaultRepublishDepth = 3
)

// DefaultPathTypes are the context labels recognized when none are declared.
var DefaultPathTypes = []string{"index", "read", "search"}

type (
	// Field is the interface implemented by the field builders.
	Field interface {
		Descriptor() *field.Descriptor
	}

	// Edge is the interface implemented by the edge builders.
	Edge interface {
		Descriptor() *edge.Descriptor
	}

	// Dep is the interface implemented by the dependency builders.
	Dep interface {
		Descriptor() *dep.Descriptor
	}
)

// Settings are the global settings of a declaration.
type Settings struct {
	// Languages supported by multilingual fields, as BCP 47 tags.
	Languages []string
	// PathTypes are the recognized dependency context labels.
	PathTypes []string
	// IndexContext is the context maintained on every graph edit.
	IndexContext string
	// RepublishDepth bounds subgraph republishing.
	RepublishDepth int
}

// WithDefaults returns a copy of s with unset values defaulted.
func (s Settings) WithDefaults() Settings {
	if len(s.PathTypes) == 0 {
		s.PathTypes = append([]string(nil), DefaultPathTypes...)
	}
	if s.IndexContext == "" {
		s.IndexContext = DefaultIndexContext
	}
	if s.RepublishDepth <= 0 {
		s.RepublishDepth = DefaultRepublishDepth
	}
	return s
}

// Entity declares one entity type.
type Entity struct {
	Name    string
	Comment string
	Fields  []*field.Descriptor
	Edges   []*edge.Descriptor
	Deps    []*dep.Descriptor
}

// NewEntity returns an empty entity declaration.
func NewEntity(name string) *Entity {
	return &Entity{Name: name}
}

// AddFields appends scalar fields to the entity.
func (e *Entity) AddFields(fields ...Field) *Entity {
	for _, f := range fields {
		e.Fields = append(e.Fields, f.Descriptor())
	}
	return e
}

// AddEdges appends relationship fields to the entity.
func (e *Entity) AddEdges(edges ...Edge) *Entity {
	for _, ed := range edges {
		e.Edges = append(e.Edges, ed.Descriptor())
	}
	return e
}

// AddDeps appends dependencies to the entity.
func (e *Entity) AddDeps(deps ...Dep) *Entity {
	for _, d := range deps {
		e.Deps = append(e.Deps, d.Descriptor())
	}
	return e
}

// Relation declares both sides of a relationship at once: Left.Name points
// to Right, and Right.Inverse points back to Left.
type Relation struct {
	Left          string
	Name          string
	Right         string
	Inverse       string
	Unique        bool // Left.Name holds at most one reference.
	InverseUnique bool // Right.Inverse holds at most one reference.
}

// Edges returns the relationship field declarations of both sides.
func (r Relation) Edges() (left, right *edge.Descriptor) {
	lb := edge.To(r.Name, r.Right).Inverse(r.Inverse)
	if r.Unique {
		lb.Unique()
	}
	rb := edge.To(r.Inverse, r.Left).Inverse(r.Name)
	if r.InverseUnique {
		rb.Unique()
	}
	return lb.Descriptor(), rb.Descriptor()
}

// Declaration is the full, uncompiled schema.
type Declaration struct {
	Settings  Settings
	Entities  []*Entity
	Relations []Relation
}

// New returns a declaration holding the given settings and entities.
func New(settings Settings, entities ...*Entity) *Declaration {
	return &Declaration{Settings: settings, Entities: entities}
}

// Relate appends relation pairs to the declaration.
func (d *Declaration) Relate(rels ...Relation) *Declaration {
	d.Relations = append(d.Relations, rels...)
	return d
}

// Entity returns the entity declaration named name, or nil.
func (d *Declaration) Entity(name string) *Entity {
	for _, e := range d.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}
