package graph

import (
	"github.com/liberaldart/epicsearch-sub000/schema/field"
)

type (
	// Type is an entity type of the registry.
	Type struct {
		// Name holds the type name.
		Name string
		// Index holds the name of the store index holding entities of the type.
		Index string
		// Comment of the declaration.
		Comment string
		// Fields holds scalar and relationship fields in declaration order.
		Fields []*Field
		fields map[string]*Field
	}

	// Field of an entity type. Exactly one of the scalar or the relationship
	// attribute sets is meaningful, as given by Kind.
	Field struct {
		// Name holds the field name.
		Name string
		// Owner is the type declaring the field.
		Owner *Type
		// Kind tells whether the field is a scalar or a relationship.
		Kind FieldKind
		// Comment of the declaration.
		Comment string

		// DataType of a scalar field.
		DataType field.Type
		// MultiLingual scalar values are keyed by language.
		MultiLingual bool

		// Target type of a relationship field.
		Target *Type
		// Cardinality of a relationship field.
		Cardinality Cardinality
		// Inverse is the field on Target pointing back.
		Inverse *Field

		// Unions holds the union dependencies whose destination is this field.
		Unions []*Dependency
		// Copies holds the copy dependencies that write into this field.
		Copies []*Dependency

		targetName  string
		inverseName string
	}
)

// FieldKind tells scalars and relationships apart.
type FieldKind uint8

// Field kinds.
const (
	Scalar FieldKind = iota + 1
	Relationship
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Relationship:
		return "relationship"
	default:
		return "invalid"
	}
}

// Cardinality of a relationship field.
type Cardinality uint8

// Cardinalities.
const (
	Many Cardinality = iota + 1
	One
)

// String returns the cardinality name.
func (c Cardinality) String() string {
	if c == One {
		return "one"
	}
	return "many"
}

// Field returns the field named name.
func (t *Type) Field(name string) (*Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Relationships returns the relationship fields of the type.
func (t *Type) Relationships() []*Field {
	var fs []*Field
	for _, f := range t.Fields {
		if f.IsRelationship() {
			fs = append(fs, f)
		}
	}
	return fs
}

// String returns the type name.
func (t *Type) String() string {
	return t.Name
}

// IsRelationship reports if the field is a relationship.
func (f *Field) IsRelationship() bool {
	return f.Kind == Relationship
}

// Unique reports if a relationship field holds at most one reference.
func (f *Field) Unique() bool {
	return f.Kind == Relationship && f.Cardinality == One
}

// String returns the "type.field" form of the field.
func (f *Field) String() string {
	return f.Owner.Name + "." + f.Name
}

// Derived reports if the field is the destination of a union or copy.
func (f *Field) Derived() bool {
	return len(f.Unions) > 0 || len(f.Copies) > 0
}

// UnionsIn returns the union dependencies of the field scoped to ctx.
func (f *Field) UnionsIn(ctx string) []*Dependency {
	return inContext(f.Unions, ctx)
}

// CopiesIn returns the copy dependencies writing into the field scoped to ctx.
func (f *Field) CopiesIn(ctx string) []*Dependency {
	return inContext(f.Copies, ctx)
}

func inContext(deps []*Dependency, ctx string) []*Dependency {
	var out []*Dependency
	for _, d := range deps {
		if d.Context == ctx {
			out = append(out, d)
		}
	}
	return out
}

// sameShape reports whether two declarations of a field agree.
func (f *Field) sameShape(o *Field) bool {
	if f.Kind != o.Kind {
		return false
	}
	if f.Kind == Scalar {
		return f.DataType == o.DataType && f.MultiLingual == o.MultiLingual
	}
	return f.targetName == o.targetName && f.Cardinality == o.Cardinality && f.inverseName == o.inverseName
}
