package edge

import "errors"

// A Descriptor for a relationship field.
type Descriptor struct {
	Name    string // field name.
	Type    string // target entity type.
	Inverse string // name of the field on the target type pointing back.
	Unique  bool   // cardinality one.
	Comment string // edge comment.
	Err     error
}

// Builder for relationship fields.
type Builder struct {
	desc *Descriptor
}

// To returns a new builder for a relationship field named name that points
// to entities of type typ.
func To(name, typ string) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Type: typ}}
	switch {
	case name == "":
		b.desc.Err = errors.New("missing edge name")
	case typ == "":
		b.desc.Err = errors.New("missing edge target type")
	}
	return b
}

// Inverse sets the name of the field on the target type that points back.
func (b *Builder) Inverse(name string) *Builder {
	b.desc.Inverse = name
	return b
}

// Unique sets the cardinality of the relationship to one.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Comment sets the comment of the edge.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the schema.Edge interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
