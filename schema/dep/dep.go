// Package dep provides builders for declaring derived fields.
//
// A dependency names a field of the declaring entity and one or more paths
// through the graph. A path is a dot separated sequence of relationship
// field names, optionally ending in a scalar field name:
//
//	// event.primaryLanguages is the union of the languages of every
//	// speaker of every session of the event.
//	dep.UnionFrom("primaryLanguages", "sessions.speakers.primaryLanguages")
//
//	// event.title is copied into session.eventTitle of every session.
//	dep.CopyTo("title", "sessions.eventTitle")
//
//	// event embeds the title of each of its sessions, and the name of
//	// each speaker of those sessions.
//	dep.Join("sessions", "title", "speakers.name")
//
// Every dependency is scoped to a context label such as "index". When no
// context is given the declaration's index context applies.
package dep

import (
	"errors"
	"fmt"
	"strings"
)

// Kind of a dependency.
type Kind uint8

// Dependency kinds.
const (
	KindInvalid Kind = iota
	KindUnion
	KindCopy
	KindJoin
)

// String returns the declaration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnion:
		return "union"
	case KindCopy:
		return "copy"
	case KindJoin:
		return "join"
	default:
		return "invalid"
	}
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "union", "unionfrom":
		return KindUnion, nil
	case "copy", "copyto":
		return KindCopy, nil
	case "join", "joinfrom":
		return KindJoin, nil
	default:
		return KindInvalid, fmt.Errorf("unknown dependency kind %q", s)
	}
}

// A Descriptor for a dependency.
type Descriptor struct {
	Kind    Kind
	Field   string   // field of the declaring entity.
	Paths   []string // dot separated paths.
	Context string   // context label, empty for the default.
	Err     error
}

// Builder for dependencies.
type Builder struct {
	desc *Descriptor
}

// UnionFrom declares field as the union of the values found at the end of
// each path. The field is a scalar field when the paths end in a scalar and
// a relationship field when they end in a relationship.
func UnionFrom(field string, paths ...string) *Builder {
	b := newBuilder(KindUnion, field, paths)
	if len(paths) == 0 {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("union %q: missing path", field))
	}
	return b
}

// CopyTo declares that the value of field is copied into the scalar field
// the path ends in, on every entity the path reaches.
func CopyTo(field, path string) *Builder {
	return newBuilder(KindCopy, field, []string{path})
}

// Join declares that relation embeds the referenced entities. Each subpath
// is relative to the referenced entity. Without subpaths only the reference
// itself is embedded.
func Join(relation string, subpaths ...string) *Builder {
	paths := make([]string, 0, len(subpaths))
	for _, sp := range subpaths {
		paths = append(paths, relation+"."+sp)
	}
	if len(paths) == 0 {
		paths = append(paths, relation)
	}
	return newBuilder(KindJoin, relation, paths)
}

func newBuilder(k Kind, field string, paths []string) *Builder {
	b := &Builder{desc: &Descriptor{Kind: k, Field: field, Paths: paths}}
	if field == "" {
		b.desc.Err = fmt.Errorf("%s: missing field name", k)
	}
	for _, p := range paths {
		if err := checkPath(p); err != nil {
			b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("%s %q: %w", k, field, err))
		}
	}
	return b
}

func checkPath(p string) error {
	if p == "" {
		return errors.New("empty path")
	}
	for _, seg := range strings.Split(p, ".") {
		if seg == "" {
			return fmt.Errorf("empty segment in path %q", p)
		}
	}
	return nil
}

// Context scopes the dependency to a context label.
func (b *Builder) Context(ctx string) *Builder {
	b.desc.Context = ctx
	return b
}

// Descriptor implements the schema.Dep interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}

// Segments splits a path into its segments.
func Segments(path string) []string {
	return strings.Split(path, ".")
}
