// Package graph compiles a schema declaration into an immutable registry of
// entity types and precomputed dependency indices.
//
// # Registry Structure
//
// The Registry holds every entity type. A Type is a named set of fields, and
// a Field is either a scalar or a relationship:
//
//	type Field struct {
//	    Name     string
//	    Kind     FieldKind   // Scalar or Relationship
//	    DataType field.Type  // scalars
//	    Target   *Type       // relationships
//	    Inverse  *Field      // relationships
//	}
//
// # Dependencies
//
// Every declared union, copy and join path is resolved into a Dependency
// whose Path holds the relationship fields it crosses (Hops) and the field it
// ends in (Leaf). Each hop is registered in one of three indices keyed by
// (kind, context, type, field):
//
//   - StartingFrom: the first hop of a path.
//   - Through: an interior hop.
//   - EndingAt: the last hop of a path.
//
// Union and join paths are also registered on their leaf field in the
// Inverted index, together with the reverse relation path back to the
// declaring entity. A change of a leaf field finds its dependents there
// without scanning the schema.
//
// # Validation
//
// Compile reports the first inconsistency as an *epicsearch.ConfigError and
// never returns a partially resolved registry:
//
//	reg, err := graph.Compile(decl)
//	if err != nil {
//	    log.Fatal(err)
//	}
package graph
