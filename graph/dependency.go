package graph

import (
	"fmt"
	"strings"

	"github.com/liberaldart/epicsearch-sub000/schema/dep"
)

type (
	// Dependency is a compiled union, copy or join declaration.
	Dependency struct {
		// Kind of the dependency.
		Kind dep.Kind
		// Context label the dependency is maintained in.
		Context string
		// Owner is the declaring type.
		Owner *Type
		// Field is the declared field of Owner: the union destination, the
		// copy source, or the join relationship.
		Field *Field
		// Path is the resolved path.
		Path Path
		// Raw holds the path as declared.
		Raw string
	}

	// Path is a resolved dependency path.
	Path struct {
		// Hops holds the relationship fields crossed, starting on the owner type.
		Hops []*Field
		// Leaf is the field the path ends in on the last hop's target type.
		// It is nil for join paths that end in a relationship.
		Leaf *Field
	}

	// Registration of a dependency on one of its hops.
	Registration struct {
		Dep *Dependency
		// Hop is the index of the registered relationship in Dep.Path.Hops.
		Hop int
	}

	// Inversion is the inverted index entry recorded on a leaf field.
	Inversion struct {
		Dep *Dependency
		// Reverse holds the inverse relationships leading from the leaf type
		// back to the owner type.
		Reverse []*Field
	}

	// JoinNode describes what is embedded below one joined relationship.
	JoinNode struct {
		// Relation is the joined relationship.
		Relation *Field
		// Fields are the scalar fields copied into each embedded document.
		Fields []*Field
		// Children are the nested joins of the referenced type.
		Children []*JoinNode
	}
)

// Position classifies where in a path a changed edge lies.
type Position uint8

// Edge positions.
const (
	// Direct: the path has a single hop, the changed edge.
	Direct Position = iota + 1
	// Forward: the changed edge is the first hop of a longer path.
	Forward
	// Backward: the changed edge is the last hop of a longer path.
	Backward
	// Through: the changed edge is an interior hop.
	Through
)

// String returns the position name.
func (p Position) String() string {
	switch p {
	case Direct:
		return "direct"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Through:
		return "through"
	default:
		return "invalid"
	}
}

// Position returns the position of the registered hop in its path.
func (r Registration) Position() Position {
	n := len(r.Dep.Path.Hops)
	switch {
	case n == 1:
		return Direct
	case r.Hop == 0:
		return Forward
	case r.Hop == n-1:
		return Backward
	default:
		return Through
	}
}

// String returns a readable form of the dependency for logs and errors.
func (d *Dependency) String() string {
	return fmt.Sprintf("%s %s (%s) [%s]", d.Kind, d.Field, d.Raw, d.Context)
}

// Len returns the number of hops.
func (p Path) Len() int {
	return len(p.Hops)
}

// Before returns the hops preceding hop i.
func (p Path) Before(i int) []*Field {
	return p.Hops[:i]
}

// After returns the hops following hop i.
func (p Path) After(i int) []*Field {
	return p.Hops[i+1:]
}

// Back returns the inverse relationships leading from the owner of hop i
// back to the path origin.
func (p Path) Back(i int) []*Field {
	back := make([]*Field, 0, i)
	for j := i - 1; j >= 0; j-- {
		back = append(back, p.Hops[j].Inverse)
	}
	return back
}

// Reverse returns the inverse relationships leading from the last hop's
// target back to the path origin.
func (p Path) Reverse() []*Field {
	return p.Back(len(p.Hops))
}

// Target returns the type the last hop points to.
func (p Path) Target() *Type {
	if len(p.Hops) == 0 {
		return nil
	}
	return p.Hops[len(p.Hops)-1].Target
}

// String returns the dotted form of the path.
func (p Path) String() string {
	segs := make([]string, 0, len(p.Hops)+1)
	for _, h := range p.Hops {
		segs = append(segs, h.Name)
	}
	if p.Leaf != nil {
		segs = append(segs, p.Leaf.Name)
	}
	return strings.Join(segs, ".")
}

// Child returns the nested join of the relationship named rel.
func (n *JoinNode) Child(rel string) *JoinNode {
	for _, c := range n.Children {
		if c.Relation.Name == rel {
			return c
		}
	}
	return nil
}

// HasField reports if the node copies the named field.
func (n *JoinNode) HasField(name string) bool {
	for _, f := range n.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Lookup returns the node reached by following the relationships of chain
// from the node list roots.
func Lookup(roots []*JoinNode, chain []*Field) *JoinNode {
	var cur *JoinNode
	for i, rel := range chain {
		var next *JoinNode
		if i == 0 {
			for _, r := range roots {
				if r.Relation == rel {
					next = r
					break
				}
			}
		} else {
			next = cur.Child(rel.Name)
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}
