package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/language"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/schema"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/schema/edge"
)

// Compile resolves a declaration into a Registry. Any inconsistency is
// reported as an *epicsearch.ConfigError and no registry is returned.
func Compile(decl *schema.Declaration) (*Registry, error) {
	if decl == nil {
		return nil, epicsearch.NewConfigError("", "", "nil declaration")
	}
	r := &Registry{
		byName:       make(map[string]*Type),
		byIndex:      make(map[string]*Type),
		startingFrom: make(map[indexKey][]Registration),
		through:      make(map[indexKey][]Registration),
		endingAt:     make(map[indexKey][]Registration),
		inverted:     make(map[indexKey][]Inversion),
		copySources:  make(map[indexKey][]*Dependency),
		joins:        make(map[joinKey][]*JoinNode),
	}
	c := &compiler{reg: r}
	steps := []func(*schema.Declaration) error{
		c.settings,
		c.types,
		c.edges,
		c.resolve,
		c.dependencies,
		c.checkHops,
		c.checkCycles,
	}
	for _, step := range steps {
		if err := step(decl); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(decl *schema.Declaration) *Registry {
	r, err := Compile(decl)
	if err != nil {
		panic(err)
	}
	return r
}

type compiler struct {
	reg *Registry
}

func (c *compiler) settings(decl *schema.Declaration) error {
	s := decl.Settings.WithDefaults()
	for _, l := range s.Languages {
		tag, err := language.Parse(l)
		if err != nil {
			return &epicsearch.ConfigError{Message: fmt.Sprintf("unsupported language %q", l), Cause: err}
		}
		if !slices.Contains(c.reg.languages, tag) {
			c.reg.languages = append(c.reg.languages, tag)
		}
	}
	s.Languages = nil
	for _, t := range c.reg.languages {
		s.Languages = append(s.Languages, t.String())
	}
	if !slices.Contains(s.PathTypes, s.IndexContext) {
		return epicsearch.NewConfigError("", "", fmt.Sprintf("index context %q is not a declared path type", s.IndexContext))
	}
	c.reg.settings = s
	return nil
}

func (c *compiler) types(decl *schema.Declaration) error {
	for _, e := range decl.Entities {
		if e == nil || e.Name == "" {
			return epicsearch.NewConfigError("", "", "entity without a name")
		}
		if _, ok := c.reg.byName[e.Name]; ok {
			return epicsearch.NewConfigError(e.Name, "", "duplicate entity type")
		}
		t := &Type{
			Name:    e.Name,
			Index:   inflect.Pluralize(strings.ToLower(e.Name)),
			Comment: e.Comment,
			fields:  make(map[string]*Field),
		}
		if o, ok := c.reg.byIndex[t.Index]; ok {
			return epicsearch.NewConfigError(e.Name, "", fmt.Sprintf("store index %q already used by type %s", t.Index, o.Name))
		}
		for _, fd := range e.Fields {
			if fd.Err != nil {
				return &epicsearch.ConfigError{Entity: e.Name, Field: fd.Name, Cause: fd.Err}
			}
			if !fd.Type.Valid() {
				return epicsearch.NewConfigError(e.Name, fd.Name, "invalid field type")
			}
			f := &Field{
				Name:         fd.Name,
				Owner:        t,
				Kind:         Scalar,
				Comment:      fd.Comment,
				DataType:     fd.Type,
				MultiLingual: fd.MultiLingual,
			}
			if err := t.add(f); err != nil {
				return err
			}
		}
		c.reg.types = append(c.reg.types, t)
		c.reg.byName[t.Name] = t
		c.reg.byIndex[t.Index] = t
	}
	return nil
}

func (c *compiler) edges(decl *schema.Declaration) error {
	for _, e := range decl.Entities {
		t := c.reg.byName[e.Name]
		for _, ed := range e.Edges {
			if err := c.addEdge(t, ed); err != nil {
				return err
			}
		}
	}
	for _, rel := range decl.Relations {
		left, right := rel.Edges()
		lt, ok := c.reg.byName[rel.Left]
		if !ok {
			return epicsearch.NewConfigError(rel.Left, rel.Name, "relation declared on unknown type")
		}
		rt, ok := c.reg.byName[rel.Right]
		if !ok {
			return epicsearch.NewConfigError(rel.Left, rel.Name, fmt.Sprintf("relation references unknown type %q", rel.Right))
		}
		if err := c.addEdge(lt, left); err != nil {
			return err
		}
		if err := c.addEdge(rt, right); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) addEdge(t *Type, ed *edge.Descriptor) error {
	if ed.Err != nil {
		return &epicsearch.ConfigError{Entity: t.Name, Field: ed.Name, Cause: ed.Err}
	}
	if ed.Inverse == "" {
		return epicsearch.NewConfigError(t.Name, ed.Name, "relationship without an inverse name")
	}
	f := &Field{
		Name:        ed.Name,
		Owner:       t,
		Kind:        Relationship,
		Comment:     ed.Comment,
		Cardinality: Many,
		targetName:  ed.Type,
		inverseName: ed.Inverse,
	}
	if ed.Unique {
		f.Cardinality = One
	}
	return t.add(f)
}

// add appends f to the type. Redeclaring a field with the same shape is
// allowed and ignored.
func (t *Type) add(f *Field) error {
	if o, ok := t.fields[f.Name]; ok {
		if o.sameShape(f) {
			return nil
		}
		return epicsearch.NewConfigError(t.Name, f.Name, fmt.Sprintf("conflicting declarations (%s and %s)", o.Kind, f.Kind))
	}
	t.Fields = append(t.Fields, f)
	t.fields[f.Name] = f
	return nil
}

func (c *compiler) resolve(*schema.Declaration) error {
	for _, t := range c.reg.types {
		for _, f := range t.Relationships() {
			target, ok := c.reg.byName[f.targetName]
			if !ok {
				return epicsearch.NewConfigError(t.Name, f.Name, fmt.Sprintf("unknown target type %q", f.targetName))
			}
			f.Target = target
		}
	}
	for _, t := range c.reg.types {
		for _, f := range t.Relationships() {
			inv, ok := f.Target.Field(f.inverseName)
			if !ok {
				return epicsearch.NewConfigError(t.Name, f.Name, fmt.Sprintf("inverse %q is absent on type %s", f.inverseName, f.Target.Name))
			}
			if !inv.IsRelationship() || inv.Target != t || inv.inverseName != f.Name {
				return epicsearch.NewConfigError(t.Name, f.Name, fmt.Sprintf("inverse %s does not point back", inv))
			}
			f.Inverse = inv
		}
	}
	return nil
}

func (c *compiler) dependencies(decl *schema.Declaration) error {
	for _, e := range decl.Entities {
		t := c.reg.byName[e.Name]
		for _, dd := range e.Deps {
			if err := c.dependency(t, dd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *compiler) dependency(t *Type, dd *dep.Descriptor) error {
	if dd.Err != nil {
		return &epicsearch.ConfigError{Entity: t.Name, Field: dd.Field, Cause: dd.Err}
	}
	ctx := dd.Context
	if ctx == "" {
		ctx = c.reg.settings.IndexContext
	}
	if !slices.Contains(c.reg.settings.PathTypes, ctx) {
		return epicsearch.NewConfigError(t.Name, dd.Field, fmt.Sprintf("unknown context %q", ctx))
	}
	f, ok := t.Field(dd.Field)
	if !ok {
		return epicsearch.NewConfigError(t.Name, dd.Field, fmt.Sprintf("%s declared on unknown field", dd.Kind))
	}
	for _, raw := range dd.Paths {
		p, err := resolvePath(t, dd.Field, raw, dd.Kind)
		if err != nil {
			return err
		}
		d := &Dependency{Kind: dd.Kind, Context: ctx, Owner: t, Field: f, Path: p, Raw: raw}
		if err := checkDependency(d); err != nil {
			return err
		}
		c.reg.register(d)
	}
	return nil
}

// resolvePath resolves a dotted path declared on type t. Every relationship
// segment is a hop, except that a union or copy path ending in a
// relationship has it as its leaf.
func resolvePath(t *Type, name, raw string, k dep.Kind) (Path, error) {
	var (
		p    Path
		cur  = t
		segs = dep.Segments(raw)
		seen = make(map[*Field]bool)
	)
	for i, seg := range segs {
		last := i == len(segs)-1
		f, ok := cur.Field(seg)
		if !ok {
			return Path{}, epicsearch.NewPathError(t.Name, name, raw, fmt.Sprintf("unknown field %q on type %s", seg, cur.Name))
		}
		if !f.IsRelationship() {
			if !last {
				return Path{}, epicsearch.NewPathError(t.Name, name, raw, fmt.Sprintf("segment after scalar field %s", f))
			}
			p.Leaf = f
			break
		}
		if seen[f] || seen[f.Inverse] {
			return Path{}, epicsearch.NewPathError(t.Name, name, raw, fmt.Sprintf("relationship %s is crossed twice", f))
		}
		if last && k != dep.KindJoin {
			p.Leaf = f
			break
		}
		seen[f], seen[f.Inverse] = true, true
		p.Hops = append(p.Hops, f)
		cur = f.Target
	}
	if len(p.Hops) == 0 {
		return Path{}, epicsearch.NewPathError(t.Name, name, raw, "path does not cross a relationship")
	}
	return p, nil
}

func checkDependency(d *Dependency) error {
	f, leaf := d.Field, d.Path.Leaf
	fail := func(format string, args ...any) error {
		return epicsearch.NewPathError(d.Owner.Name, f.Name, d.Raw, fmt.Sprintf(format, args...))
	}
	switch d.Kind {
	case dep.KindUnion:
		switch {
		case leaf.MultiLingual || f.MultiLingual:
			return fail("union over multilingual field")
		case leaf.Kind != f.Kind:
			return fail("union of %s values into %s field", leaf.Kind, f.Kind)
		case f.IsRelationship() && f.Target != leaf.Target:
			return fail("union of %s references into field targeting %s", leaf.Target, f.Target)
		case f.IsRelationship() && f.Unique():
			return fail("union destination must hold many references")
		case f.IsRelationship() && f.Inverse.Unique():
			return fail("union destination's inverse %s must hold many references", f.Inverse)
		case !f.IsRelationship() && !f.DataType.Compatible(leaf.DataType):
			return fail("union of %s values into %s field", leaf.DataType, f.DataType)
		case len(f.Copies) > 0:
			return fail("field is already a copy destination")
		}
	case dep.KindCopy:
		switch {
		case f.IsRelationship():
			return fail("copy source must be a scalar field")
		case leaf.IsRelationship():
			return fail("copy destination must be a scalar field")
		case !leaf.DataType.Compatible(f.DataType) || leaf.MultiLingual != f.MultiLingual:
			return fail("copy of %s value into incompatible field %s", f.DataType, leaf)
		case len(leaf.Unions) > 0:
			return fail("destination %s is already a union", leaf)
		}
	case dep.KindJoin:
		if !f.IsRelationship() || d.Path.Hops[0] != f {
			return fail("join path must start with relationship %s", f.Name)
		}
	default:
		return fail("invalid dependency kind")
	}
	return nil
}

// checkHops rejects paths crossing a union-derived relationship, whose
// references are not edges of the graph.
func (c *compiler) checkHops(*schema.Declaration) error {
	for _, d := range c.reg.deps {
		for _, h := range d.Path.Hops {
			if len(h.Unions) > 0 || len(h.Inverse.Unions) > 0 {
				return epicsearch.NewPathError(d.Owner.Name, d.Field.Name, d.Raw, fmt.Sprintf("crosses derived relationship %s", h))
			}
		}
	}
	return nil
}

// checkCycles rejects a derived field whose value depends on itself through
// a chain of unions and copies.
func (c *compiler) checkCycles(*schema.Declaration) error {
	next := make(map[*Field][]*Field)
	for _, d := range c.reg.deps {
		switch d.Kind {
		case dep.KindUnion:
			next[d.Path.Leaf] = append(next[d.Path.Leaf], d.Field)
		case dep.KindCopy:
			next[d.Field] = append(next[d.Field], d.Path.Leaf)
		}
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*Field]int)
	var stack []*Field
	var visit func(f *Field) error
	visit = func(f *Field) error {
		switch state[f] {
		case visiting:
			i := slices.Index(stack, f)
			names := make([]string, 0, len(stack)-i+1)
			for _, s := range stack[i:] {
				names = append(names, s.String())
			}
			names = append(names, f.String())
			return epicsearch.NewConfigError(f.Owner.Name, f.Name, "derivation cycle: "+strings.Join(names, " -> "))
		case done:
			return nil
		}
		state[f] = visiting
		stack = append(stack, f)
		for _, n := range next[f] {
			if err := visit(n); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[f] = done
		return nil
	}
	for _, t := range c.reg.types {
		for _, f := range t.Fields {
			if err := visit(f); err != nil {
				return err
			}
		}
	}
	return nil
}
