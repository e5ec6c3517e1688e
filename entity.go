package epicsearch

import (
	"maps"
	"slices"
	"sort"
)

// Key identifies an entity by its type and id.
type Key struct {
	Type string
	ID   string
}

// String returns the "type/id" form of the key.
func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Type == "" && k.ID == ""
}

// Doc is the body of an entity or of an embedded (joined) copy.
//
// Fields holds scalar values. Multilingual values are a map keyed by language.
// Relations holds relationship values in declaration order; cardinality-one
// relations hold at most one reference.
type Doc struct {
	Fields    map[string]any    `msgpack:"fields,omitempty"`
	Relations map[string][]*Ref `msgpack:"relations,omitempty"`
}

// Ref is a reference to another entity held by a relationship field.
type Ref struct {
	ID string `msgpack:"id"`
	// Own marks a directly authored reference, exempt from automatic removal.
	Own bool `msgpack:"own,omitempty"`
	// Embed holds the joined copy of the referenced entity, if materialized.
	Embed *Doc `msgpack:"embed,omitempty"`
}

// Entity is a typed, identified document with its derived-field bookkeeping.
type Entity struct {
	Key
	Doc
	// Meta maps a union field to its per-value reference counts.
	Meta map[string]map[string]int
	// Own maps a scalar union field to its own (authored) canonical values.
	Own map[string][]string
	// Version is the store version the entity was loaded at. Zero for new entities.
	Version int64
}

// NewEntity returns an empty entity for the given key.
func NewEntity(key Key) *Entity {
	return &Entity{Key: key}
}

// Field returns the scalar value of a field.
func (d *Doc) Field(name string) (any, bool) {
	if d == nil || d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[name]
	return v, ok
}

// SetField sets a scalar field. A nil value unsets it.
func (d *Doc) SetField(name string, v any) {
	if v == nil {
		d.UnsetField(name)
		return
	}
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[name] = v
}

// UnsetField removes a scalar field.
func (d *Doc) UnsetField(name string) {
	if d.Fields == nil {
		return
	}
	delete(d.Fields, name)
	if len(d.Fields) == 0 {
		d.Fields = nil
	}
}

// Refs returns the references held by a relationship field.
func (d *Doc) Refs(name string) []*Ref {
	if d == nil || d.Relations == nil {
		return nil
	}
	return d.Relations[name]
}

// RefIDs returns the referenced ids of a relationship field in order.
func (d *Doc) RefIDs(name string) []string {
	refs := d.Refs(name)
	if len(refs) == 0 {
		return nil
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

// Ref returns the reference to id held by a relationship field, or nil.
func (d *Doc) Ref(name, id string) *Ref {
	for _, r := range d.Refs(name) {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// AddRef appends a reference unless one with the same id exists, in which
// case the existing reference is returned.
func (d *Doc) AddRef(name string, ref *Ref) *Ref {
	if r := d.Ref(name, ref.ID); r != nil {
		return r
	}
	if d.Relations == nil {
		d.Relations = make(map[string][]*Ref)
	}
	d.Relations[name] = append(d.Relations[name], ref)
	return ref
}

// RemoveRef removes the reference to id. It reports whether one was removed.
func (d *Doc) RemoveRef(name, id string) bool {
	refs := d.Refs(name)
	i := slices.IndexFunc(refs, func(r *Ref) bool { return r.ID == id })
	if i < 0 {
		return false
	}
	refs = slices.Delete(refs, i, i+1)
	if len(refs) == 0 {
		delete(d.Relations, name)
		if len(d.Relations) == 0 {
			d.Relations = nil
		}
		return true
	}
	d.Relations[name] = refs
	return true
}

// SetRefs replaces the references of a relationship field.
func (d *Doc) SetRefs(name string, refs []*Ref) {
	if len(refs) == 0 {
		if d.Relations != nil {
			delete(d.Relations, name)
			if len(d.Relations) == 0 {
				d.Relations = nil
			}
		}
		return
	}
	if d.Relations == nil {
		d.Relations = make(map[string][]*Ref)
	}
	d.Relations[name] = refs
}

// Clone returns a deep copy of the document.
func (d *Doc) Clone() *Doc {
	if d == nil {
		return nil
	}
	c := &Doc{}
	if d.Fields != nil {
		c.Fields = make(map[string]any, len(d.Fields))
		for k, v := range d.Fields {
			c.Fields[k] = cloneValue(v)
		}
	}
	if d.Relations != nil {
		c.Relations = make(map[string][]*Ref, len(d.Relations))
		for k, refs := range d.Relations {
			cr := make([]*Ref, len(refs))
			for i, r := range refs {
				cr[i] = r.Clone()
			}
			c.Relations[k] = cr
		}
	}
	return c
}

// Clone returns a deep copy of the reference.
func (r *Ref) Clone() *Ref {
	if r == nil {
		return nil
	}
	return &Ref{ID: r.ID, Own: r.Own, Embed: r.Embed.Clone()}
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := &Entity{Key: e.Key, Version: e.Version}
	if d := e.Doc.Clone(); d != nil {
		c.Doc = *d
	}
	if e.Meta != nil {
		c.Meta = make(map[string]map[string]int, len(e.Meta))
		for f, counts := range e.Meta {
			c.Meta[f] = maps.Clone(counts)
		}
	}
	if e.Own != nil {
		c.Own = make(map[string][]string, len(e.Own))
		for f, vs := range e.Own {
			c.Own[f] = slices.Clone(vs)
		}
	}
	return c
}

// Count returns the reference count of value in a union field.
func (e *Entity) Count(field, value string) int {
	return e.Meta[field][value]
}

// ApplyCounts adds delta to the reference counts of a union field. Counts
// never go below zero; a zero count removes the key and an empty per-field
// map is removed. It reports whether any decrement was clamped at zero.
func (e *Entity) ApplyCounts(field string, delta map[string]int) (clamped bool) {
	if len(delta) == 0 {
		return false
	}
	counts := e.Meta[field]
	for v, d := range delta {
		if d == 0 {
			continue
		}
		n := counts[v] + d
		if n < 0 {
			clamped = true
			n = 0
		}
		if n == 0 {
			delete(counts, v)
			continue
		}
		if counts == nil {
			counts = make(map[string]int)
		}
		counts[v] = n
	}
	e.setCounts(field, counts)
	return clamped
}

// SetCounts replaces the reference counts of a union field.
func (e *Entity) SetCounts(field string, counts map[string]int) {
	c := make(map[string]int, len(counts))
	for v, n := range counts {
		if n > 0 {
			c[v] = n
		}
	}
	e.setCounts(field, c)
}

func (e *Entity) setCounts(field string, counts map[string]int) {
	if len(counts) == 0 {
		if e.Meta != nil {
			delete(e.Meta, field)
			if len(e.Meta) == 0 {
				e.Meta = nil
			}
		}
		return
	}
	if e.Meta == nil {
		e.Meta = make(map[string]map[string]int)
	}
	e.Meta[field] = counts
}

// Counted returns the values of a union field with a positive count, sorted.
func (e *Entity) Counted(field string) []string {
	counts := e.Meta[field]
	vs := make([]string, 0, len(counts))
	for v, n := range counts {
		if n > 0 {
			vs = append(vs, v)
		}
	}
	sort.Strings(vs)
	return vs
}

// Op is the kind of an edge change.
type Op uint8

// Edge change operations.
const (
	OpAdd Op = iota + 1
	OpRemove
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Reverse returns the opposite operation.
func (o Op) Reverse() Op {
	if o == OpAdd {
		return OpRemove
	}
	return OpAdd
}

// EdgeChange is the unit of propagation: one relation edge added to or
// removed from the graph, seen from its left entity.
type EdgeChange struct {
	From     Key
	Relation string
	To       Key
	Op       Op
}

// FieldChange describes the old and new values of a source field.
type FieldChange struct {
	Key   Key
	Field string
	Old   any
	New   any
}
