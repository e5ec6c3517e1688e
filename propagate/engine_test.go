package propagate_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/dialect/mem"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/internal/fixture"
	"github.com/liberaldart/epicsearch-sub000/propagate"
	"github.com/liberaldart/epicsearch-sub000/schema"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/schema/field"
	"github.com/liberaldart/epicsearch-sub000/session"
)

var reg = graph.MustCompile(fixture.Conference())

func key(typ, id string) epicsearch.Key {
	return epicsearch.Key{Type: typ, ID: id}
}

// world is one operation over a fresh in-memory store.
type world struct {
	t     *testing.T
	ctx   context.Context
	store *mem.Store
	s     *session.Session
	eng   *propagate.Engine
}

func newWorld(t *testing.T, r *graph.Registry) *world {
	t.Helper()
	store := mem.New()
	return &world{
		t:     t,
		ctx:   context.Background(),
		store: store,
		s:     session.New(r, store),
		eng:   propagate.New(r),
	}
}

// create registers a new entity holding the given scalar fields.
func (w *world) create(typ, id string, fields map[string]any) *epicsearch.Entity {
	w.t.Helper()
	e, err := w.s.CreateEntity(typ, id)
	require.NoError(w.t, err)
	for name, v := range fields {
		e.SetField(name, v)
	}
	return e
}

func (w *world) entity(typ, id string) *epicsearch.Entity {
	w.t.Helper()
	e, err := w.s.Entity(w.ctx, key(typ, id))
	require.NoError(w.t, err)
	return e
}

// link returns the number of entities the edit updated.
func (w *world) link(typ, id, rel, to string) int {
	w.t.Helper()
	n, err := w.eng.Link(w.ctx, w.s, key(typ, id), rel, to)
	require.NoError(w.t, err)
	return n
}

func (w *world) unlink(typ, id, rel, to string) int {
	w.t.Helper()
	n, err := w.eng.Unlink(w.ctx, w.s, key(typ, id), rel, to)
	require.NoError(w.t, err)
	return n
}

func (w *world) update(typ, id, name string, v any) int {
	w.t.Helper()
	n, err := w.eng.ApplyFieldUpdate(w.ctx, w.s, key(typ, id), name, v)
	require.NoError(w.t, err)
	return n
}

// canonical returns the sorted canonical values of a scalar field.
func canonical(e *epicsearch.Entity, name string) []string {
	v, _ := e.Field(name)
	set := epicsearch.CanonicalSet(v)
	if len(set) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}

// =============================================================================
// Edge Tests
// =============================================================================

func TestLinkBothSides(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("session", "s1", nil)
	w.create("session", "s2", nil)
	w.create("speaker", "p1", nil)

	w.link("session", "s1", "speakers", "p1")
	w.link("session", "s2", "speakers", "p1")
	p1 := w.entity("speaker", "p1")
	assert.Equal(t, []string{"s1", "s2"}, p1.RefIDs("sessions"))
	assert.True(t, p1.Ref("sessions", "s1").Own)

	w.unlink("session", "s1", "speakers", "p1")
	assert.Equal(t, []string{"s2"}, p1.RefIDs("sessions"))
	assert.Empty(t, w.entity("session", "s1").RefIDs("speakers"))

	// Repeated edits are no-ops.
	w.unlink("session", "s1", "speakers", "p1")
	w.link("session", "s2", "speakers", "p1")
	assert.Equal(t, []string{"s2"}, p1.RefIDs("sessions"))
}

func TestApplyEdgeChange(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("session", "s1", nil)
	w.create("speaker", "p1", nil)

	n, err := w.eng.ApplyEdgeChange(w.ctx, w.s, epicsearch.EdgeChange{
		From: key("speaker", "p1"), Relation: "sessions", To: key("session", "s1"), Op: epicsearch.OpAdd,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p1"}, w.entity("session", "s1").RefIDs("speakers"))

	tests := []struct {
		name   string
		change epicsearch.EdgeChange
		check  func(error) bool
	}{
		{
			name:   "unknown relation",
			change: epicsearch.EdgeChange{From: key("speaker", "p1"), Relation: "friends", To: key("speaker", "p2"), Op: epicsearch.OpAdd},
			check:  epicsearch.IsLookupError,
		},
		{
			name:   "scalar field",
			change: epicsearch.EdgeChange{From: key("speaker", "p1"), Relation: "name", To: key("session", "s1"), Op: epicsearch.OpAdd},
			check:  epicsearch.IsValidationError,
		},
		{
			name:   "wrong target type",
			change: epicsearch.EdgeChange{From: key("speaker", "p1"), Relation: "sessions", To: key("event", "e1"), Op: epicsearch.OpAdd},
			check:  epicsearch.IsValidationError,
		},
		{
			name:   "invalid op",
			change: epicsearch.EdgeChange{From: key("speaker", "p1"), Relation: "sessions", To: key("session", "s1")},
			check:  epicsearch.IsValidationError,
		},
		{
			name:   "missing target",
			change: epicsearch.EdgeChange{From: key("speaker", "p1"), Relation: "sessions", To: key("session", "nope"), Op: epicsearch.OpAdd},
			check:  epicsearch.IsNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := w.eng.ApplyEdgeChange(w.ctx, w.s, tt.change)
			require.Error(t, err)
			assert.Zero(t, n)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestCardinalityOneReplaces(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", nil)
	w.create("event", "e2", nil)
	w.create("event", "e3", nil)
	w.create("session", "s1", map[string]any{"tags": "dharma"})

	w.link("event", "e1", "sessions", "s1")
	assert.Equal(t, []string{"dharma"}, canonical(w.entity("event", "e1"), "tags"))

	w.link("event", "e2", "sessions", "s1")
	s1 := w.entity("session", "s1")
	assert.Equal(t, []string{"e2"}, s1.RefIDs("event"))
	assert.Empty(t, w.entity("event", "e1").RefIDs("sessions"))
	assert.Empty(t, canonical(w.entity("event", "e1"), "tags"))
	assert.Nil(t, w.entity("event", "e1").Meta)
	assert.Equal(t, []string{"dharma"}, canonical(w.entity("event", "e2"), "tags"))

	w.link("session", "s1", "event", "e3")
	assert.Equal(t, []string{"e3"}, s1.RefIDs("event"))
	assert.Empty(t, w.entity("event", "e2").RefIDs("sessions"))
	assert.Equal(t, []string{"s1"}, w.entity("event", "e3").RefIDs("sessions"))
}

// =============================================================================
// Union Tests
// =============================================================================

func TestUnionReferenceCounts(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e", nil)
	w.create("session", "s1", nil)
	w.create("speaker", "p1", nil)
	w.create("speaker", "p2", nil)
	w.create("language", "l1", nil)
	w.link("event", "e", "sessions", "s1")
	w.link("speaker", "p1", "primaryLanguages", "l1")
	w.link("speaker", "p2", "primaryLanguages", "l1")
	e := w.entity("event", "e")

	assert.Equal(t, 4, w.link("session", "s1", "speakers", "p1"), "s1, p1, e and the mirrored l1")
	assert.Equal(t, []string{"l1"}, e.RefIDs("primaryLanguages"))
	assert.Equal(t, 1, e.Count("primaryLanguages", "l1"))
	assert.False(t, e.Ref("primaryLanguages", "l1").Own)
	assert.Equal(t, []string{"e"}, w.entity("language", "l1").RefIDs("events"))

	assert.Equal(t, 3, w.link("session", "s1", "speakers", "p2"), "l1 keeps its reference")
	assert.Equal(t, []string{"l1"}, e.RefIDs("primaryLanguages"))
	assert.Equal(t, 2, e.Count("primaryLanguages", "l1"))
	assert.Zero(t, w.link("session", "s1", "speakers", "p2"), "linking twice changes nothing")

	w.unlink("session", "s1", "speakers", "p1")
	assert.Equal(t, []string{"l1"}, e.RefIDs("primaryLanguages"))
	assert.Equal(t, 1, e.Count("primaryLanguages", "l1"))

	w.unlink("session", "s1", "speakers", "p2")
	assert.Empty(t, e.RefIDs("primaryLanguages"))
	assert.Zero(t, e.Count("primaryLanguages", "l1"))
	assert.Nil(t, e.Meta, "empty meta is removed")
	assert.Empty(t, w.entity("language", "l1").RefIDs("events"))
}

func TestStoreFailureAbortsLink(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", nil)
	w.create("session", "s1", nil)
	w.create("speaker", "p1", nil)
	w.create("language", "l1", nil)
	w.link("event", "e1", "sessions", "s1")
	w.link("speaker", "p1", "primaryLanguages", "l1")
	require.NoError(t, w.s.Flush(w.ctx).Err())

	boom := errors.New("boom")
	w.store.InjectFault("languages", "l1", boom)
	w.store.ResetCalls()
	s := session.New(reg, w.store)

	n, err := w.eng.Link(w.ctx, s, key("session", "s1"), "speakers", "p1")
	require.Error(t, err)
	assert.Zero(t, n)
	assert.True(t, epicsearch.IsStoreError(err))
	assert.ErrorIs(t, err, boom)

	_, ok := s.Cached(key("language", "l1"))
	assert.False(t, ok)
	calls := w.store.Calls()
	assert.Zero(t, calls.Puts+calls.Bulks, "nothing is written before flush")
}

func TestUnionLeafChange(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e", nil)
	w.create("session", "s1", nil)
	w.create("speaker", "p1", nil)
	w.create("language", "l1", nil)
	w.create("language", "l2", nil)
	w.link("event", "e", "sessions", "s1")
	w.link("session", "s1", "speakers", "p1")
	e := w.entity("event", "e")

	w.update("speaker", "p1", "primaryLanguages", []string{"l1", "l2"})
	assert.ElementsMatch(t, []string{"l1", "l2"}, e.RefIDs("primaryLanguages"))

	w.update("speaker", "p1", "primaryLanguages", "l2")
	assert.Equal(t, []string{"l2"}, e.RefIDs("primaryLanguages"))
	assert.Empty(t, w.entity("language", "l1").RefIDs("speakers"))

	w.update("speaker", "p1", "tags", []string{"a", "b"})
	w.update("session", "s1", "tags", "b")
	assert.Equal(t, []string{"a", "b"}, canonical(e, "tags"))
	assert.Equal(t, 2, e.Count("tags", "b"))

	w.update("speaker", "p1", "tags", nil)
	assert.Equal(t, []string{"b"}, canonical(e, "tags"))
	assert.Equal(t, 1, e.Count("tags", "b"))
}

func TestOwnValueSurvives(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e", nil)
	w.create("session", "s1", nil)
	w.create("speaker", "p1", nil)
	w.create("language", "l1", nil)
	w.create("language", "l2", nil)
	w.link("event", "e", "sessions", "s1")
	w.link("speaker", "p1", "primaryLanguages", "l2")
	e := w.entity("event", "e")

	w.update("event", "e", "primaryLanguages", []string{"l2"})
	assert.True(t, e.Ref("primaryLanguages", "l2").Own)

	w.link("session", "s1", "speakers", "p1")
	assert.Equal(t, 1, e.Count("primaryLanguages", "l2"))
	w.unlink("session", "s1", "speakers", "p1")
	assert.Equal(t, []string{"l2"}, e.RefIDs("primaryLanguages"))

	// Dropping the authorship of a counted reference keeps it until its
	// contributions are gone.
	w.link("session", "s1", "speakers", "p1")
	w.unlink("event", "e", "primaryLanguages", "l2")
	assert.Equal(t, []string{"l2"}, e.RefIDs("primaryLanguages"))
	assert.False(t, e.Ref("primaryLanguages", "l2").Own)
	w.unlink("session", "s1", "speakers", "p1")
	assert.Empty(t, e.RefIDs("primaryLanguages"))
}

func TestScalarUnionOwnValues(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e", nil)
	w.create("session", "s1", map[string]any{"tags": []any{"a", "b"}})
	e := w.entity("event", "e")

	w.update("event", "e", "tags", []string{"b", "own"})
	assert.Equal(t, []string{"b", "own"}, e.Own["tags"])
	assert.Equal(t, []string{"b", "own"}, canonical(e, "tags"))

	w.link("event", "e", "sessions", "s1")
	assert.Equal(t, []string{"a", "b", "own"}, canonical(e, "tags"))

	w.unlink("event", "e", "sessions", "s1")
	assert.Equal(t, []string{"b", "own"}, canonical(e, "tags"))

	w.update("event", "e", "tags", nil)
	_, ok := e.Field("tags")
	assert.False(t, ok)
	assert.Nil(t, e.Own)
}

// =============================================================================
// Copy Tests
// =============================================================================

func TestCopyPropagation(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", map[string]any{"name": "rigpa"})
	w.create("session", "s1", nil)
	s1 := w.entity("session", "s1")

	w.link("event", "e1", "sessions", "s1")
	v, _ := s1.Field("eventName")
	assert.Equal(t, "rigpa", v)

	w.update("event", "e1", "name", "shedra")
	v, _ = s1.Field("eventName")
	assert.Equal(t, "shedra", v)

	w.unlink("event", "e1", "sessions", "s1")
	_, ok := s1.Field("eventName")
	assert.False(t, ok)

	_, err := w.eng.ApplyFieldUpdate(w.ctx, w.s, key("session", "s1"), "eventName", "manual")
	require.Error(t, err)
	assert.True(t, epicsearch.IsValidationError(err))
}

// cascade declares org -> team -> member with a copy feeding a join and a
// union feeding another union.
func cascade() *schema.Declaration {
	return schema.New(schema.Settings{Languages: []string{"en"}},
		schema.NewEntity("org").
			AddFields(field.Keyword("name"), field.Keyword("skills")).
			AddDeps(
				dep.CopyTo("name", "teams.orgName"),
				dep.UnionFrom("skills", "teams.skills"),
			),
		schema.NewEntity("team").
			AddFields(field.Keyword("orgName"), field.Keyword("skills")).
			AddDeps(dep.UnionFrom("skills", "members.skills")),
		schema.NewEntity("member").
			AddFields(field.Keyword("skills")).
			AddDeps(dep.Join("team", "orgName")),
	).Relate(
		schema.Relation{Left: "org", Name: "teams", Right: "team", Inverse: "org", InverseUnique: true},
		schema.Relation{Left: "team", Name: "members", Right: "member", Inverse: "team", InverseUnique: true},
	)
}

func TestDerivedChangesCascade(t *testing.T) {
	t.Parallel()

	w := newWorld(t, graph.MustCompile(cascade()))
	w.create("org", "o1", map[string]any{"name": "sangha"})
	w.create("team", "t1", nil)
	w.create("member", "m1", map[string]any{"skills": []any{"go", "sql"}})
	w.link("team", "t1", "members", "m1")
	w.link("org", "o1", "teams", "t1")
	o1, m1 := w.entity("org", "o1"), w.entity("member", "m1")

	assert.Equal(t, []string{"go", "sql"}, canonical(o1, "skills"))
	v, _ := m1.Ref("team", "t1").Embed.Field("orgName")
	assert.Equal(t, "sangha", v)

	w.update("org", "o1", "name", "kusum")
	v, _ = m1.Ref("team", "t1").Embed.Field("orgName")
	assert.Equal(t, "kusum", v)

	w.update("member", "m1", "skills", "go")
	assert.Equal(t, []string{"go"}, canonical(o1, "skills"))
	assert.Equal(t, 1, o1.Count("skills", "go"))
}

// =============================================================================
// Join Tests
// =============================================================================

func TestJoinInverseUpdate(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", nil)
	w.create("event", "e2", nil)
	w.create("session", "s1", map[string]any{"title": "old"})
	w.create("speaker", "p1", map[string]any{"name": "Tenzin"})
	w.link("session", "s1", "speakers", "p1")
	w.link("event", "e1", "sessions", "s1")

	e1 := w.entity("event", "e1")
	embed := e1.Ref("sessions", "s1").Embed
	require.NotNil(t, embed)
	v, _ := embed.Field("title")
	assert.Equal(t, "old", v)
	name, _ := embed.Ref("speakers", "p1").Embed.Field("name")
	assert.Equal(t, "Tenzin", name)

	w.update("session", "s1", "title", "new")
	v, _ = e1.Ref("sessions", "s1").Embed.Field("title")
	assert.Equal(t, "new", v)

	w.update("speaker", "p1", "name", "Pema")
	name, _ = e1.Ref("sessions", "s1").Embed.Ref("speakers", "p1").Embed.Field("name")
	assert.Equal(t, "Pema", name)

	// Resolving from scratch yields the incrementally maintained body.
	resolved, err := w.eng.ResolveJoins(w.ctx, w.s, e1, "", true)
	require.NoError(t, err)
	assert.Equal(t, e1.Ref("sessions", "s1").Embed, resolved.Ref("sessions", "s1").Embed)

	w.unlink("session", "s1", "speakers", "p1")
	assert.Empty(t, e1.Ref("sessions", "s1").Embed.RefIDs("speakers"))

	w.link("event", "e2", "sessions", "s1")
	assert.Empty(t, e1.RefIDs("sessions"))
}

func TestResolveJoins(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	s1 := w.create("session", "s1", nil)
	w.create("speaker", "p1", map[string]any{"name": "Tenzin", "_rank": 3})
	w.create("speaker", "p2", map[string]any{"name": "Pema"})
	w.link("session", "s1", "speakers", "p1")
	w.link("session", "s1", "speakers", "p2")
	assert.Nil(t, s1.Ref("speakers", "p1").Embed, "search joins are resolved on read")

	s1.Ref("speakers", "p2").Embed = &epicsearch.Doc{Fields: map[string]any{"name": "stale"}}
	resolved, err := w.eng.ResolveJoins(w.ctx, w.s, s1, "search", false)
	require.NoError(t, err)
	name, _ := resolved.Ref("speakers", "p1").Embed.Field("name")
	assert.Equal(t, "Tenzin", name)
	_, ok := resolved.Ref("speakers", "p1").Embed.Field("_rank")
	assert.False(t, ok)
	name, _ = resolved.Ref("speakers", "p2").Embed.Field("name")
	assert.Equal(t, "stale", name)
	assert.Nil(t, s1.Ref("speakers", "p1").Embed, "input is not modified")

	resolved, err = w.eng.ResolveJoins(w.ctx, w.s, s1, "search", true)
	require.NoError(t, err)
	name, _ = resolved.Ref("speakers", "p2").Embed.Field("name")
	assert.Equal(t, "Pema", name)
}

// =============================================================================
// Field Update Tests
// =============================================================================

func TestApplyFieldUpdateRelationship(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("session", "s1", nil)
	for _, id := range []string{"p1", "p2", "p3"} {
		w.create("speaker", id, nil)
	}

	w.update("session", "s1", "speakers", []string{"p1", "p2"})
	assert.Equal(t, []string{"p1", "p2"}, w.entity("session", "s1").RefIDs("speakers"))

	w.update("session", "s1", "speakers", []any{"p2", "p3"})
	assert.Equal(t, []string{"p2", "p3"}, w.entity("session", "s1").RefIDs("speakers"))
	assert.Empty(t, w.entity("speaker", "p1").RefIDs("sessions"))

	w.update("session", "s1", "speakers", nil)
	assert.Empty(t, w.entity("session", "s1").RefIDs("speakers"))
}

func TestApplyFieldUpdateValidation(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", nil)

	tests := []struct {
		name  string
		field string
		value any
		check func(error) bool
	}{
		{name: "unknown field", field: "venue", value: "x", check: epicsearch.IsLookupError},
		{name: "unsupported language", field: "title", value: map[string]any{"xx-invalid": "x"}, check: epicsearch.IsValidationError},
		{name: "not keyed by language", field: "title", value: "x", check: epicsearch.IsValidationError},
		{name: "wrong type", field: "year", value: "soon", check: epicsearch.IsValidationError},
		{name: "missing reference", field: "sessions", value: "nope", check: epicsearch.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.eng.ApplyFieldUpdate(w.ctx, w.s, key("event", "e1"), tt.field, tt.value)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}

	w.update("event", "e1", "title", map[string]string{"en": "Opening", "bo": "Tashi"})
	v, _ := w.entity("event", "e1").Field("title")
	assert.Equal(t, map[string]any{"en": "Opening", "bo": "Tashi"}, v)
}

// =============================================================================
// Reindex Tests
// =============================================================================

func TestReindex(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", map[string]any{"name": "rigpa"})
	w.create("session", "s1", map[string]any{"title": "old", "tags": "a"})
	w.create("speaker", "p1", map[string]any{"name": "Tenzin", "tags": "b"})
	w.create("language", "l1", nil)
	w.link("speaker", "p1", "primaryLanguages", "l1")
	w.link("session", "s1", "speakers", "p1")
	w.link("event", "e1", "sessions", "s1")
	require.NoError(t, w.s.Flush(w.ctx).Err())

	// Corrupt the stored derived state and rebuild it.
	e1 := w.entity("event", "e1")
	want := e1.Clone()
	e1.Meta = nil
	e1.UnsetField("tags")
	e1.Ref("sessions", "s1").Embed = nil
	w.entity("session", "s1").UnsetField("eventName")

	require.NoError(t, w.eng.Reindex(w.ctx, w.s, key("event", "e1")))
	require.NoError(t, w.eng.Reindex(w.ctx, w.s, key("session", "s1")))
	assert.Equal(t, want.Meta, e1.Meta)
	assert.Equal(t, canonical(want, "tags"), canonical(e1, "tags"))
	assert.Equal(t, want.Ref("sessions", "s1").Embed, e1.Ref("sessions", "s1").Embed)
	v, _ := w.entity("session", "s1").Field("eventName")
	assert.Equal(t, "rigpa", v)
	assert.Contains(t, w.s.Dirty(), key("event", "e1"))

	err := w.eng.Reindex(w.ctx, w.s, key("planet", "p1"))
	assert.True(t, epicsearch.IsLookupError(err))
}

func TestReindexAfterReload(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", nil)
	w.create("session", "s1", map[string]any{"tags": []any{"a", "b"}})
	w.create("speaker", "p1", map[string]any{"tags": "b"})
	w.link("session", "s1", "speakers", "p1")
	w.link("event", "e1", "sessions", "s1")
	require.NoError(t, w.s.Flush(w.ctx).Err())

	s := session.New(reg, w.store)
	require.NoError(t, w.eng.Reindex(w.ctx, s, key("event", "e1")))
	e1, err := s.Entity(w.ctx, key("event", "e1"))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, e1.Meta["tags"])
	assert.Equal(t, []string{"a", "b"}, canonical(e1, "tags"))
}

func TestRepublish(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("event", "e1", nil)
	w.create("session", "s1", nil)
	w.create("session", "s2", nil)
	w.create("speaker", "p1", nil)
	w.create("language", "l1", nil)
	w.link("speaker", "p1", "primaryLanguages", "l1")
	w.link("session", "s1", "speakers", "p1")
	w.link("event", "e1", "sessions", "s1")
	w.link("event", "e1", "sessions", "s2")
	require.NoError(t, w.s.Flush(w.ctx).Err())
	require.Empty(t, w.s.Dirty())

	tests := []struct {
		depth int
		want  int
	}{
		{depth: 1, want: 4},
		{depth: 2, want: 5},
		{depth: 0, want: 5},
	}
	for _, tt := range tests {
		n, err := w.eng.Republish(w.ctx, w.s, key("event", "e1"), tt.depth)
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, "depth %d", tt.depth)
		assert.Len(t, w.s.Dirty(), tt.want)
		require.NoError(t, w.s.Flush(w.ctx).Err())
	}
}

// =============================================================================
// Create Tests
// =============================================================================

func TestFindOrCreate(t *testing.T) {
	t.Parallel()

	w := newWorld(t, reg)
	w.create("session", "s1", nil)

	e, created, err := w.eng.FindOrCreate(w.ctx, w.s, "event", map[string]string{"name": "rigpa", "sessions": "s1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, []string{"s1"}, e.RefIDs("sessions"))
	v, _ := w.entity("session", "s1").Field("eventName")
	assert.Equal(t, "rigpa", v)

	again, created, err := w.eng.FindOrCreate(w.ctx, w.s, "event", map[string]string{"name": "rigpa"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, e, again)

	require.NoError(t, w.s.Flush(w.ctx).Err())
	fresh := session.New(reg, w.store)
	found, created, err := w.eng.FindOrCreate(w.ctx, fresh, "event", map[string]string{"name": "rigpa"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e.ID, found.ID)

	titled, created, err := w.eng.FindOrCreate(w.ctx, w.s, "event", map[string]string{"title": "Opening", "year": "2024"})
	require.NoError(t, err)
	assert.True(t, created)
	title, _ := titled.Field("title")
	assert.Equal(t, map[string]any{"en": "Opening"}, title)

	_, _, err = w.eng.FindOrCreate(w.ctx, w.s, "session", map[string]string{"eventName": "x"})
	assert.True(t, epicsearch.IsValidationError(err))
	_, _, err = w.eng.FindOrCreate(w.ctx, w.s, "event", map[string]string{"venue": "x"})
	assert.True(t, epicsearch.IsLookupError(err))
}
