package epicsearch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberaldart/epicsearch-sub000"
)

// =============================================================================
// Doc Tests
// =============================================================================

func TestDocRefs(t *testing.T) {
	t.Parallel()

	var d epicsearch.Doc
	assert.Nil(t, d.Refs("speakers"))

	r1 := d.AddRef("speakers", &epicsearch.Ref{ID: "p1", Own: true})
	d.AddRef("speakers", &epicsearch.Ref{ID: "p2"})
	again := d.AddRef("speakers", &epicsearch.Ref{ID: "p1"})
	assert.Same(t, r1, again, "adding an existing id returns the existing reference")
	assert.Equal(t, []string{"p1", "p2"}, d.RefIDs("speakers"))
	assert.True(t, d.Ref("speakers", "p1").Own)

	assert.True(t, d.RemoveRef("speakers", "p1"))
	assert.False(t, d.RemoveRef("speakers", "p1"))
	assert.Equal(t, []string{"p2"}, d.RefIDs("speakers"))

	assert.True(t, d.RemoveRef("speakers", "p2"))
	assert.Nil(t, d.Relations, "empty relation map is dropped")
}

func TestDocFields(t *testing.T) {
	t.Parallel()

	var d epicsearch.Doc
	d.SetField("title", "hello")
	v, ok := d.Field("title")
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	d.SetField("title", nil)
	_, ok = d.Field("title")
	assert.False(t, ok)
	assert.Nil(t, d.Fields)
}

func TestEntityClone(t *testing.T) {
	t.Parallel()

	e := epicsearch.NewEntity(epicsearch.Key{Type: "event", ID: "e1"})
	e.SetField("title", map[string]any{"en": "Opening"})
	e.AddRef("sessions", &epicsearch.Ref{ID: "s1", Own: true, Embed: &epicsearch.Doc{
		Fields: map[string]any{"title": "Talk"},
	}})
	e.ApplyCounts("primaryLanguages", map[string]int{"l1": 2})
	e.Own = map[string][]string{"tags": {"a"}}

	c := e.Clone()
	c.Ref("sessions", "s1").Embed.SetField("title", "Changed")
	c.Fields["title"].(map[string]any)["en"] = "Changed"
	c.ApplyCounts("primaryLanguages", map[string]int{"l1": 1})
	c.Own["tags"][0] = "b"

	assert.Equal(t, "Talk", e.Ref("sessions", "s1").Embed.Fields["title"])
	assert.Equal(t, "Opening", e.Fields["title"].(map[string]any)["en"])
	assert.Equal(t, 2, e.Count("primaryLanguages", "l1"))
	assert.Equal(t, "a", e.Own["tags"][0])
}

// =============================================================================
// Reference Count Tests
// =============================================================================

func TestApplyCounts(t *testing.T) {
	t.Parallel()

	e := epicsearch.NewEntity(epicsearch.Key{Type: "event", ID: "e1"})

	assert.False(t, e.ApplyCounts("langs", map[string]int{"l1": 1, "l2": 2}))
	assert.Equal(t, []string{"l1", "l2"}, e.Counted("langs"))

	assert.False(t, e.ApplyCounts("langs", map[string]int{"l1": -1}))
	assert.Equal(t, 0, e.Count("langs", "l1"))
	_, present := e.Meta["langs"]["l1"]
	assert.False(t, present, "zero count removes the key")

	assert.True(t, e.ApplyCounts("langs", map[string]int{"l2": -5}), "underflow is clamped")
	assert.Nil(t, e.Meta, "empty meta is removed entirely")
}

func TestSetCounts(t *testing.T) {
	t.Parallel()

	e := epicsearch.NewEntity(epicsearch.Key{Type: "event", ID: "e1"})
	e.SetCounts("langs", map[string]int{"l1": 1, "l2": 0})
	assert.Equal(t, map[string]int{"l1": 1}, e.Meta["langs"])

	e.SetCounts("langs", nil)
	assert.Nil(t, e.Meta)
}

// =============================================================================
// Value Tests
// =============================================================================

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{true, "true"},
		{5, "5"},
		{int64(5), "5"},
		{uint64(5), "5"},
		{5.0, "5"},
		{float32(1.5), "1.5"},
		{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02T03:04:05Z"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, epicsearch.Canonical(tt.in), "%#v", tt.in)
	}
}

func TestCanonicalSet(t *testing.T) {
	t.Parallel()

	assert.Nil(t, epicsearch.CanonicalSet(nil))
	set := epicsearch.CanonicalSet([]any{"a", "b", "a"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a")
	assert.Len(t, epicsearch.CanonicalSet("x"), 1)
}

func TestOp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "add", epicsearch.OpAdd.String())
	assert.Equal(t, "remove", epicsearch.OpRemove.String())
	assert.Equal(t, epicsearch.OpRemove, epicsearch.OpAdd.Reverse())
	assert.Equal(t, epicsearch.OpAdd, epicsearch.OpRemove.Reverse())
	assert.Equal(t, "unknown", epicsearch.Op(0).String())
}
