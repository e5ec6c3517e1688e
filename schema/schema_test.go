package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberaldart/epicsearch-sub000/schema"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/schema/edge"
	"github.com/liberaldart/epicsearch-sub000/schema/field"
)

func TestSettingsDefaults(t *testing.T) {
	t.Parallel()

	s := schema.Settings{}.WithDefaults()
	assert.Equal(t, []string{"index", "read", "search"}, s.PathTypes)
	assert.Equal(t, "index", s.IndexContext)
	assert.Equal(t, 3, s.RepublishDepth)

	s = schema.Settings{PathTypes: []string{"read"}, IndexContext: "read", RepublishDepth: 1}.WithDefaults()
	assert.Equal(t, []string{"read"}, s.PathTypes)
	assert.Equal(t, "read", s.IndexContext)
	assert.Equal(t, 1, s.RepublishDepth)
}

func TestSettingsDefaultsDoNotAlias(t *testing.T) {
	t.Parallel()

	s := schema.Settings{}.WithDefaults()
	s.PathTypes[0] = "changed"
	assert.Equal(t, "index", schema.DefaultPathTypes[0])
}

func TestEntityBuilder(t *testing.T) {
	t.Parallel()

	e := schema.NewEntity("event").
		AddFields(field.String("title").MultiLingual(), field.Number("year")).
		AddEdges(edge.To("sessions", "session").Inverse("event")).
		AddDeps(dep.Join("sessions", "title"))

	assert.Equal(t, "event", e.Name)
	require.Len(t, e.Fields, 2)
	assert.True(t, e.Fields[0].MultiLingual)
	require.Len(t, e.Edges, 1)
	assert.Equal(t, "session", e.Edges[0].Type)
	require.Len(t, e.Deps, 1)
	assert.Equal(t, dep.KindJoin, e.Deps[0].Kind)
}

func TestRelationEdges(t *testing.T) {
	t.Parallel()

	r := schema.Relation{Left: "event", Name: "sessions", Right: "session", Inverse: "event", InverseUnique: true}
	left, right := r.Edges()

	assert.Equal(t, "sessions", left.Name)
	assert.Equal(t, "session", left.Type)
	assert.Equal(t, "event", left.Inverse)
	assert.False(t, left.Unique)

	assert.Equal(t, "event", right.Name)
	assert.Equal(t, "event", right.Type)
	assert.Equal(t, "sessions", right.Inverse)
	assert.True(t, right.Unique)
}

func TestDeclaration(t *testing.T) {
	t.Parallel()

	d := schema.New(schema.Settings{}, schema.NewEntity("event"), schema.NewEntity("session")).
		Relate(schema.Relation{Left: "event", Name: "sessions", Right: "session", Inverse: "event"})
	assert.NotNil(t, d.Entity("session"))
	assert.Nil(t, d.Entity("speaker"))
	assert.Len(t, d.Relations, 1)
}
