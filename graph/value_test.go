package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/internal/fixture"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	reg := graph.MustCompile(fixture.Conference())
	title, _ := reg.Field("event", "title")
	year, _ := reg.Field("event", "year")
	sessions, _ := reg.Field("event", "sessions")
	event, _ := reg.Field("session", "event")

	tests := []struct {
		name  string
		field *graph.Field
		in    any
		want  any
		err   string
	}{
		{name: "nil unsets", field: year, in: nil, want: nil},
		{name: "number", field: year, in: 2024, want: 2024},
		{name: "number list", field: year, in: []any{1, 2.5}, want: []any{1, 2.5}},
		{name: "wrong type", field: year, in: "2024", err: "expected number"},
		{
			name:  "multilingual",
			field: title,
			in:    map[string]any{"en": "Opening", "fr": "Ouverture"},
			want:  map[string]any{"en": "Opening", "fr": "Ouverture"},
		},
		{
			name:  "multilingual string map",
			field: title,
			in:    map[string]string{"bo": "x"},
			want:  map[string]any{"bo": "x"},
		},
		{name: "unsupported language", field: title, in: map[string]any{"de": "Eröffnung"}, err: `unsupported language "de"`},
		{name: "not keyed by language", field: title, in: "Opening", err: "keyed by language"},
		{name: "relationship ids", field: sessions, in: []any{"s1", "s2"}, want: []string{"s1", "s2"}},
		{name: "relationship single id", field: event, in: "e1", want: []string{"e1"}},
		{name: "relationship refs", field: sessions, in: []*epicsearch.Ref{{ID: "s1"}}, want: []string{"s1"}},
		{name: "cardinality one", field: event, in: []string{"e1", "e2"}, err: "cardinality one"},
		{name: "bad reference", field: sessions, in: []any{1}, err: "expected reference id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := reg.Normalize(tt.field, tt.in)
			if tt.err != "" {
				require.Error(t, err)
				assert.True(t, epicsearch.IsValidationError(err))
				assert.Contains(t, err.Error(), tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldParse(t *testing.T) {
	t.Parallel()

	reg := graph.MustCompile(fixture.Conference())
	year, _ := reg.Field("event", "year")
	vs, err := year.Parse([]string{"2023", "2024"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2023), int64(2024)}, vs)

	_, err = year.Parse([]string{"soon"})
	assert.True(t, epicsearch.IsValidationError(err))
}
