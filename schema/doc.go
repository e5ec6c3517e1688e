// Package schema provides the declaration model for entity types, their
// relationships and their derived fields.
//
// A declaration is built either with the builders of the subpackages or by
// loading a declaration file (see package compiler/load):
//
//   - [field]: scalar field builders
//   - [edge]: relationship field builders
//   - [dep]: union, copy and join dependency builders
//
// # Quick Start
//
//	decl := schema.New(schema.Settings{Languages: []string{"en", "bo"}},
//	    schema.NewEntity("event").
//	        AddFields(
//	            field.String("title").MultiLingual(),
//	            field.Keyword("primaryLanguages"),
//	        ).
//	        AddDeps(
//	            dep.UnionFrom("primaryLanguages", "sessions.speakers.primaryLanguages"),
//	            dep.Join("sessions", "title"),
//	        ),
//	    schema.NewEntity("session").AddFields(field.String("title")),
//	    schema.NewEntity("speaker").AddFields(field.Keyword("primaryLanguages")),
//	).Relate(
//	    schema.Relation{Left: "event", Name: "sessions", Right: "session", Inverse: "event", InverseUnique: true},
//	    schema.Relation{Left: "session", Name: "speakers", Right: "speaker", Inverse: "sessions"},
//	)
//
// The declaration is then compiled into an immutable registry by
// graph.Compile, which reports every inconsistency as a ConfigError.
package schema
