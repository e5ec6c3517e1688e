// Package fixture holds the conference declaration shared by tests.
package fixture

import (
	"github.com/liberaldart/epicsearch-sub000/schema"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/schema/field"
)

// Conference returns a declaration of events, sessions, speakers and
// languages:
//
//	event.sessions <-> session.event (one)
//	session.speakers <-> speaker.sessions
//	speaker.primaryLanguages <-> language.speakers
//	event.primaryLanguages <-> language.events (union of sessions.speakers.primaryLanguages)
//
// event.tags is the union of sessions.tags and sessions.speakers.tags,
// event.name is copied into session.eventName, and event joins the title of
// its sessions and the name of their speakers.
func Conference() *schema.Declaration {
	return schema.New(schema.Settings{Languages: []string{"en", "bo", "fr"}},
		schema.NewEntity("event").
			AddFields(
				field.String("title").MultiLingual(),
				field.Keyword("name"),
				field.Keyword("tags"),
				field.Number("year"),
			).
			AddDeps(
				dep.UnionFrom("primaryLanguages", "sessions.speakers.primaryLanguages"),
				dep.UnionFrom("tags", "sessions.tags", "sessions.speakers.tags"),
				dep.CopyTo("name", "sessions.eventName"),
				dep.Join("sessions", "title", "speakers.name"),
			),
		schema.NewEntity("session").
			AddFields(
				field.String("title"),
				field.Keyword("eventName"),
				field.Keyword("tags"),
			).
			AddDeps(
				dep.Join("speakers", "name").Context("search"),
			),
		schema.NewEntity("speaker").
			AddFields(
				field.String("name"),
				field.Keyword("tags"),
			).
			AddDeps(
				dep.Join("primaryLanguages", "name"),
			),
		schema.NewEntity("language").
			AddFields(
				field.String("name").MultiLingual(),
			),
	).Relate(
		schema.Relation{Left: "event", Name: "sessions", Right: "session", Inverse: "event", InverseUnique: true},
		schema.Relation{Left: "session", Name: "speakers", Right: "speaker", Inverse: "sessions"},
		schema.Relation{Left: "speaker", Name: "primaryLanguages", Right: "language", Inverse: "speakers"},
		schema.Relation{Left: "event", Name: "primaryLanguages", Right: "language", Inverse: "events"},
	)
}
