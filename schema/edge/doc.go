// Package edge provides fluent builders for declaring relationship fields.
//
// A relationship field points from one entity type to another and names the
// field on the target type that points back:
//
//	// On "session"
//	edge.To("speakers", "speaker").Inverse("sessions")
//
//	// On "speaker"
//	edge.To("sessions", "session").Inverse("speakers")
//
//	// Cardinality one: a session belongs to a single event.
//	edge.To("event", "event").Inverse("sessions").Unique()
//
// Both sides must be declared, either explicitly on each entity or through a
// schema.Relation pair, and each must name the other as its inverse.
package edge
