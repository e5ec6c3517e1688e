// Package field provides fluent builders for declaring scalar entity fields.
//
// Every scalar field has a data type. String and text fields may be
// multilingual, in which case their value is a map keyed by language:
//
//	field.String("name")
//	field.Text("description").MultiLingual()
//	field.Keyword("code")
//	field.Number("year")
//	field.Bool("published")
//	field.Date("startsAt")
//
// Builders never fail eagerly. A misuse such as MultiLingual on a number is
// recorded on the descriptor and reported when the declaration is compiled.
package field
