package sql

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/liberaldart/epicsearch-sub000/dialect"
)

// builder accumulates a statement and its arguments, writing placeholders
// in the form of the dialect.
type builder struct {
	dialect string
	sb      strings.Builder
	args    []any
}

func newBuilder(d string) *builder {
	return &builder{dialect: d}
}

// WriteString appends raw SQL.
func (b *builder) WriteString(s string) *builder {
	b.sb.WriteString(s)
	return b
}

// Arg appends a placeholder bound to v.
func (b *builder) Arg(v any) *builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args appends comma separated placeholders.
func (b *builder) Args(vs ...any) *builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Query returns the statement and its arguments.
func (b *builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// quote quotes an identifier for the dialect.
func quote(d, name string) string {
	switch d {
	case dialect.Postgres:
		return pq.QuoteIdentifier(name)
	case dialect.MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
