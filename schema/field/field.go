package field

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// A Type is the data type of a scalar field.
type Type uint8

// Scalar data types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeText
	TypeKeyword
	TypeNumber
	TypeBool
	TypeDate
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeText:    "text",
	TypeKeyword: "keyword",
	TypeNumber:  "number",
	TypeBool:    "boolean",
	TypeDate:    "date",
}

// String returns the declaration name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the type is a known scalar type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Textual reports if values of the type are strings.
func (t Type) Textual() bool {
	return t == TypeString || t == TypeText || t == TypeKeyword
}

// ParseType returns the type named s.
func ParseType(s string) (Type, error) {
	for t := TypeString; t < endTypes; t++ {
		if typeNames[t] == strings.ToLower(s) {
			return t, nil
		}
	}
	if strings.EqualFold(s, "bool") {
		return TypeBool, nil
	}
	return TypeInvalid, fmt.Errorf("unknown field type %q", s)
}

// Compatible reports whether values of type o can be stored in a field of type t.
func (t Type) Compatible(o Type) bool {
	if t == o {
		return true
	}
	return t.Textual() && o.Textual()
}

// Check reports whether a single (non-list) value fits the type.
func (t Type) Check(v any) error {
	switch t {
	case TypeString, TypeText, TypeKeyword:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case TypeNumber:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case TypeDate:
		switch v := v.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
				return fmt.Errorf("expected RFC 3339 date: %w", err)
			}
		default:
			return fmt.Errorf("expected date, got %T", v)
		}
	default:
		return errors.New("invalid field type")
	}
	return nil
}

// Parse converts the canonical string form of a value back into a value of
// the type. Numbers without a fractional part become int64.
func (t Type) Parse(s string) (any, error) {
	switch t {
	case TypeString, TypeText, TypeKeyword:
		return s, nil
	case TypeNumber:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
			return int64(f), nil
		}
		return f, nil
	case TypeBool:
		return strconv.ParseBool(s)
	case TypeDate:
		return s, nil
	default:
		return nil, errors.New("invalid field type")
	}
}

// A Descriptor for a scalar field.
type Descriptor struct {
	Name         string // field name.
	Type         Type   // data type.
	MultiLingual bool   // value is keyed by language.
	Comment      string // field comment.
	Err          error
}

// Builder for scalar fields.
type Builder struct {
	desc *Descriptor
}

// String returns a new builder for a string field.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text returns a new builder for a long text field.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// Keyword returns a new builder for an exact-match string field.
func Keyword(name string) *Builder { return newBuilder(name, TypeKeyword) }

// Number returns a new builder for a numeric field.
func Number(name string) *Builder { return newBuilder(name, TypeNumber) }

// Bool returns a new builder for a boolean field.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Date returns a new builder for a date field.
func Date(name string) *Builder { return newBuilder(name, TypeDate) }

// Of returns a new builder for a field whose type is given by name, as used
// in declaration files.
func Of(name, typ string) *Builder {
	t, err := ParseType(typ)
	b := newBuilder(name, t)
	if err != nil {
		b.desc.Err = err
	}
	return b
}

func newBuilder(name string, t Type) *Builder {
	b := &Builder{desc: &Descriptor{Name: name, Type: t}}
	if name == "" {
		b.desc.Err = errors.New("missing field name")
	}
	return b
}

// MultiLingual marks the field value as keyed by language. Only string and
// text fields can be multilingual.
func (b *Builder) MultiLingual() *Builder {
	if b.desc.Type != TypeString && b.desc.Type != TypeText {
		b.desc.Err = errors.Join(b.desc.Err, fmt.Errorf("%s field %q cannot be multilingual", b.desc.Type, b.desc.Name))
	}
	b.desc.MultiLingual = true
	return b
}

// Comment sets the comment of the field.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor implements the schema.Field interface by returning its descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
