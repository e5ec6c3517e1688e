// Package load reads schema declarations from YAML files and watches them
// for changes.
package load

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/schema"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
	"github.com/liberaldart/epicsearch-sub000/schema/edge"
	"github.com/liberaldart/epicsearch-sub000/schema/field"
)

type (
	// File is the YAML form of a declaration.
	File struct {
		Settings  Settings    `yaml:"settings,omitempty"`
		Entities  []*Entity   `yaml:"entities"`
		Relations []*Relation `yaml:"relations,omitempty"`
	}

	// Settings is the YAML form of schema.Settings.
	Settings struct {
		Languages      StringList `yaml:"languages,omitempty"`
		PathTypes      StringList `yaml:"pathTypes,omitempty"`
		IndexContext   string     `yaml:"indexContext,omitempty"`
		RepublishDepth int        `yaml:"republishDepth,omitempty"`
	}

	// Entity is the YAML form of schema.Entity.
	Entity struct {
		Name    string   `yaml:"name"`
		Comment string   `yaml:"comment,omitempty"`
		Fields  []*Field `yaml:"fields,omitempty"`
		Edges   []*Edge  `yaml:"edges,omitempty"`
		Deps    []*Dep   `yaml:"deps,omitempty"`
	}

	// Field is the YAML form of a scalar field.
	Field struct {
		Name         string `yaml:"name"`
		Type         string `yaml:"type"`
		MultiLingual bool   `yaml:"multiLingual,omitempty"`
		Comment      string `yaml:"comment,omitempty"`
	}

	// Edge is the YAML form of a relationship field.
	Edge struct {
		Name    string `yaml:"name"`
		To      string `yaml:"to"`
		Inverse string `yaml:"inverse"`
		Unique  bool   `yaml:"unique,omitempty"`
		Comment string `yaml:"comment,omitempty"`
	}

	// Dep is the YAML form of a dependency. Exactly one of Union, Copy and
	// Join names the declared field. Join paths are relative to the joined
	// relationship.
	Dep struct {
		Union   string     `yaml:"union,omitempty"`
		Copy    string     `yaml:"copy,omitempty"`
		Join    string     `yaml:"join,omitempty"`
		Paths   StringList `yaml:"paths,omitempty"`
		Context string     `yaml:"context,omitempty"`
	}

	// Relation is the YAML form of schema.Relation.
	Relation struct {
		Left          string `yaml:"left"`
		Name          string `yaml:"name"`
		Right         string `yaml:"right"`
		Inverse       string `yaml:"inverse"`
		Unique        bool   `yaml:"unique,omitempty"`
		InverseUnique bool   `yaml:"inverseUnique,omitempty"`
	}
)

// StringList is a YAML type that can be either a string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler for StringList.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// Load decodes a YAML declaration. Unknown keys are rejected.
func Load(r io.Reader) (*schema.Declaration, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, epicsearch.NewConfigError("", "", "empty declaration")
		}
		return nil, &epicsearch.ConfigError{Message: "parse declaration", Cause: err}
	}
	return f.Declaration()
}

// LoadFile decodes the YAML declaration stored at path.
func LoadFile(path string) (*schema.Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declaration: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Compile loads the declaration stored at path and compiles it.
func Compile(path string) (*graph.Registry, error) {
	decl, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return graph.Compile(decl)
}

// Declaration converts the file into a declaration.
func (f *File) Declaration() (*schema.Declaration, error) {
	decl := schema.New(schema.Settings{
		Languages:      f.Settings.Languages,
		PathTypes:      f.Settings.PathTypes,
		IndexContext:   f.Settings.IndexContext,
		RepublishDepth: f.Settings.RepublishDepth,
	})
	for _, e := range f.Entities {
		se := schema.NewEntity(e.Name)
		se.Comment = e.Comment
		for _, fd := range e.Fields {
			b := field.Of(fd.Name, fd.Type).Comment(fd.Comment)
			if fd.MultiLingual {
				b.MultiLingual()
			}
			se.AddFields(b)
		}
		for _, ed := range e.Edges {
			b := edge.To(ed.Name, ed.To).Inverse(ed.Inverse).Comment(ed.Comment)
			if ed.Unique {
				b.Unique()
			}
			se.AddEdges(b)
		}
		for _, d := range e.Deps {
			deps, err := d.builders()
			if err != nil {
				return nil, epicsearch.NewConfigError(e.Name, "", err.Error())
			}
			se.AddDeps(deps...)
		}
		decl.Entities = append(decl.Entities, se)
	}
	for _, r := range f.Relations {
		decl.Relate(schema.Relation{
			Left:          r.Left,
			Name:          r.Name,
			Right:         r.Right,
			Inverse:       r.Inverse,
			Unique:        r.Unique,
			InverseUnique: r.InverseUnique,
		})
	}
	return decl, nil
}

func (d *Dep) builders() ([]schema.Dep, error) {
	var set int
	for _, s := range []string{d.Union, d.Copy, d.Join} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("dependency must set exactly one of union, copy and join")
	}
	var out []schema.Dep
	switch {
	case d.Union != "":
		out = append(out, dep.UnionFrom(d.Union, d.Paths...).Context(d.Context))
	case d.Copy != "":
		if len(d.Paths) == 0 {
			return nil, fmt.Errorf("copy %q: missing path", d.Copy)
		}
		for _, p := range d.Paths {
			out = append(out, dep.CopyTo(d.Copy, p).Context(d.Context))
		}
	default:
		out = append(out, dep.Join(d.Join, d.Paths...).Context(d.Context))
	}
	return out, nil
}

// NewFile converts a declaration into its YAML form.
func NewFile(decl *schema.Declaration) *File {
	f := &File{
		Settings: Settings{
			Languages:      decl.Settings.Languages,
			PathTypes:      decl.Settings.PathTypes,
			IndexContext:   decl.Settings.IndexContext,
			RepublishDepth: decl.Settings.RepublishDepth,
		},
	}
	for _, e := range decl.Entities {
		fe := &Entity{Name: e.Name, Comment: e.Comment}
		for _, fd := range e.Fields {
			fe.Fields = append(fe.Fields, &Field{Name: fd.Name, Type: fd.Type.String(), MultiLingual: fd.MultiLingual, Comment: fd.Comment})
		}
		for _, ed := range e.Edges {
			fe.Edges = append(fe.Edges, &Edge{Name: ed.Name, To: ed.Type, Inverse: ed.Inverse, Unique: ed.Unique, Comment: ed.Comment})
		}
		for _, d := range e.Deps {
			fd := &Dep{Context: d.Context}
			switch d.Kind {
			case dep.KindUnion:
				fd.Union, fd.Paths = d.Field, d.Paths
			case dep.KindCopy:
				fd.Copy, fd.Paths = d.Field, d.Paths
			case dep.KindJoin:
				fd.Join = d.Field
				for _, p := range d.Paths {
					if sub, ok := strings.CutPrefix(p, d.Field+"."); ok {
						fd.Paths = append(fd.Paths, sub)
					}
				}
			}
			fe.Deps = append(fe.Deps, fd)
		}
		f.Entities = append(f.Entities, fe)
	}
	for _, r := range decl.Relations {
		f.Relations = append(f.Relations, &Relation{
			Left:          r.Left,
			Name:          r.Name,
			Right:         r.Right,
			Inverse:       r.Inverse,
			Unique:        r.Unique,
			InverseUnique: r.InverseUnique,
		})
	}
	return f
}

// Marshal encodes a declaration as YAML.
func Marshal(decl *schema.Declaration) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(NewFile(decl)); err != nil {
		return nil, fmt.Errorf("marshal declaration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal declaration: %w", err)
	}
	return buf.Bytes(), nil
}
