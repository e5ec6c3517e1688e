// schemadump compiles a YAML schema declaration and prints the resulting
// types, fields and dependency indices.
//
//	go run ./compiler/cmd/schemadump --context index schema.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/liberaldart/epicsearch-sub000/compiler/load"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/schema/dep"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitUsage  = 1
	ExitConfig = 2
)

// Report is the JSON form of a compiled registry.
type Report struct {
	IndexContext   string       `json:"index_context"`
	Languages      []string     `json:"languages"`
	RepublishDepth int          `json:"republish_depth"`
	Types          []TypeReport `json:"types"`
	Dependencies   []DepReport  `json:"dependencies"`
	Joins          []JoinReport `json:"joins,omitempty"`
}

// TypeReport describes one entity type.
type TypeReport struct {
	Name   string        `json:"name"`
	Index  string        `json:"index"`
	Fields []FieldReport `json:"fields"`
}

// FieldReport describes one field.
type FieldReport struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Type         string `json:"type,omitempty"`
	MultiLingual bool   `json:"multilingual,omitempty"`
	Target       string `json:"target,omitempty"`
	Inverse      string `json:"inverse,omitempty"`
	Cardinality  string `json:"cardinality,omitempty"`
	Derived      bool   `json:"derived,omitempty"`
}

// DepReport describes one compiled dependency.
type DepReport struct {
	Kind    string `json:"kind"`
	Context string `json:"context"`
	Field   string `json:"field"`
	Path    string `json:"path"`
	Reverse string `json:"reverse,omitempty"`
}

// JoinReport describes the join tree of a type.
type JoinReport struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("schemadump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		label   = fs.StringP("context", "c", "", "only list dependencies of this context label")
		asJSON  = fs.Bool("json", false, "output as JSON")
		asYAML  = fs.Bool("yaml", false, "print the normalized declaration instead of the registry")
		watch   = fs.BoolP("watch", "w", false, "recompile and print again on every change of the file")
		verbose = fs.BoolP("verbose", "v", false, "log debug messages")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: schemadump [options] <schema.yaml>

Description:
  Compile a schema declaration and print its types, fields and
  dependency indices. Exits with status 2 on configuration errors.

Options:
%s`, fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return ExitUsage
	}
	path := fs.Arg(0)
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if *asYAML {
		decl, err := load.LoadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitConfig
		}
		out, err := load.Marshal(decl)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitConfig
		}
		_, _ = stdout.Write(out)
		return ExitOK
	}

	show := func(reg *graph.Registry) error {
		rep := report(reg, *label)
		if *asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		writeText(stdout, rep)
		return nil
	}
	if *watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := load.Watch(ctx, path, func(reg *graph.Registry, err error) {
			if err != nil {
				logger.Error("compile failed", "path", path, slog.Any("error", err))
				return
			}
			if err := show(reg); err != nil {
				logger.Error("print failed", slog.Any("error", err))
			}
		}, load.WithLogger(logger))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return ExitConfig
		}
		return ExitOK
	}
	reg, err := load.Compile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitConfig
	}
	logger.Debug("declaration compiled", "path", path, "types", len(reg.Types()))
	if err := show(reg); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}
	return ExitOK
}

// report collects the registry contents. An empty label lists the
// dependencies of every context.
func report(reg *graph.Registry, label string) *Report {
	rep := &Report{
		IndexContext:   reg.IndexContext(),
		Languages:      reg.Languages(),
		RepublishDepth: reg.Settings().RepublishDepth,
	}
	labels := reg.Settings().PathTypes
	if label != "" {
		labels = []string{label}
	}
	for _, t := range reg.Types() {
		tr := TypeReport{Name: t.Name, Index: t.Index}
		for _, f := range t.Fields {
			fr := FieldReport{Name: f.Name, Kind: f.Kind.String(), Derived: f.Derived()}
			if f.IsRelationship() {
				fr.Target = f.Target.Name
				fr.Inverse = f.Inverse.Name
				fr.Cardinality = f.Cardinality.String()
			} else {
				fr.Type = f.DataType.String()
				fr.MultiLingual = f.MultiLingual
			}
			tr.Fields = append(tr.Fields, fr)
		}
		rep.Types = append(rep.Types, tr)
		for _, l := range labels {
			if roots := reg.Joins(t.Name, l); len(roots) > 0 {
				rep.Joins = append(rep.Joins, JoinReport{Type: t.Name + " [" + l + "]", Paths: joinPaths(roots, "")})
			}
		}
	}
	for _, l := range labels {
		for _, d := range reg.Dependencies(dep.KindInvalid, l) {
			dr := DepReport{Kind: d.Kind.String(), Context: d.Context, Field: d.Field.String(), Path: d.Path.String()}
			if d.Kind != dep.KindCopy {
				dr.Reverse = names(d.Path.Reverse())
			}
			rep.Dependencies = append(rep.Dependencies, dr)
		}
	}
	return rep
}

func joinPaths(nodes []*graph.JoinNode, prefix string) []string {
	var out []string
	for _, n := range nodes {
		p := prefix + n.Relation.Name
		out = append(out, p)
		for _, f := range n.Fields {
			out = append(out, p+"."+f.Name)
		}
		out = append(out, joinPaths(n.Children, p+".")...)
	}
	return out
}

func names(fs []*graph.Field) string {
	segs := make([]string, len(fs))
	for i, f := range fs {
		segs[i] = f.Name
	}
	return strings.Join(segs, ".")
}

func writeText(w io.Writer, rep *Report) {
	fmt.Fprintf(w, "index context: %s\nlanguages: %s\nrepublish depth: %d\n",
		rep.IndexContext, strings.Join(rep.Languages, ", "), rep.RepublishDepth)
	for _, t := range rep.Types {
		fmt.Fprintf(w, "\n%s (index %s)\n", t.Name, t.Index)
		for _, f := range t.Fields {
			var desc string
			if f.Kind == graph.Relationship.String() {
				desc = fmt.Sprintf("-> %s.%s (%s)", f.Target, f.Inverse, f.Cardinality)
			} else {
				desc = f.Type
				if f.MultiLingual {
					desc += " multilingual"
				}
			}
			if f.Derived {
				desc += " derived"
			}
			fmt.Fprintf(w, "  %-20s %s\n", f.Name, desc)
		}
	}
	if len(rep.Dependencies) > 0 {
		fmt.Fprintln(w, "\ndependencies:")
		for _, d := range rep.Dependencies {
			fmt.Fprintf(w, "  %-5s %-28s %-40s [%s]\n", d.Kind, d.Field, d.Path, d.Context)
		}
	}
	if len(rep.Joins) > 0 {
		fmt.Fprintln(w, "\njoins:")
		for _, j := range rep.Joins {
			fmt.Fprintf(w, "  %s\n", j.Type)
			for _, p := range j.Paths {
				fmt.Fprintf(w, "    %s\n", p)
			}
		}
	}
}
