package epicsearch

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// TransportPrefix marks store bookkeeping fields. They are never part of
// an embedded copy handed to callers.
const TransportPrefix = "_"

// wireEntity is the stored form of an entity body.
type wireEntity struct {
	Fields    map[string]any            `msgpack:"fields,omitempty"`
	Relations map[string][]*Ref         `msgpack:"relations,omitempty"`
	Meta      map[string]map[string]int `msgpack:"_meta,omitempty"`
	Own       map[string][]string       `msgpack:"_own,omitempty"`
}

// Marshal encodes an entity body into its stored source form.
func Marshal(e *Entity) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	w := wireEntity{
		Fields:    e.Fields,
		Relations: e.Relations,
		Meta:      e.Meta,
		Own:       e.Own,
	}
	if err := enc.Encode(&w); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Key, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a stored source into an entity.
func Unmarshal(key Key, version int64, src []byte) (*Entity, error) {
	var w wireEntity
	if len(src) > 0 {
		dec := msgpack.NewDecoder(bytes.NewReader(src))
		dec.UseLooseInterfaceDecoding(true)
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	e := &Entity{
		Key:     key,
		Doc:     Doc{Fields: w.Fields, Relations: w.Relations},
		Meta:    w.Meta,
		Own:     w.Own,
		Version: version,
	}
	return e, nil
}

// Terms returns the searchable projection of an entity: for each scalar
// field its canonical values (every language for multilingual fields), and
// for each relationship field the referenced ids.
func Terms(e *Entity) map[string][]string {
	terms := make(map[string][]string, len(e.Fields)+len(e.Relations))
	for name, v := range e.Fields {
		if strings.HasPrefix(name, TransportPrefix) {
			continue
		}
		set := make(map[string]struct{})
		collectTerms(v, set)
		if len(set) > 0 {
			terms[name] = sortedSet(set)
		}
	}
	for name, refs := range e.Relations {
		set := make(map[string]struct{}, len(refs))
		for _, r := range refs {
			set[r.ID] = struct{}{}
		}
		if len(set) > 0 {
			terms[name] = sortedSet(set)
		}
	}
	return terms
}

func collectTerms(v any, set map[string]struct{}) {
	switch v := v.(type) {
	case nil:
	case map[string]any:
		for _, e := range v {
			collectTerms(e, set)
		}
	case []any:
		for _, e := range v {
			collectTerms(e, set)
		}
	default:
		set[Canonical(v)] = struct{}{}
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// PurgeTransport removes store bookkeeping fields from a document and from
// every embedded copy below it.
func PurgeTransport(d *Doc) {
	if d == nil {
		return
	}
	for name := range d.Fields {
		if strings.HasPrefix(name, TransportPrefix) {
			delete(d.Fields, name)
		}
	}
	if len(d.Fields) == 0 {
		d.Fields = nil
	}
	for _, refs := range d.Relations {
		for _, r := range refs {
			PurgeTransport(r.Embed)
		}
	}
}
