// Package propagate keeps derived fields consistent as the graph is edited.
//
// An Engine applies one graph edit to a session and then locates, through
// the compiled indices of the registry, every union, copy and join that the
// edit affects. Derived values are updated in place on the session's cached
// entities; nothing reaches the store until the session is flushed:
//
//	eng := propagate.New(reg)
//	s := session.New(reg, store)
//	if _, err := eng.Link(ctx, s, epicsearch.Key{Type: "session", ID: "s1"}, "speakers", "p1"); err != nil {
//	    return err
//	}
//	if err := s.Flush(ctx).Err(); err != nil {
//	    return err
//	}
//
// Store reads fan out concurrently through session prefetches. Mutations are
// applied by the calling goroutine, so an Engine call must not share its
// session with another concurrent call.
package propagate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/graph"
	"github.com/liberaldart/epicsearch-sub000/session"
)

// Engine applies graph edits and maintains derived fields.
type Engine struct {
	reg    *graph.Registry
	logger *slog.Logger
	label  string
	depth  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithContext sets the context label whose dependencies are maintained on
// every edit. It defaults to the registry's index context.
func WithContext(label string) Option {
	return func(e *Engine) {
		e.label = label
	}
}

// WithRepublishDepth sets the default depth of Republish.
func WithRepublishDepth(depth int) Option {
	return func(e *Engine) {
		e.depth = depth
	}
}

// New returns an engine over a compiled registry.
func New(reg *graph.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:   reg,
		label: reg.IndexContext(),
		depth: reg.Settings().RepublishDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *graph.Registry {
	return e.reg
}

// run carries the state of one engine call.
type run struct {
	*Engine
	ctx   context.Context
	s     *session.Session
	label string
	// updated holds the entities updated by the call.
	updated map[epicsearch.Key]struct{}
}

func (e *Engine) begin(ctx context.Context, s *session.Session) *run {
	return &run{Engine: e, ctx: ctx, s: s, label: e.label, updated: make(map[epicsearch.Key]struct{})}
}

func (r *run) entity(key epicsearch.Key) (*epicsearch.Entity, error) {
	return r.s.Entity(r.ctx, key)
}

func (r *run) dirty(e *epicsearch.Entity) error {
	r.updated[e.Key] = struct{}{}
	return r.s.MarkDirty(e.Key)
}

func (r *run) relationship(typ, name string) (*graph.Field, error) {
	f, err := r.reg.Field(typ, name)
	if err != nil {
		return nil, err
	}
	if !f.IsRelationship() {
		return nil, epicsearch.NewValidationError(f.String(), fmt.Errorf("%s is not a relationship", f))
	}
	return f, nil
}

// ApplyEdgeChange adds or removes one relation edge, on both of its sides,
// and propagates the change to every dependent field. It returns the number
// of entities updated, the two edited entities included.
func (e *Engine) ApplyEdgeChange(ctx context.Context, s *session.Session, change epicsearch.EdgeChange) (int, error) {
	r := e.begin(ctx, s)
	rel, err := r.relationship(change.From.Type, change.Relation)
	if err != nil {
		return 0, err
	}
	if rel.Target.Name != change.To.Type {
		return 0, epicsearch.NewValidationError(rel.String(), fmt.Errorf("references %s, not %s", rel.Target, change.To.Type))
	}
	switch change.Op {
	case epicsearch.OpAdd:
		err = r.link(change.From, rel, change.To.ID)
	case epicsearch.OpRemove:
		err = r.unlink(change.From, rel, change.To.ID)
	default:
		return 0, epicsearch.NewValidationError(rel.String(), fmt.Errorf("invalid edge operation %d", change.Op))
	}
	if err != nil {
		return 0, err
	}
	r.logger.DebugContext(ctx, "edge change applied",
		"op", change.Op.String(),
		"from", change.From.String(),
		"relation", change.Relation,
		"to", change.To.String(),
		"updated", len(r.updated),
	)
	return len(r.updated), nil
}

// Link adds the edge from -relation-> toID.
func (e *Engine) Link(ctx context.Context, s *session.Session, from epicsearch.Key, relation, toID string) (int, error) {
	rel, err := e.reg.Field(from.Type, relation)
	if err != nil {
		return 0, err
	}
	target := ""
	if rel.Target != nil {
		target = rel.Target.Name
	}
	return e.ApplyEdgeChange(ctx, s, epicsearch.EdgeChange{
		From:     from,
		Relation: relation,
		To:       epicsearch.Key{Type: target, ID: toID},
		Op:       epicsearch.OpAdd,
	})
}

// Unlink removes the edge from -relation-> toID.
func (e *Engine) Unlink(ctx context.Context, s *session.Session, from epicsearch.Key, relation, toID string) (int, error) {
	rel, err := e.reg.Field(from.Type, relation)
	if err != nil {
		return 0, err
	}
	target := ""
	if rel.Target != nil {
		target = rel.Target.Name
	}
	return e.ApplyEdgeChange(ctx, s, epicsearch.EdgeChange{
		From:     from,
		Relation: relation,
		To:       epicsearch.Key{Type: target, ID: toID},
		Op:       epicsearch.OpRemove,
	})
}

// ApplyFieldUpdate sets a field of an entity to value and propagates the
// change. A nil value unsets the field. Relationship updates are applied as
// links and unlinks of the entity's own references. On a union field the
// value becomes the field's own values. It returns the number of entities
// updated.
func (e *Engine) ApplyFieldUpdate(ctx context.Context, s *session.Session, key epicsearch.Key, name string, value any) (int, error) {
	r := e.begin(ctx, s)
	f, err := r.reg.Field(key.Type, name)
	if err != nil {
		return 0, err
	}
	v, err := r.reg.Normalize(f, value)
	if err != nil {
		return 0, err
	}
	if f.IsRelationship() {
		ids, _ := v.([]string)
		err = r.setRelation(key, f, ids)
	} else {
		err = r.setScalar(key, f, v)
	}
	if err != nil {
		return 0, err
	}
	r.logger.DebugContext(ctx, "field update applied", "key", key.String(), "field", name, "updated", len(r.updated))
	return len(r.updated), nil
}

func (r *run) setRelation(key epicsearch.Key, f *graph.Field, ids []string) error {
	x, err := r.entity(key)
	if err != nil {
		return err
	}
	var own []string
	for _, ref := range x.Refs(f.Name) {
		if ref.Own {
			own = append(own, ref.ID)
		}
	}
	for _, id := range own {
		if !slices.Contains(ids, id) {
			if err := r.unlink(key, f, id); err != nil {
				return err
			}
		}
	}
	for _, id := range ids {
		if err := r.link(key, f, id); err != nil {
			return err
		}
	}
	return nil
}
