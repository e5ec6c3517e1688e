// Package session provides the write-buffer cache every graph edit runs
// against.
//
// A Session loads entities from the store at most once, lets propagation
// mutate them in place, and writes each dirty entity back exactly once on
// Flush. Sessions are bound to one logical operation and are not shared
// between operations.
package session

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/dialect"
	"github.com/liberaldart/epicsearch-sub000/graph"
)

// Defaults of the session options.
const (
	DefaultFlushBatchSize = 100
	DefaultConcurrency    = 4
)

type entry struct {
	entity *epicsearch.Entity // nil when the store has no such document
	dirty  bool
}

// Session is a per-operation buffer of loaded and mutated entities.
type Session struct {
	reg         *graph.Registry
	store       dialect.Store
	logger      *slog.Logger
	batchSize   int
	concurrency int

	mu      sync.Mutex
	entries map[epicsearch.Key]*entry
	values  map[string]any
	group   singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithFlushBatchSize bounds the number of documents sent in one bulk write.
func WithFlushBatchSize(n int) Option {
	return func(s *Session) {
		s.batchSize = n
	}
}

// WithConcurrency bounds the number of concurrent store calls issued by
// Prefetch and Flush.
func WithConcurrency(n int) Option {
	return func(s *Session) {
		s.concurrency = n
	}
}

// New returns an empty session over a store.
func New(reg *graph.Registry, store dialect.Store, opts ...Option) *Session {
	s := &Session{
		reg:         reg,
		store:       store,
		batchSize:   DefaultFlushBatchSize,
		concurrency: DefaultConcurrency,
		entries:     make(map[epicsearch.Key]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultFlushBatchSize
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	return s
}

// Registry returns the schema the session was opened with.
func (s *Session) Registry() *graph.Registry {
	return s.reg
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Get returns an operation-scoped value.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores an operation-scoped value. A nil value removes it.
func (s *Session) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v == nil {
		delete(s.values, key)
		return
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = v
}

func (s *Session) index(typ string) (string, error) {
	t, ok := s.reg.Type(typ)
	if !ok {
		return "", epicsearch.NewLookupError(typ, "", errors.New("unknown entity type"))
	}
	return t.Index, nil
}

// Entity returns the entity for key, reading it from the store on first
// use. A document missing from the store is a LookupError wrapping
// ErrNotFound.
func (s *Session) Entity(ctx context.Context, key epicsearch.Key) (*epicsearch.Entity, error) {
	e, err := s.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, epicsearch.NewLookupError(key.Type, key.ID, epicsearch.ErrNotFound)
	}
	return e, nil
}

// Lookup is like Entity but reports a missing document as a nil entity.
func (s *Session) Lookup(ctx context.Context, key epicsearch.Key) (*epicsearch.Entity, error) {
	if e, ok := s.cached(key); ok {
		return e.entity, nil
	}
	index, err := s.index(key.Type)
	if err != nil {
		return nil, err
	}
	v, err, _ := s.group.Do(key.String(), func() (any, error) {
		if e, ok := s.cached(key); ok {
			return e, nil
		}
		doc, err := s.store.Get(ctx, index, key.ID)
		if err != nil {
			return nil, epicsearch.NewStoreError("get", index, key.ID, err)
		}
		loaded, err := decode(key, doc)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			s.logger.DebugContext(ctx, "entity not found", "key", key.String())
		}
		return s.keep(key, loaded), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry).entity, nil
}

// Cached returns the entity for key if it is loaded in the session.
func (s *Session) Cached(key epicsearch.Key) (*epicsearch.Entity, bool) {
	e, ok := s.cached(key)
	if !ok || e.entity == nil {
		return nil, false
	}
	return e.entity, true
}

func (s *Session) cached(key epicsearch.Key) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// keep caches a loaded entity unless another load or mutation completed
// first, in which case the cached entry wins.
func (s *Session) keep(key epicsearch.Key, e *epicsearch.Entity) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[key]; ok {
		return cur
	}
	en := &entry{entity: e}
	s.entries[key] = en
	return en
}

func decode(key epicsearch.Key, doc *dialect.Document) (*epicsearch.Entity, error) {
	if doc == nil || !doc.Found {
		return nil, nil
	}
	e, err := epicsearch.Unmarshal(key, doc.Version, doc.Source)
	if err != nil {
		return nil, epicsearch.NewStoreError("decode", doc.Index, key.ID, err)
	}
	return e, nil
}

// SetEntity caches e, replacing any loaded copy, and marks it dirty.
func (s *Session) SetEntity(e *epicsearch.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = &entry{entity: e, dirty: true}
}

// MarkDirty schedules the cached entity for writing on the next flush.
func (s *Session) MarkDirty(key epicsearch.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.entity == nil {
		return epicsearch.NewLookupError(key.Type, key.ID, errors.New("entity is not loaded in the session"))
	}
	e.dirty = true
	return nil
}

// IsDirty reports whether the entity will be written on the next flush.
func (s *Session) IsDirty(key epicsearch.Key) bool {
	e, ok := s.cached(key)
	return ok && e.dirty
}

// CreateEntity registers a new, dirty entity. An empty id is assigned a
// random UUID.
func (s *Session) CreateEntity(typ, id string) (*epicsearch.Entity, error) {
	if _, err := s.index(typ); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	key := epicsearch.Key{Type: typ, ID: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[key]; ok && cur.entity != nil {
		return nil, epicsearch.NewLookupError(typ, id, errors.New("entity already exists"))
	}
	e := epicsearch.NewEntity(key)
	s.entries[key] = &entry{entity: e, dirty: true}
	return e, nil
}

// Dirty returns the keys of the dirty entities in sorted order.
func (s *Session) Dirty() []epicsearch.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []epicsearch.Key
	for k, e := range s.entries {
		if e.dirty && e.entity != nil {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b epicsearch.Key) int {
	return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
}

// Prefetch loads every key not yet cached with one multi-get per type.
// Types are fetched concurrently.
func (s *Session) Prefetch(ctx context.Context, keys []epicsearch.Key) error {
	missing := make(map[string][]string)
	for _, k := range keys {
		if _, ok := s.cached(k); ok || slices.Contains(missing[k.Type], k.ID) {
			continue
		}
		missing[k.Type] = append(missing[k.Type], k.ID)
	}
	if len(missing) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, typ := range slices.Sorted(maps.Keys(missing)) {
		index, err := s.index(typ)
		if err != nil {
			return err
		}
		for _, ids := range dialect.Chunk(missing[typ], s.batchSize) {
			g.Go(func() error {
				docs, err := s.store.MGet(ctx, index, ids)
				if err != nil {
					return epicsearch.NewStoreError("mget", index, "", err)
				}
				for i, doc := range docs {
					key := epicsearch.Key{Type: typ, ID: ids[i]}
					e, err := decode(key, doc)
					if err != nil {
						return err
					}
					s.keep(key, e)
				}
				return nil
			})
		}
	}
	s.logger.DebugContext(ctx, "prefetch", "types", len(missing), "keys", len(keys))
	return g.Wait()
}

// Search returns the entities of a type whose searchable terms match every
// given term, ordered by id. Cached copies replace store hits, and dirty
// entities not yet flushed are matched against their current terms.
func (s *Session) Search(ctx context.Context, typ string, terms map[string]string, limit int) ([]*epicsearch.Entity, error) {
	index, err := s.index(typ)
	if err != nil {
		return nil, err
	}
	q := dialect.Query{Index: index, Terms: terms}
	docs, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, epicsearch.NewStoreError("search", index, "", err)
	}
	found := make(map[string]*epicsearch.Entity, len(docs))
	for _, doc := range docs {
		key := epicsearch.Key{Type: typ, ID: doc.ID}
		e, err := decode(key, doc)
		if err != nil {
			return nil, err
		}
		if en := s.keep(key, e); en.entity != nil {
			found[doc.ID] = en.entity
		}
	}
	s.mu.Lock()
	for k, en := range s.entries {
		if k.Type != typ || en.entity == nil {
			continue
		}
		if q.Matches(epicsearch.Terms(en.entity)) {
			found[k.ID] = en.entity
		} else {
			delete(found, k.ID)
		}
	}
	s.mu.Unlock()
	out := make([]*epicsearch.Entity, 0, len(found))
	for _, id := range slices.Sorted(maps.Keys(found)) {
		out = append(out, found[id])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
