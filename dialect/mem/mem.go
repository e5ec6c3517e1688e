// Package mem provides an in-memory document store.
//
// The store keeps documents in maps guarded by a read-write mutex and counts
// every call it serves. Tests use the counters to assert how many round trips
// a session issued, and InjectFault to simulate store failures per document.
package mem

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/liberaldart/epicsearch-sub000/dialect"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("mem: store is closed")

type record struct {
	version int64
	source  []byte
	terms   map[string][]string
}

type docKey struct {
	index string
	id    string
}

// Calls counts the operations served by a store.
type Calls struct {
	Gets     int64
	MGets    int64
	Puts     int64
	Bulks    int64
	Searches int64
}

// Store is an in-memory dialect.Store.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]map[string]*record
	faults map[docKey]error
	closed bool
	delay  time.Duration

	gets, mgets, puts, bulks, searches atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithDelay makes every read wait d before answering.
func WithDelay(d time.Duration) Option {
	return func(s *Store) {
		s.delay = d
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:   make(map[string]map[string]*record),
		faults: make(map[docKey]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InjectFault makes every access to the document fail with err.
// A nil err clears the fault.
func (s *Store) InjectFault(index, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, docKey{index, id})
		return
	}
	s.faults[docKey{index, id}] = err
}

// Calls returns the operation counters.
func (s *Store) Calls() Calls {
	return Calls{
		Gets:     s.gets.Load(),
		MGets:    s.mgets.Load(),
		Puts:     s.puts.Load(),
		Bulks:    s.bulks.Load(),
		Searches: s.searches.Load(),
	}
}

// Writes returns the number of write calls.
func (s *Store) Writes() int64 {
	return s.puts.Load() + s.bulks.Load()
}

// ResetCalls zeroes the operation counters.
func (s *Store) ResetCalls() {
	s.gets.Store(0)
	s.mgets.Store(0)
	s.puts.Store(0)
	s.bulks.Store(0)
	s.searches.Store(0)
}

// Len returns the number of documents in an index.
func (s *Store) Len(index string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[index])
}

func (s *Store) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get implements dialect.Store.
func (s *Store) Get(ctx context.Context, index, id string) (*dialect.Document, error) {
	s.gets.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.faults[docKey{index, id}]; err != nil {
		return nil, err
	}
	return s.document(index, id), nil
}

// MGet implements dialect.Store.
func (s *Store) MGet(ctx context.Context, index string, ids []string) ([]*dialect.Document, error) {
	s.mgets.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	docs := make([]*dialect.Document, len(ids))
	for i, id := range ids {
		if err := s.faults[docKey{index, id}]; err != nil {
			return nil, err
		}
		docs[i] = s.document(index, id)
	}
	return docs, nil
}

func (s *Store) document(index, id string) *dialect.Document {
	r, ok := s.docs[index][id]
	if !ok {
		return &dialect.Document{Index: index, ID: id}
	}
	return &dialect.Document{
		Index:   index,
		ID:      id,
		Version: r.version,
		Source:  slices.Clone(r.source),
		Terms:   cloneTerms(r.terms),
		Found:   true,
	}
}

// Put implements dialect.Store.
func (s *Store) Put(ctx context.Context, op dialect.WriteOp) (dialect.WriteResult, error) {
	s.puts.Add(1)
	if err := ctx.Err(); err != nil {
		return dialect.WriteResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return dialect.WriteResult{}, ErrClosed
	}
	res := s.write(op)
	return res, res.Err
}

// Bulk implements dialect.Store.
func (s *Store) Bulk(ctx context.Context, ops []dialect.WriteOp) ([]dialect.WriteResult, error) {
	s.bulks.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	results := make([]dialect.WriteResult, len(ops))
	for i, op := range ops {
		results[i] = s.write(op)
	}
	return results, nil
}

func (s *Store) write(op dialect.WriteOp) dialect.WriteResult {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	res := dialect.WriteResult{Index: op.Index, ID: op.ID}
	if err := s.faults[docKey{op.Index, op.ID}]; err != nil {
		res.Err = err
		return res
	}
	idx := s.docs[op.Index]
	if idx == nil {
		idx = make(map[string]*record)
		s.docs[op.Index] = idx
	}
	r, ok := idx[op.ID]
	if !ok {
		r = &record{}
		idx[op.ID] = r
		res.Created = true
	}
	r.version++
	r.source = slices.Clone(op.Source)
	r.terms = cloneTerms(op.Terms)
	res.Version = r.version
	return res
}

// Search implements dialect.Store.
func (s *Store) Search(ctx context.Context, q dialect.Query) ([]*dialect.Document, error) {
	s.searches.Add(1)
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	idx := s.docs[q.Index]
	ids := make([]string, 0, len(idx))
	for id, r := range idx {
		if q.Matches(r.terms) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	docs := make([]*dialect.Document, len(ids))
	for i, id := range ids {
		docs[i] = s.document(q.Index, id)
	}
	return docs, nil
}

// Close implements dialect.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneTerms(terms map[string][]string) map[string][]string {
	if terms == nil {
		return nil
	}
	c := make(map[string][]string, len(terms))
	for f, vs := range terms {
		c[f] = slices.Clone(vs)
	}
	return c
}

var _ dialect.Store = (*Store)(nil)
