package dialect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// OpStats holds store operation statistics.
type OpStats struct {
	// Gets is the number of Get and MGet calls.
	Gets atomic.Int64
	// Writes is the number of Put and Bulk calls.
	Writes atomic.Int64
	// Searches is the number of Search calls.
	Searches atomic.Int64
	// Documents is the number of documents written.
	Documents atomic.Int64
	// TotalDuration is the total time spent in the store.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowOps is the count of operations exceeding the slow threshold.
	SlowOps atomic.Int64
	// Errors is the count of failed operations and failed bulk items.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *OpStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		Gets:          s.Gets.Load(),
		Writes:        s.Writes.Load(),
		Searches:      s.Searches.Load(),
		Documents:     s.Documents.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowOps:       s.SlowOps.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *OpStats) Reset() {
	s.Gets.Store(0)
	s.Writes.Store(0)
	s.Searches.Store(0)
	s.Documents.Store(0)
	s.TotalDuration.Store(0)
	s.SlowOps.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of store statistics.
type StatsSnapshot struct {
	Gets          int64
	Writes        int64
	Searches      int64
	Documents     int64
	TotalDuration time.Duration
	SlowOps       int64
	Errors        int64
}

// Ops returns the number of store calls.
func (s StatsSnapshot) Ops() int64 {
	return s.Gets + s.Writes + s.Searches
}

// AvgDuration returns the average operation duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	if s.Ops() == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Ops())
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"gets=%d writes=%d searches=%d docs=%d duration=%s avg=%s slow=%d errors=%d",
		s.Gets, s.Writes, s.Searches, s.Documents, s.TotalDuration, s.AvgDuration(),
		s.SlowOps, s.Errors,
	)
}

// SlowOpHook is called when a slow store operation is detected.
type SlowOpHook func(ctx context.Context, op, index string, duration time.Duration)

// StatsStore wraps a Store with statistics collection.
type StatsStore struct {
	Store
	stats         *OpStats
	slowThreshold time.Duration
	slowHook      SlowOpHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsStore.
type StatsOption func(*StatsStore)

// WithSlowThreshold sets the threshold for slow operation detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsStore) {
		s.slowThreshold = d
	}
}

// WithSlowOpHook sets a callback for slow operations.
func WithSlowOpHook(hook SlowOpHook) StatsOption {
	return func(s *StatsStore) {
		s.slowHook = hook
	}
}

// WithSlowOpLog logs slow operations to the given logger, or to the
// default logger when l is nil.
func WithSlowOpLog(l *slog.Logger) StatsOption {
	return WithSlowOpHook(func(ctx context.Context, op, index string, duration time.Duration) {
		logger := l
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "slow store operation detected",
			slog.String("op", op),
			slog.String("index", index),
			slog.Duration("duration", duration),
		)
	})
}

// WithStats wraps a Store with statistics collection.
func WithStats(store Store, opts ...StatsOption) *StatsStore {
	s := &StatsStore{
		Store:         store,
		stats:         &OpStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpStats returns the underlying statistics.
func (s *StatsStore) OpStats() *OpStats {
	return s.stats
}

// SlowThreshold returns the current slow operation threshold.
func (s *StatsStore) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow operation threshold.
func (s *StatsStore) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// Get fetches a document and records statistics.
func (s *StatsStore) Get(ctx context.Context, index, id string) (*Document, error) {
	start := time.Now()
	doc, err := s.Store.Get(ctx, index, id)
	s.stats.Gets.Add(1)
	s.record(ctx, "get", index, start, err)
	return doc, err
}

// MGet fetches documents and records statistics.
func (s *StatsStore) MGet(ctx context.Context, index string, ids []string) ([]*Document, error) {
	start := time.Now()
	docs, err := s.Store.MGet(ctx, index, ids)
	s.stats.Gets.Add(1)
	s.record(ctx, "mget", index, start, err)
	return docs, err
}

// Put writes a document and records statistics.
func (s *StatsStore) Put(ctx context.Context, op WriteOp) (WriteResult, error) {
	start := time.Now()
	res, err := s.Store.Put(ctx, op)
	s.stats.Writes.Add(1)
	if err == nil {
		s.stats.Documents.Add(1)
	}
	s.record(ctx, "put", op.Index, start, err)
	return res, err
}

// Bulk writes documents and records statistics. Failed items count as errors.
func (s *StatsStore) Bulk(ctx context.Context, ops []WriteOp) ([]WriteResult, error) {
	start := time.Now()
	res, err := s.Store.Bulk(ctx, ops)
	s.stats.Writes.Add(1)
	for _, r := range res {
		if r.Err != nil {
			s.stats.Errors.Add(1)
			continue
		}
		s.stats.Documents.Add(1)
	}
	index := ""
	if len(ops) > 0 {
		index = ops[0].Index
	}
	s.record(ctx, "bulk", index, start, err)
	return res, err
}

// Search runs a query and records statistics.
func (s *StatsStore) Search(ctx context.Context, q Query) ([]*Document, error) {
	start := time.Now()
	docs, err := s.Store.Search(ctx, q)
	s.stats.Searches.Add(1)
	s.record(ctx, "search", q.Index, start, err)
	return docs, err
}

func (s *StatsStore) record(ctx context.Context, op, index string, start time.Time, err error) {
	duration := time.Since(start)
	s.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		s.stats.Errors.Add(1)
	}

	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	if duration > threshold {
		s.stats.SlowOps.Add(1)
		if hook != nil {
			hook(ctx, op, index, duration)
		}
	}
}

var _ Store = (*StatsStore)(nil)
