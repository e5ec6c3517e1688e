package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/liberaldart/epicsearch-sub000"
	"github.com/liberaldart/epicsearch-sub000/dialect"
)

var errShortBulk = errors.New("store answered fewer writes than requested")

// FlushReport lists the outcome of a flush per dirty entity.
type FlushReport struct {
	Succeeded []epicsearch.Key
	Failed    []FlushFailure
}

// FlushFailure is an entity that could not be written.
type FlushFailure struct {
	Key epicsearch.Key
	Err error
}

// Writes returns the number of entities the flush tried to write.
func (r *FlushReport) Writes() int {
	return len(r.Succeeded) + len(r.Failed)
}

// Err returns the failures as one error, or nil when every write succeeded.
func (r *FlushReport) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f.Err
	}
	return epicsearch.NewAggregateError(errs...)
}

type pending struct {
	key    epicsearch.Key
	entity *epicsearch.Entity
	op     dialect.WriteOp
}

// Flush writes every dirty entity exactly once and clears its dirty flag.
// A failure on one entity does not stop the others: it is recorded in the
// report and the entity stays dirty.
func (s *Session) Flush(ctx context.Context) *FlushReport {
	report := &FlushReport{}
	byIndex := make(map[string][]pending)
	var indexes []string
	for _, key := range s.Dirty() {
		e, _ := s.Cached(key)
		index, err := s.index(key.Type)
		if err != nil {
			report.Failed = append(report.Failed, FlushFailure{Key: key, Err: err})
			continue
		}
		src, err := epicsearch.Marshal(e)
		if err != nil {
			report.Failed = append(report.Failed, FlushFailure{Key: key, Err: epicsearch.NewStoreError("encode", index, key.ID, err)})
			continue
		}
		if _, ok := byIndex[index]; !ok {
			indexes = append(indexes, index)
		}
		byIndex[index] = append(byIndex[index], pending{
			key:    key,
			entity: e,
			op:     dialect.WriteOp{Index: index, ID: key.ID, Source: src, Terms: epicsearch.Terms(e)},
		})
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, index := range indexes {
		for _, batch := range dialect.Chunk(byIndex[index], s.batchSize) {
			g.Go(func() error {
				ok, failed := s.write(ctx, index, batch)
				mu.Lock()
				defer mu.Unlock()
				report.Succeeded = append(report.Succeeded, ok...)
				report.Failed = append(report.Failed, failed...)
				return nil
			})
		}
	}
	_ = g.Wait()

	slices.SortFunc(report.Succeeded, compareKeys)
	slices.SortFunc(report.Failed, func(a, b FlushFailure) int { return compareKeys(a.Key, b.Key) })
	for _, f := range report.Failed {
		s.logger.WarnContext(ctx, "flush write failed", "key", f.Key.String(), slog.Any("error", f.Err))
	}
	if report.Writes() > 0 {
		s.logger.DebugContext(ctx, "flush", "succeeded", len(report.Succeeded), "failed", len(report.Failed))
	}
	return report
}

// write sends one bulk request and clears the dirty flag of every entity
// the store accepted.
func (s *Session) write(ctx context.Context, index string, batch []pending) ([]epicsearch.Key, []FlushFailure) {
	ops := make([]dialect.WriteOp, len(batch))
	for i, p := range batch {
		ops[i] = p.op
	}
	var (
		ok     []epicsearch.Key
		failed []FlushFailure
	)
	results, err := s.store.Bulk(ctx, ops)
	if err == nil && len(results) != len(ops) {
		err = errShortBulk
	}
	if err != nil {
		for _, p := range batch {
			failed = append(failed, FlushFailure{Key: p.key, Err: epicsearch.NewStoreError("bulk", index, p.key.ID, err)})
		}
		return nil, failed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, res := range results {
		p := batch[i]
		if res.Err != nil {
			failed = append(failed, FlushFailure{Key: p.key, Err: epicsearch.NewStoreError("bulk", index, p.key.ID, res.Err)})
			continue
		}
		p.entity.Version = res.Version
		if en, found := s.entries[p.key]; found && en.entity == p.entity {
			en.dirty = false
		}
		ok = append(ok, p.key)
	}
	return ok, failed
}
