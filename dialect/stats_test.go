package dialect_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liberaldart/epicsearch-sub000/dialect"
	"github.com/liberaldart/epicsearch-sub000/dialect/mem"
)

func TestStatsStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := mem.New()
	inner.InjectFault("events", "bad", errors.New("disk full"))
	st := dialect.WithStats(inner, dialect.WithSlowThreshold(time.Hour))

	_, err := st.Put(ctx, dialect.WriteOp{Index: "events", ID: "e1", Source: []byte("x")})
	require.NoError(t, err)
	res, err := st.Bulk(ctx, []dialect.WriteOp{
		{Index: "events", ID: "e2"},
		{Index: "events", ID: "bad"},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Error(t, res[1].Err)

	_, err = st.Get(ctx, "events", "e1")
	require.NoError(t, err)
	_, err = st.Get(ctx, "events", "bad")
	require.Error(t, err)
	_, err = st.MGet(ctx, "events", []string{"e1", "e2"})
	require.NoError(t, err)
	_, err = st.Search(ctx, dialect.Query{Index: "events"})
	require.NoError(t, err)

	snap := st.OpStats().Stats()
	assert.Equal(t, int64(3), snap.Gets)
	assert.Equal(t, int64(2), snap.Writes)
	assert.Equal(t, int64(1), snap.Searches)
	assert.Equal(t, int64(2), snap.Documents)
	assert.Equal(t, int64(2), snap.Errors)
	assert.Equal(t, int64(0), snap.SlowOps)
	assert.Equal(t, int64(6), snap.Ops())
	assert.Contains(t, snap.String(), "gets=3 writes=2 searches=1")

	st.OpStats().Reset()
	assert.Equal(t, dialect.StatsSnapshot{}, st.OpStats().Stats())
}

func TestStatsStoreSlowHook(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ops []string
	)
	st := dialect.WithStats(mem.New(mem.WithDelay(5*time.Millisecond)),
		dialect.WithSlowThreshold(time.Millisecond),
		dialect.WithSlowOpHook(func(_ context.Context, op, index string, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			ops = append(ops, op+":"+index)
		}),
	)
	assert.Equal(t, time.Millisecond, st.SlowThreshold())

	_, err := st.Get(context.Background(), "events", "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"get:events"}, ops)
	assert.Equal(t, int64(1), st.OpStats().Stats().SlowOps)

	st.SetSlowThreshold(time.Hour)
	_, err = st.Get(context.Background(), "events", "e1")
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestStatsSnapshotAverage(t *testing.T) {
	t.Parallel()

	assert.Zero(t, dialect.StatsSnapshot{}.AvgDuration())
	s := dialect.StatsSnapshot{Gets: 2, Writes: 1, Searches: 1, TotalDuration: 8 * time.Millisecond}
	assert.Equal(t, 2*time.Millisecond, s.AvgDuration())
}
