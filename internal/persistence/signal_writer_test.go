package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"strategy-lab/pkg/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	batches [][]db.LiveSignal
	err     error
}

func (m *memStore) InsertLiveSignals(_ context.Context, batch []db.LiveSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, batch)
	return nil
}

func (m *memStore) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func signal(i int) db.LiveSignal {
	return db.LiveSignal{Symbol: "SBER", Account: "paper", Action: "ENTER_LONG", Price: float64(100 + i)}
}

func TestFlushOnFullBuffer(t *testing.T) {
	store := &memStore{}
	w := NewSignalWriter(store, 3, time.Hour, nil)
	defer w.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, w.InsertLiveSignal(ctx, signal(i)))
	}
	assert.Equal(t, 2, w.Pending())
	assert.Zero(t, store.rows())

	require.NoError(t, w.InsertLiveSignal(ctx, signal(2)))
	assert.Zero(t, w.Pending())
	assert.Equal(t, 3, store.rows())

	m := w.Metrics()
	assert.EqualValues(t, 3, m.TotalWrites)
	assert.EqualValues(t, 1, m.TotalBatches)
	assert.Equal(t, 3, m.LastBatchSize)
	assert.False(t, m.LastFlushTime.IsZero())
}

func TestTimerFlush(t *testing.T) {
	store := &memStore{}
	w := NewSignalWriter(store, 100, 10*time.Millisecond, nil)
	defer w.Close()

	require.NoError(t, w.InsertLiveSignal(context.Background(), signal(0)))
	assert.Eventually(t, func() bool { return store.rows() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCloseFlushesAndRejects(t *testing.T) {
	store := &memStore{}
	w := NewSignalWriter(store, 100, time.Hour, nil)

	require.NoError(t, w.InsertLiveSignal(context.Background(), signal(0)))
	require.NoError(t, w.Close())
	assert.Equal(t, 1, store.rows())

	assert.ErrorIs(t, w.InsertLiveSignal(context.Background(), signal(1)), ErrClosed)
	assert.NoError(t, w.Close())
}

func TestStoreErrorCounted(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	w := NewSignalWriter(store, 1, time.Hour, nil)
	defer w.Close()

	err := w.InsertLiveSignal(context.Background(), signal(0))
	assert.Error(t, err)
	assert.EqualValues(t, 1, w.Metrics().TotalErrors)
}

func TestWritesThroughToSQLite(t *testing.T) {
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	w := NewSignalWriter(database, 10, time.Hour, nil)
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, w.InsertLiveSignal(ctx, db.LiveSignal{Symbol: "SBER", Account: "paper", Action: "ENTER_LONG", Price: 250, Time: ts}))
	require.NoError(t, w.Close())

	got, err := database.ListLiveSignals(ctx, "SBER", "paper", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 250.0, got[0].Price)
}
