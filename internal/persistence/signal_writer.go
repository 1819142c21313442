// Package persistence batches writes that the live path should not wait on.
package persistence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"strategy-lab/pkg/db"

	"go.uber.org/zap"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("signal writer closed")

// BatchStore persists a batch of live signals atomically.
type BatchStore interface {
	InsertLiveSignals(ctx context.Context, signals []db.LiveSignal) error
}

// SignalWriter buffers live signals and flushes them in transactions, either
// when the buffer fills or on a timer.
type SignalWriter struct {
	store    BatchStore
	logger   *zap.Logger
	maxSize  int
	interval time.Duration

	mu     sync.Mutex
	buffer []db.LiveSignal
	closed bool

	done chan struct{}
	wg   sync.WaitGroup

	totalWrites   atomic.Uint64
	totalBatches  atomic.Uint64
	totalErrors   atomic.Uint64
	lastBatchSize atomic.Int64
	lastFlush     atomic.Int64
}

// WriterMetrics provides statistics about batch operations.
type WriterMetrics struct {
	TotalWrites   uint64    `json:"total_writes"`
	TotalBatches  uint64    `json:"total_batches"`
	TotalErrors   uint64    `json:"total_errors"`
	LastBatchSize int       `json:"last_batch_size"`
	LastFlushTime time.Time `json:"last_flush_time"`
}

// NewSignalWriter starts a writer flushing at most maxSize rows at a time,
// and at least every interval.
func NewSignalWriter(store BatchStore, maxSize int, interval time.Duration, logger *zap.Logger) *SignalWriter {
	if maxSize <= 0 {
		maxSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &SignalWriter{
		store:    store,
		logger:   logger,
		maxSize:  maxSize,
		interval: interval,
		buffer:   make([]db.LiveSignal, 0, maxSize),
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.backgroundFlush()

	return w
}

// InsertLiveSignal queues s. It satisfies the live trader's recorder.
func (w *SignalWriter) InsertLiveSignal(ctx context.Context, s db.LiveSignal) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.buffer = append(w.buffer, s)
	shouldFlush := len(w.buffer) >= w.maxSize
	w.mu.Unlock()

	if shouldFlush {
		return w.Flush(ctx)
	}
	return nil
}

// Flush immediately writes all buffered signals.
func (w *SignalWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}
	batch := w.buffer
	w.buffer = make([]db.LiveSignal, 0, w.maxSize)
	w.mu.Unlock()

	return w.write(ctx, batch)
}

func (w *SignalWriter) write(ctx context.Context, batch []db.LiveSignal) error {
	w.totalWrites.Add(uint64(len(batch)))
	w.totalBatches.Add(1)
	w.lastBatchSize.Store(int64(len(batch)))
	w.lastFlush.Store(time.Now().UnixNano())

	if err := w.store.InsertLiveSignals(ctx, batch); err != nil {
		w.totalErrors.Add(1)
		w.logger.Error("signal batch failed", zap.Int("size", len(batch)), zap.Error(err))
		return err
	}
	w.logger.Debug("signal batch flushed", zap.Int("size", len(batch)))
	return nil
}

func (w *SignalWriter) backgroundFlush() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush(context.Background())
		case <-w.done:
			// Final flush before shutdown
			_ = w.Flush(context.Background())
			return
		}
	}
}

// Pending returns the number of buffered signals.
func (w *SignalWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Metrics returns the current batch statistics.
func (w *SignalWriter) Metrics() WriterMetrics {
	m := WriterMetrics{
		TotalWrites:   w.totalWrites.Load(),
		TotalBatches:  w.totalBatches.Load(),
		TotalErrors:   w.totalErrors.Load(),
		LastBatchSize: int(w.lastBatchSize.Load()),
	}
	if ns := w.lastFlush.Load(); ns > 0 {
		m.LastFlushTime = time.Unix(0, ns)
	}
	return m
}

// Close flushes what is left and stops the background loop.
func (w *SignalWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return nil
}
