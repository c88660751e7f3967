package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kaizenverse/liveclass/internal/metrics"
)

const (
	writeAttempts = 3
	writeTimeout  = 5 * time.Second
	retryBackoff  = 250 * time.Millisecond
)

type writeTask struct {
	op string
	fn func(context.Context) error
}

// Writer runs best-effort store writes off the signaling path. Enqueue
// never blocks: when the queue is full the write is dropped, counted and
// logged. Each task gets a bounded number of attempts with backoff; a
// final failure is logged and swallowed, never propagated to signaling.
type Writer struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan writeTask
	done   chan struct{}
}

func NewWriter(queueSize int) *Writer {
	w := &Writer{
		tasks: make(chan writeTask, queueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules a write. Safe to call from any goroutine, including
// after Close: connections torn down during shutdown still race their
// bookkeeping in here, and those writes degrade to the drop path.
func (w *Writer) Enqueue(op string, fn func(context.Context) error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		metrics.StoreWritesDropped.Inc()
		log.Warn().Str("module", "store.writer").Str("op", op).Msg("write queue closed, dropping")
		return
	}
	select {
	case w.tasks <- writeTask{op: op, fn: fn}:
	default:
		metrics.StoreWritesDropped.Inc()
		log.Warn().Str("module", "store.writer").Str("op", op).Msg("write queue full, dropping")
	}
}

// Close drains outstanding tasks and stops the worker. Idempotent.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.tasks)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for task := range w.tasks {
		w.execute(task)
	}
}

func (w *Writer) execute(task writeTask) {
	var err error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = task.fn(ctx)
		cancel()
		if err == nil {
			return
		}
		if attempt < writeAttempts {
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}
	}
	metrics.StoreWriteFailures.WithLabelValues(task.op).Inc()
	log.Error().Err(err).Str("module", "store.writer").Str("op", task.op).
		Int("attempts", writeAttempts).Msg("store write failed")
}
