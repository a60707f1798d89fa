// Package export pushes purchase records to an external report sink.
// Pushes are best-effort with an in-memory retry queue: a failed row is
// queued and retried in batches until the sink accepts it.
package export

import (
	"context"
	"sync"
	"time"

	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// Row is one report line, already rendered to cells.
type Row []string

// Sink appends rows to the external report.
type Sink interface {
	// AppendRow appends a single row.
	AppendRow(ctx context.Context, row Row) error

	// AppendRows appends a batch atomically: either the whole batch is
	// accepted or an error is returned and nothing may be assumed written.
	AppendRows(ctx context.Context, rows []Row) error
}

// QueueConfig tunes retry behaviour.
type QueueConfig struct {
	// RetryInterval is the pause before each retry batch.
	RetryInterval time.Duration

	// RetryBatchSize caps how many rows one retry attempt sends.
	RetryBatchSize int
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		RetryInterval:  60 * time.Second,
		RetryBatchSize: 100,
	}
}

// Queue wraps a Sink with retry semantics.
//
// A failed push lands in an in-memory queue. At most one drain goroutine
// exists at a time: Enqueue starts it only when none is running, checked
// under the same lock that guards the queue. The drain goroutine sleeps,
// takes a batch off the head, and on failure re-enqueues the whole batch
// at the tail, so no row is ever dropped while the process lives.
type Queue struct {
	sink   Sink
	log    *logger.Logger
	config QueueConfig

	mu       sync.Mutex
	pending  []Row
	draining bool

	// timestamps prepends submission time to every row.
	now func() time.Time

	// sleep is replaced in tests to skip real waiting.
	sleep func(ctx context.Context, d time.Duration)

	wg sync.WaitGroup
}

// NewQueue creates a retry queue in front of sink.
func NewQueue(sink Sink, log *logger.Logger, config QueueConfig) *Queue {
	if config.RetryInterval <= 0 {
		config.RetryInterval = 60 * time.Second
	}
	if config.RetryBatchSize <= 0 {
		config.RetryBatchSize = 100
	}

	return &Queue{
		sink:   sink,
		log:    log,
		config: config,
		now:  func() time.Time { return time.Now().UTC() },
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
	}
}

// Push appends a row to the sink, stamping it with the current time.
// On failure the row goes to the retry queue; Push never returns an error.
func (q *Queue) Push(ctx context.Context, cells ...string) {
	row := append(Row{q.now().Format("2006-01-02T15:04:05")}, cells...)

	if err := q.sink.AppendRow(ctx, row); err != nil {
		q.log.Warn("export push failed, queueing for retry", logger.Err(err))
		q.enqueue(ctx, row)
		return
	}
	q.log.Debug("export row pushed")
}

// enqueue stores the row and ensures a drain goroutine is running.
func (q *Queue) enqueue(ctx context.Context, row Row) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, row)
	if q.draining {
		return
	}
	q.draining = true
	q.wg.Add(1)
	go q.drain(ctx)
}

// drain retries pending rows until the queue empties or ctx is cancelled.
func (q *Queue) drain(ctx context.Context) {
	defer q.wg.Done()

	for {
		q.sleep(ctx, q.config.RetryInterval)
		if ctx.Err() != nil {
			q.stopDraining()
			return
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			q.log.Info("export retry queue drained")
			return
		}
		n := len(q.pending)
		if n > q.config.RetryBatchSize {
			n = q.config.RetryBatchSize
		}
		batch := q.pending[:n:n]
		q.pending = q.pending[n:]
		q.mu.Unlock()

		if err := q.sink.AppendRows(ctx, batch); err != nil {
			q.log.Error("export retry failed", logger.Err(err), logger.Int("batch", len(batch)))
			q.mu.Lock()
			q.pending = append(q.pending, batch...)
			q.mu.Unlock()
			continue
		}
		q.log.Info("export retry succeeded", logger.Int("batch", len(batch)))
	}
}

func (q *Queue) stopDraining() {
	q.mu.Lock()
	q.draining = false
	q.mu.Unlock()
}

// PendingCount returns the number of rows waiting for retry.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close waits for the drain goroutine to observe cancellation and exit.
// Pending rows are lost on shutdown; the report tolerates gaps better
// than the process tolerates hanging.
func (q *Queue) Close() {
	q.wg.Wait()
}
