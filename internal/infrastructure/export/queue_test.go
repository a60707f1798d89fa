package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro-hub/bonus-hub/pkg/logger"
)

// fakeSink records appended rows and fails on demand.
type fakeSink struct {
	mu       sync.Mutex
	rows     []Row
	failNext int
	calls    int
}

func (s *fakeSink) AppendRow(ctx context.Context, row Row) error {
	return s.AppendRows(ctx, []Row{row})
}

func (s *fakeSink) AppendRows(ctx context.Context, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failNext > 0 {
		s.failNext--
		return errors.New("sink unavailable")
	}
	s.rows = append(s.rows, rows...)
	return nil
}

func (s *fakeSink) accepted() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

func newTestQueue(sink Sink, cfg QueueConfig) *Queue {
	q := NewQueue(sink, logger.Default(), cfg)
	q.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	// Skip real waiting in tests
	q.sleep = func(ctx context.Context, d time.Duration) {}
	return q
}

func TestQueue_PushDirect(t *testing.T) {
	sink := &fakeSink{}
	q := newTestQueue(sink, DefaultQueueConfig())

	q.Push(context.Background(), "42", "sticker_pack", "200")

	rows := sink.accepted()
	require.Len(t, rows, 1)
	// Submission time is prepended as the first cell
	assert.Equal(t, Row{"2026-03-01T12:00:00", "42", "sticker_pack", "200"}, rows[0])
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueue_RetryAfterFailure(t *testing.T) {
	sink := &fakeSink{failNext: 1}
	q := newTestQueue(sink, DefaultQueueConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Push(ctx, "42", "sticker_pack", "200")
	// The drain goroutine retries and empties the queue
	q.wg.Wait()

	rows := sink.accepted()
	require.Len(t, rows, 1)
	assert.Equal(t, "42", rows[0][1])
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueue_FailedBatchGoesBackToTail(t *testing.T) {
	// Direct push fails, then the first retry fails too
	sink := &fakeSink{failNext: 2}
	q := newTestQueue(sink, DefaultQueueConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Push(ctx, "1")
	q.wg.Wait()

	// No row lost despite two failures
	require.Len(t, sink.accepted(), 1)
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueue_BatchSizeCap(t *testing.T) {
	sink := &fakeSink{failNext: 3}
	cfg := DefaultQueueConfig()
	cfg.RetryBatchSize = 2
	q := newTestQueue(sink, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Push(ctx, "1")
	q.Push(ctx, "2")
	q.Push(ctx, "3")
	q.wg.Wait()

	rows := sink.accepted()
	require.Len(t, rows, 3)
	assert.Equal(t, 0, q.PendingCount())
}

func TestQueue_CancelledContextStopsDrain(t *testing.T) {
	sink := &fakeSink{failNext: 1 << 30}
	q := newTestQueue(sink, DefaultQueueConfig())

	ctx, cancel := context.WithCancel(context.Background())
	q.Push(ctx, "1")
	cancel()

	q.Close()
	// The row stays pending; shutdown tolerates the gap
	assert.Equal(t, 1, q.PendingCount())
}
