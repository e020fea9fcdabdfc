package state

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// DefaultCheckpointQueueSize bounds the number of pending checkpoint writes.
const DefaultCheckpointQueueSize = 256

// AsyncCheckpointer writes checkpoints on a background goroutine so that
// callers never block on storage. When the queue is full the checkpoint is
// dropped and counted. Write failures are logged and otherwise ignored.
type AsyncCheckpointer struct {
	store   CheckpointWriter
	logger  *charmlog.Logger
	timeout time.Duration

	queue   chan *Checkpoint
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64
}

// NewAsyncCheckpointer starts a background writer for store. A nil logger
// discards log output. A queueSize of zero or less uses the default.
func NewAsyncCheckpointer(store CheckpointWriter, logger *charmlog.Logger, queueSize int) *AsyncCheckpointer {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	if queueSize <= 0 {
		queueSize = DefaultCheckpointQueueSize
	}
	a := &AsyncCheckpointer{
		store:   store,
		logger:  logger,
		timeout: 10 * time.Second,
		queue:   make(chan *Checkpoint, queueSize),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncCheckpointer) run() {
	defer close(a.done)
	for cp := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.store.CreateCheckpoint(ctx, cp)
		cancel()
		if err != nil {
			a.failed.Add(1)
			a.logger.Warn("checkpoint write failed",
				"workflow", cp.WorkflowID, "checkpoint", cp.CheckpointName, "err", err)
			continue
		}
		a.written.Add(1)
		a.logger.Debug("checkpoint written", "workflow", cp.WorkflowID, "checkpoint", cp.CheckpointName)
	}
}

// Enqueue schedules cp for writing without blocking. It reports whether the
// checkpoint was accepted.
func (a *AsyncCheckpointer) Enqueue(cp *Checkpoint) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return false
	}
	select {
	case a.queue <- cp:
		return true
	default:
		a.dropped.Add(1)
		a.logger.Warn("checkpoint queue full, dropping", "workflow", cp.WorkflowID, "checkpoint", cp.CheckpointName)
		return false
	}
}

// CreateCheckpoint enqueues cp and returns immediately. It never fails, so
// an AsyncCheckpointer can stand in wherever a CheckpointWriter is expected.
func (a *AsyncCheckpointer) CreateCheckpoint(_ context.Context, cp *Checkpoint) error {
	a.Enqueue(cp)
	return nil
}

// Close stops accepting checkpoints and waits for queued ones to be written
// or for ctx to end.
func (a *AsyncCheckpointer) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports how many checkpoints were written, failed and dropped.
func (a *AsyncCheckpointer) Stats() (written, failed, dropped int64) {
	return a.written.Load(), a.failed.Load(), a.dropped.Load()
}
