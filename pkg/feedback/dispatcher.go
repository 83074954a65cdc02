// Package feedback submits message ratings in the background so the chat loop
// never waits on the feedback endpoint.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/logger"
)

var (
	defaultNumWorkers    uint = 2
	defaultQueueSize     uint = 64
	defaultSubmitTimeout      = 30 * time.Second
)

// Submitter delivers one feedback record. *client.Client implements it.
type Submitter interface {
	SubmitFeedback(ctx context.Context, fb chat.Feedback) error
}

// Config is the configuration for a Dispatcher.
type Config struct {
	// Submitter delivers the feedback.
	Submitter Submitter

	// NumWorkers is the number of background workers (defaults to 2).
	NumWorkers uint

	// QueueSize is the capacity of the buffered queue (defaults to 64).
	QueueSize uint

	// Timeout bounds each submission (defaults to 30s).
	Timeout time.Duration

	// OnResult is called from a worker goroutine after each submission. err
	// is nil on success. Optional.
	OnResult func(fb chat.Feedback, err error)

	Logger *slog.Logger
}

// Dispatcher submits feedback asynchronously through a worker pool.
type Dispatcher struct {
	config Config
	queue  chan chat.Feedback
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed and sends on queue
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher and starts its workers.
func NewDispatcher(c Config) (*Dispatcher, error) {
	if c.Submitter == nil {
		return nil, errors.New("feedback submitter is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Timeout == 0 {
		c.Timeout = defaultSubmitTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	d := &Dispatcher{
		config: c,
		queue:  make(chan chat.Feedback, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	d.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go d.worker(i)
	}

	return d, nil
}

// Enqueue submits fb for delivery. It never blocks: it returns false when the
// feedback is invalid, the queue is full, or the dispatcher is closed.
func (d *Dispatcher) Enqueue(fb chat.Feedback) bool {
	if err := fb.Validate(); err != nil {
		d.logger.Warn("feedback rejected", "message_id", fb.MessageID, "error", err)
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("feedback dropped, dispatcher closed", "message_id", fb.MessageID)
		return false
	}

	select {
	case d.queue <- fb:
		d.logger.Debug("feedback queued",
			"message_id", fb.MessageID,
			"rating", string(fb.Rating),
		)
		return true
	default:
		d.logger.Error("feedback not queued, queue full, feedback dropped",
			"message_id", fb.MessageID,
		)
		return false
	}
}

// Close stops accepting feedback and waits for queued submissions to drain.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker(id uint) {
	defer d.wg.Done()
	d.logger.Debug("feedback worker started", "worker_id", id)

	for fb := range d.queue {
		d.submit(fb)
	}

	d.logger.Debug("feedback worker stopped", "worker_id", id)
}

func (d *Dispatcher) submit(fb chat.Feedback) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	err := d.config.Submitter.SubmitFeedback(ctx, fb)
	if err != nil {
		d.logger.Error("feedback submission failed",
			"message_id", fb.MessageID,
			"error", err,
		)
	} else {
		d.logger.Info("feedback submitted",
			"message_id", fb.MessageID,
			"rating", string(fb.Rating),
		)
	}

	if d.config.OnResult != nil {
		d.config.OnResult(fb, err)
	}
}
