// Package worker provides an asynchronous worker pool that publishes memory
// events through a wrapped eventstream.Publisher.
//
// The pool decouples broker round trips from the memory manager's store and
// reabsorb paths so a slow or unreachable broker never stalls a turn.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 1
	defaultJobQueueSize uint = 256
)

const defaultPublishTimeout = 10 * time.Second

// ErrQueueFull is returned by Publish when the event could not be queued.
var ErrQueueFull = errors.New("event queue full, event dropped")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event pool closed")

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every queued event.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool. Defaults
	// to 1, which keeps events in enqueue order.
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds each publish made by a worker. Defaults to 10s.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes events asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan *eventstream.Event
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ eventstream.Publisher = (*Pool)(nil)

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("event pool requires a publisher")
	}
	if c.Logger == nil {
		return nil, errors.New("event pool requires a logger")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.Event, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Publish queues the event for a worker and returns without waiting on the
// broker. A full queue drops the event and returns ErrQueueFull.
func (p *Pool) Publish(_ context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			"event_type", event.EventType,
			"session_id", event.SessionID,
		)
		return nil
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			"event_type", event.EventType,
			"session_id", event.SessionID,
		)
		return ErrQueueFull
	}
}

// Close stops accepting events, waits for queued events to drain and then
// closes the wrapped publisher.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.config.Publisher.Close()
}

// worker is the inner worker thread that continuously pulls events off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("event worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("event worker stopped", "worker_id", id)
}

func (p *Pool) publish(event *eventstream.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("async event publish failed",
			"event_type", event.EventType,
			"session_id", event.SessionID,
			"error", err,
		)
		return
	}

	p.logger.Debug("event published",
		"event_type", event.EventType,
		"event_id", event.EventID,
	)
}
