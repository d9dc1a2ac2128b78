package messaging

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var (
	// ErrOutboxFull is returned when the recipient's shard has no room.
	ErrOutboxFull = errors.New("messaging: outbox full")
	// ErrOutboxClosed is returned after Close.
	ErrOutboxClosed = errors.New("messaging: outbox closed")
)

type outboundMessage struct {
	to   string
	body string
}

// Outbox delivers messages asynchronously. Each recipient hashes to one
// shard served by one worker, so a user's replies keep their order while
// different users are delivered in parallel.
type Outbox struct {
	transport   Transport
	sendTimeout time.Duration
	logger      *logging.Logger
	shards      []chan outboundMessage

	mu     sync.RWMutex
	closed bool
	hook   func(to string, err error)
	wg     sync.WaitGroup
}

// NewOutbox starts workers goroutines delivering through transport.
func NewOutbox(transport Transport, workers, buffer int, sendTimeout time.Duration, logger *logging.Logger) *Outbox {
	if transport == nil {
		panic("messaging: outbox transport required")
	}
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Outbox{
		transport:   transport,
		sendTimeout: sendTimeout,
		logger:      logger,
		shards:      make([]chan outboundMessage, workers),
	}
	for i := range o.shards {
		o.shards[i] = make(chan outboundMessage, buffer)
		o.wg.Add(1)
		go o.run(i, o.shards[i])
	}
	return o
}

var _ Transport = (*Outbox)(nil)

// OnResult registers a hook called after every delivery attempt.
func (o *Outbox) OnResult(fn func(to string, err error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hook = fn
}

// Send queues body for to and returns without waiting for delivery.
func (o *Outbox) Send(ctx context.Context, to, body string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrOutboxClosed
	}
	select {
	case o.shards[o.shardFor(to)] <- outboundMessage{to: to, body: body}:
		return nil
	default:
		o.logger.Warn("outbox shard full, message dropped", "to", to)
		return ErrOutboxFull
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, ch := range o.shards {
		close(ch)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Outbox) shardFor(to string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(to))
	return int(h.Sum32() % uint32(len(o.shards)))
}

func (o *Outbox) run(id int, ch <-chan outboundMessage) {
	defer o.wg.Done()
	o.logger.Debug("outbox worker started", "worker_id", id)
	for msg := range ch {
		ctx, cancel := context.WithTimeout(context.Background(), o.sendTimeout)
		err := o.transport.Send(ctx, msg.to, msg.body)
		cancel()
		if err != nil {
			o.logger.Warn("outbound send failed", "to", msg.to, "worker_id", id, "error", err)
		}
		o.mu.RLock()
		hook := o.hook
		o.mu.RUnlock()
		if hook != nil {
			hook(msg.to, err)
		}
	}
	o.logger.Debug("outbox worker stopped", "worker_id", id)
}
