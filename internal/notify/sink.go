// Package notify fans booking events out to external sinks.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinic-intake/internal/events"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// Sink accepts booking events. Delivery and retries are the sink's own
// business; the dispatcher only bounds how long it waits.
type Sink interface {
	Name() string
	Notify(ctx context.Context, evt events.AppointmentBookedV1) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, evt events.AppointmentBookedV1) error
}

func (f SinkFunc) Name() string { return f.SinkName }

func (f SinkFunc) Notify(ctx context.Context, evt events.AppointmentBookedV1) error {
	return f.Fn(ctx, evt)
}

// ResultHook observes each sink delivery.
type ResultHook func(sink string, err error)

// Dispatcher delivers each event to every sink on its own goroutine.
// Publish returns immediately; failures are logged and never reach the
// caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *logging.Logger
	hook    ResultHook

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher builds a dispatcher. timeout <= 0 defaults to 5s.
func NewDispatcher(timeout time.Duration, logger *logging.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return &Dispatcher{sinks: live, timeout: timeout, logger: logger}
}

// OnResult registers a hook called after every delivery attempt.
func (d *Dispatcher) OnResult(hook ResultHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hook = hook
}

// Sinks lists the registered sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Publish hands evt to every sink. Events published after Close are
// dropped.
func (d *Dispatcher) Publish(evt events.AppointmentBookedV1) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("notification dropped after shutdown", "appointment_id", evt.AppointmentID)
		return
	}
	hook := d.hook
	d.wg.Add(len(d.sinks))
	d.mu.Unlock()

	for _, sink := range d.sinks {
		go func(sink Sink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			err := sink.Notify(ctx, evt)
			if err != nil {
				d.logger.Warn("notification sink failed", "sink", sink.Name(), "appointment_id", evt.AppointmentID, "error", err)
			} else {
				d.logger.Debug("notification delivered", "sink", sink.Name(), "appointment_id", evt.AppointmentID)
			}
			if hook != nil {
				hook(sink.Name(), err)
			}
		}(sink)
	}
}

// Close stops accepting events and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
