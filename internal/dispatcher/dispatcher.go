package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/m3ts/referee/pkg/core"
)

// ErrQueueFull is returned when a buffered handler drops an event.
var ErrQueueFull = errors.New("queue full")

// HandlerFunc processes one detector event.
type HandlerFunc = func(core.Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type entry struct {
	subscriber string
	handle     HandlerFunc
	done       chan struct{} // closed on unsubscribe, nil for sync handlers
}

// Dispatcher routes detector events to the handlers subscribed to their kind.
// Handlers run in registration order, without any dispatcher lock held.
type Dispatcher struct {
	logger Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	mu       sync.RWMutex
	handlers map[core.EventKind][]*entry
	buffers  map[string]chan core.Event
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[core.EventKind][]*entry),
		buffers:  make(map[string]chan core.Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("handler", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler of subscriber for one event kind.
func (d *Dispatcher) Register(subscriber string, kind core.EventKind, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &entry{subscriber: subscriber, handle: h}
	name := subscriber + "/" + string(kind)

	if cfg.bufferSize > 0 {
		e.done = make(chan struct{})
		e.handle = d.withBuffer(name, cfg.bufferSize, e.done, e.handle)
	}

	if cfg.logged {
		e.handle = d.withLogging(name, e.handle)
	}

	d.mu.Lock()
	d.handlers[kind] = append(d.handlers[kind], e)
	d.mu.Unlock()
}

// Subscribe registers a synchronous handler for the given kinds, or for every
// kind when none are given.
func (d *Dispatcher) Subscribe(subscriber string, h HandlerFunc, kinds ...core.EventKind) {
	d.Source().Subscribe(subscriber, h, kinds...)
}

// Source is a view of a Dispatcher that applies its options to every
// subscription made through it.
type Source struct {
	d    *Dispatcher
	opts []Option
}

// Source returns a view of d subscribing handlers with opts.
func (d *Dispatcher) Source(opts ...Option) Source {
	return Source{d: d, opts: opts}
}

// Subscribe registers h for the given kinds, or for every kind when none are given.
func (s Source) Subscribe(subscriber string, h HandlerFunc, kinds ...core.EventKind) {
	if len(kinds) == 0 {
		kinds = core.EventKinds
	}
	for _, kind := range kinds {
		s.d.Register(subscriber, kind, h, s.opts...)
	}
}

// Unsubscribe removes every handler of subscriber.
func (s Source) Unsubscribe(subscriber string) {
	s.d.Unsubscribe(subscriber)
}

// Unsubscribe removes every handler of subscriber. Events already queued for
// a buffered handler are discarded.
func (d *Dispatcher) Unsubscribe(subscriber string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for kind, entries := range d.handlers {
		d.handlers[kind] = slices.DeleteFunc(entries, func(e *entry) bool {
			if e.subscriber != subscriber {
				return false
			}
			if e.done != nil {
				close(e.done)
				delete(d.buffers, subscriber+"/"+string(kind))
			}
			return true
		})
	}
}

// Dispatch delivers e to every handler subscribed to its kind. Having no
// handler is not an error.
func (d *Dispatcher) Dispatch(e core.Event) error {
	d.mu.RLock()
	entries := slices.Clone(d.handlers[e.Kind])
	d.mu.RUnlock()

	var errs []error
	for _, en := range entries {
		if err := en.handle(e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", en.subscriber, err))
		}
	}
	return errors.Join(errs...)
}

// Close unsubscribes everything and stops the buffered handlers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entries := range d.handlers {
		for _, e := range entries {
			if e.done != nil {
				close(e.done)
			}
		}
	}
	d.handlers = make(map[core.EventKind][]*entry)
	d.buffers = make(map[string]chan core.Event)
}

func (d *Dispatcher) withBuffer(name string, size int, done <-chan struct{}, h HandlerFunc) HandlerFunc {
	buffer := make(chan core.Event, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	attr := attribute.String("handler", name)

	go func() {
		for {
			select {
			case e := <-buffer:
				if err := h(e); err != nil {
					d.logger.Error("buffered handler failed", "handler", name, "error", err)
				}
				d.processed.Add(context.Background(), 1, metric.WithAttributes(attr))
			case <-done:
				return
			}
		}
	}()

	return func(e core.Event) error {
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(attr))
			return fmt.Errorf("%w: %s", ErrQueueFull, name)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e core.Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "handler", name, "kind", e.Kind, "side", e.Side)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "handler", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "handler", name, "duration", time.Since(start))
		}

		return err
	}
}
