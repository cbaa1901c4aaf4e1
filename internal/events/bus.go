package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Kind identifies a closed set of event types carried by a Bus.
type Kind interface {
	comparable
	String() string
}

// Event is any value that reports its Kind.
type Event[K Kind] interface {
	Kind() K
}

// Listener handles one delivered event. A returned error is logged and does
// not stop delivery to the remaining listeners.
type Listener[E any] func(E) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a Bus.
type Option func(*config)

type config struct {
	name   string
	logged bool
	logger Logger
}

// Named sets the bus name used in logs and metric attributes.
func Named(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Logged adds debug logging for every emission.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// WithLogger replaces the logger passed to New.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Subscription identifies a single registration returned by On.
type Subscription[K Kind] struct {
	kind K
	id   uint64
}

// Kind returns the event kind the subscription listens to.
func (s Subscription[K]) Kind() K {
	return s.kind
}

type entry[E any] struct {
	id uint64
	fn Listener[E]
}

// Bus delivers events synchronously to listeners registered per kind.
type Bus[K Kind, E Event[K]] struct {
	cfg config

	mu        sync.RWMutex
	listeners map[K][]entry[E]
	nextID    uint64

	// OTEL metrics
	emitted     metric.Int64Counter
	failures    metric.Int64Counter
	subscribers metric.Int64UpDownCounter
}

// New creates a Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New[K Kind, E Event[K]](logger Logger, opts ...Option) (*Bus[K, E], error) {
	cfg := config{name: "events", logger: logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		return nil, errors.New("events: logger is required")
	}

	b := &Bus[K, E]{
		cfg:       cfg,
		listeners: make(map[K][]entry[E]),
	}

	m := meter()

	var err error

	b.emitted, err = m.Int64Counter(
		"events.emitted",
		metric.WithDescription("Total events emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	b.failures, err = m.Int64Counter(
		"events.listener.failures",
		metric.WithDescription("Total listener invocations that returned an error or panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	b.subscribers, err = m.Int64UpDownCounter(
		"events.listeners",
		metric.WithDescription("Currently registered listeners"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating listeners counter: %w", err)
	}

	return b, nil
}

// On registers fn for every future event of the given kind. Registrations
// accumulate in order and are not deduplicated.
func (b *Bus[K, E]) On(kind K, fn Listener[E]) Subscription[K] {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[kind] = append(b.listeners[kind], entry[E]{id: id, fn: fn})
	b.mu.Unlock()

	b.subscribers.Add(context.Background(), 1, b.attrs(kind))
	return Subscription[K]{kind: kind, id: id}
}

// Off removes the registration identified by sub. It reports whether the
// registration was found; unknown subscriptions are a no-op.
func (b *Bus[K, E]) Off(sub Subscription[K]) bool {
	b.mu.Lock()
	list := b.listeners[sub.kind]
	idx := slices.IndexFunc(list, func(e entry[E]) bool { return e.id == sub.id })
	if idx < 0 {
		b.mu.Unlock()
		return false
	}
	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(b.listeners, sub.kind)
	} else {
		b.listeners[sub.kind] = list
	}
	b.mu.Unlock()

	b.subscribers.Add(context.Background(), -1, b.attrs(sub.kind))
	return true
}

// Emit delivers e to every listener of its kind in registration order and
// returns once all of them have run. Listener errors and panics are logged
// and joined into the returned error; they never stop delivery.
//
// Listeners run without the bus lock held, so they may call On, Off or Emit.
func (b *Bus[K, E]) Emit(e E) error {
	kind := e.Kind()

	b.mu.RLock()
	snapshot := slices.Clone(b.listeners[kind])
	b.mu.RUnlock()

	attrs := b.attrs(kind)
	b.emitted.Add(context.Background(), 1, attrs)

	if b.cfg.logged {
		b.cfg.logger.Debug("emitting event", "bus", b.cfg.name, "kind", kind.String(), "listeners", len(snapshot))
	}

	var errs []error
	for _, l := range snapshot {
		if err := invoke(l.fn, e); err != nil {
			b.failures.Add(context.Background(), 1, attrs)
			b.cfg.logger.Error("event listener failed", "bus", b.cfg.name, "kind", kind.String(), "subscription", l.id, "error", err)
			errs = append(errs, fmt.Errorf("%s listener %d: %w", kind, l.id, err))
		}
	}

	return errors.Join(errs...)
}

// Clear removes every registration.
func (b *Bus[K, E]) Clear() {
	b.mu.Lock()
	old := b.listeners
	b.listeners = make(map[K][]entry[E])
	b.mu.Unlock()

	for kind, list := range old {
		b.subscribers.Add(context.Background(), -int64(len(list)), b.attrs(kind))
	}
}

// Count returns the number of listeners registered for kind.
func (b *Bus[K, E]) Count(kind K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

func (b *Bus[K, E]) attrs(kind K) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("bus", b.cfg.name),
		attribute.String("kind", kind.String()),
	)
}

// invoke runs fn, converting a panic into an error.
func invoke[E any](fn Listener[E], e E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(e)
}
