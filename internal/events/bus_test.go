package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

type testKind int

const (
	kindPing testKind = iota
	kindPong
)

func (k testKind) String() string {
	switch k {
	case kindPing:
		return "ping"
	case kindPong:
		return "pong"
	default:
		return "unknown"
	}
}

type testEvent struct {
	kind    testKind
	payload int
}

func (e testEvent) Kind() testKind { return e.kind }

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func newTestBus(t *testing.T, opts ...Option) (*Bus[testKind, testEvent], *testLogger) {
	logger := &testLogger{}

	b, err := New[testKind, testEvent](logger, opts...)
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}

	return b, logger
}

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	b, _ := newTestBus(t)

	var order []string
	b.On(kindPing, func(e testEvent) error { order = append(order, "first"); return nil })
	b.On(kindPing, func(e testEvent) error { order = append(order, "second"); return nil })
	b.On(kindPing, func(e testEvent) error { order = append(order, "third"); return nil })

	if err := b.Emit(testEvent{kind: kindPing}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first", "second", "third"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestBus_OnlyMatchingKind(t *testing.T) {
	b, _ := newTestBus(t)

	pings, pongs := 0, 0
	b.On(kindPing, func(testEvent) error { pings++; return nil })
	b.On(kindPong, func(testEvent) error { pongs++; return nil })

	b.Emit(testEvent{kind: kindPong})

	if pings != 0 || pongs != 1 {
		t.Errorf("expected 0 pings and 1 pong, got %d and %d", pings, pongs)
	}
}

func TestBus_PayloadDelivered(t *testing.T) {
	b, _ := newTestBus(t)

	var got int
	b.On(kindPing, func(e testEvent) error { got = e.payload; return nil })
	b.Emit(testEvent{kind: kindPing, payload: 42})

	if got != 42 {
		t.Errorf("expected payload 42, got %d", got)
	}
}

func TestBus_SameListenerTwiceRunsTwice(t *testing.T) {
	b, _ := newTestBus(t)

	calls := 0
	fn := func(testEvent) error { calls++; return nil }
	b.On(kindPing, fn)
	b.On(kindPing, fn)

	b.Emit(testEvent{kind: kindPing})

	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestBus_FailingListenerDoesNotBlockOthers(t *testing.T) {
	b, logger := newTestBus(t)

	secondCalled := false
	b.On(kindPing, func(testEvent) error { return errors.New("boom") })
	b.On(kindPing, func(testEvent) error { secondCalled = true; return nil })

	err := b.Emit(testEvent{kind: kindPing})

	if !secondCalled {
		t.Error("second listener was not called")
	}
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected joined error containing boom, got %v", err)
	}
	if logger.count("ERROR") != 1 {
		t.Errorf("expected 1 error log, got %d", logger.count("ERROR"))
	}
}

func TestBus_PanickingListenerRecovered(t *testing.T) {
	b, logger := newTestBus(t)

	after := false
	b.On(kindPing, func(testEvent) error { panic("kaboom") })
	b.On(kindPing, func(testEvent) error { after = true; return nil })

	err := b.Emit(testEvent{kind: kindPing})

	if !after {
		t.Error("listener after panic was not called")
	}
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("expected error mentioning panic, got %v", err)
	}
	if logger.count("ERROR") != 1 {
		t.Errorf("expected 1 error log, got %d", logger.count("ERROR"))
	}
}

func TestBus_OffRemovesOnlyThatRegistration(t *testing.T) {
	b, _ := newTestBus(t)

	var calls []string
	fn := func(testEvent) error { calls = append(calls, "fn"); return nil }
	first := b.On(kindPing, fn)
	b.On(kindPing, fn)
	b.On(kindPing, func(testEvent) error { calls = append(calls, "other"); return nil })

	if !b.Off(first) {
		t.Fatal("expected Off to find the subscription")
	}
	b.Emit(testEvent{kind: kindPing})

	if strings.Join(calls, ",") != "fn,other" {
		t.Errorf("expected [fn other], got %v", calls)
	}
	if b.Count(kindPing) != 2 {
		t.Errorf("expected 2 listeners left, got %d", b.Count(kindPing))
	}
}

func TestBus_OffUnknownIsNoop(t *testing.T) {
	b, _ := newTestBus(t)

	sub := b.On(kindPing, func(testEvent) error { return nil })
	if !b.Off(sub) {
		t.Fatal("first Off should succeed")
	}
	if b.Off(sub) {
		t.Error("second Off should report not found")
	}
	if b.Off(Subscription[testKind]{kind: kindPong, id: 999}) {
		t.Error("Off for unregistered kind should report not found")
	}
}

func TestBus_ClearRemovesAll(t *testing.T) {
	b, _ := newTestBus(t)

	calls := 0
	b.On(kindPing, func(testEvent) error { calls++; return nil })
	b.On(kindPong, func(testEvent) error { calls++; return nil })

	b.Clear()
	b.Emit(testEvent{kind: kindPing})
	b.Emit(testEvent{kind: kindPong})

	if calls != 0 {
		t.Errorf("expected no calls after Clear, got %d", calls)
	}

	// bus remains usable
	b.On(kindPing, func(testEvent) error { calls++; return nil })
	b.Emit(testEvent{kind: kindPing})
	if calls != 1 {
		t.Errorf("expected 1 call after re-registering, got %d", calls)
	}
}

func TestBus_ReentrantEmit(t *testing.T) {
	b, _ := newTestBus(t)

	var seen []testKind
	b.On(kindPing, func(e testEvent) error {
		seen = append(seen, e.kind)
		return b.Emit(testEvent{kind: kindPong})
	})
	b.On(kindPong, func(e testEvent) error {
		seen = append(seen, e.kind)
		return nil
	})

	if err := b.Emit(testEvent{kind: kindPing}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[0] != kindPing || seen[1] != kindPong {
		t.Errorf("expected [ping pong], got %v", seen)
	}
}

func TestBus_ListenerMayUnsubscribeDuringEmit(t *testing.T) {
	b, _ := newTestBus(t)

	calls := 0
	var sub Subscription[testKind]
	sub = b.On(kindPing, func(testEvent) error {
		calls++
		b.Off(sub)
		return nil
	})

	b.Emit(testEvent{kind: kindPing})
	b.Emit(testEvent{kind: kindPing})

	if calls != 1 {
		t.Errorf("expected one-shot listener to run once, got %d", calls)
	}
}

func TestBus_LoggedOption(t *testing.T) {
	b, logger := newTestBus(t, Named("test"), Logged())

	b.Emit(testEvent{kind: kindPing})

	if logger.count("DEBUG") != 1 {
		t.Errorf("expected 1 debug log, got %d", logger.count("DEBUG"))
	}
}

func TestBus_WithLoggerOverrides(t *testing.T) {
	override := &testLogger{}
	b, original := newTestBus(t, WithLogger(override))

	b.On(kindPing, func(testEvent) error { return errors.New("fail") })
	b.Emit(testEvent{kind: kindPing})

	if original.count("ERROR") != 0 || override.count("ERROR") != 1 {
		t.Errorf("expected error on override logger only, got original=%d override=%d",
			original.count("ERROR"), override.count("ERROR"))
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	if _, err := New[testKind, testEvent](nil); err == nil {
		t.Error("expected error when logger is nil")
	}
}

func TestSubscription_Kind(t *testing.T) {
	b, _ := newTestBus(t)
	sub := b.On(kindPong, func(testEvent) error { return nil })
	if sub.Kind() != kindPong {
		t.Errorf("expected pong, got %v", sub.Kind())
	}
}
