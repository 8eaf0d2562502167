package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3ts/referee/pkg/core"
)

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

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	t.Cleanup(d.Close)

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got core.Event
	d.Register("referee", core.EventBounce, func(e core.Event) error {
		got = e
		return nil
	})

	err := d.Dispatch(core.Event{Kind: core.EventBounce, Side: core.SideRight})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Kind != core.EventBounce || got.Side != core.SideRight {
		t.Errorf("handler got %+v", got)
	}
}

func TestDispatcher_NoHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Dispatch(core.Event{Kind: core.EventStrike}); err != nil {
		t.Errorf("expected no error without handlers, got %v", err)
	}
}

func TestDispatcher_RegistrationOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var order []string
	d.Register("a", core.EventStrike, func(core.Event) error { order = append(order, "a"); return nil })
	d.Register("b", core.EventStrike, func(core.Event) error { order = append(order, "b"); return nil })

	_ = d.Dispatch(core.Event{Kind: core.EventStrike})

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("expected a,b got %v", order)
	}
}

func TestDispatcher_HandlerErrorsJoined(t *testing.T) {
	d, _ := newTestDispatcher(t)

	boom := errors.New("boom")
	d.Register("a", core.EventStrike, func(core.Event) error { return boom })
	var secondCalled bool
	d.Register("b", core.EventStrike, func(core.Event) error { secondCalled = true; return nil })

	err := d.Dispatch(core.Event{Kind: core.EventStrike})

	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if !secondCalled {
		t.Error("second handler must still run")
	}
}

func TestDispatcher_SubscribeAllKinds(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count int
	d.Subscribe("referee", func(core.Event) error { count++; return nil })

	for _, kind := range core.EventKinds {
		_ = d.Dispatch(core.Event{Kind: kind})
	}

	if count != len(core.EventKinds) {
		t.Errorf("expected %d calls, got %d", len(core.EventKinds), count)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count int
	d.Subscribe("referee", func(core.Event) error { count++; return nil }, core.EventStrike, core.EventBounce)
	d.Subscribe("stats", func(core.Event) error { return nil }, core.EventStrike)

	d.Unsubscribe("referee")
	_ = d.Dispatch(core.Event{Kind: core.EventStrike})
	_ = d.Dispatch(core.Event{Kind: core.EventBounce})

	if count != 0 {
		t.Errorf("expected no calls after unsubscribe, got %d", count)
	}
	if n := len(d.handlers[core.EventStrike]); n != 1 {
		t.Errorf("other subscribers must stay registered, got %d strike handlers", n)
	}
	if n := len(d.handlers[core.EventBounce]); n != 0 {
		t.Errorf("expected no bounce handler, got %d", n)
	}

	// unsubscribing twice is harmless
	d.Unsubscribe("referee")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("display", core.EventStrike, func(core.Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(core.Event{Kind: core.EventStrike}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	defer close(block)
	d.Register("display", core.EventStrike, func(core.Event) error {
		<-block
		return nil
	}, Buffered(2))

	_ = d.Dispatch(core.Event{Kind: core.EventStrike})
	_ = d.Dispatch(core.Event{Kind: core.EventStrike})
	_ = d.Dispatch(core.Event{Kind: core.EventStrike})

	err := d.Dispatch(core.Event{Kind: core.EventStrike})

	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcher_BufferedReleasedOnUnsubscribe(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	d.Register("display", core.EventStrike, func(core.Event) error {
		<-block
		return nil
	}, Buffered(1))

	_ = d.Dispatch(core.Event{Kind: core.EventStrike})
	time.Sleep(10 * time.Millisecond)
	_ = d.Dispatch(core.Event{Kind: core.EventStrike})

	d.Unsubscribe("display")

	// the full queue no longer rejects events
	if err := d.Dispatch(core.Event{Kind: core.EventStrike}); err != nil {
		t.Errorf("unexpected error after unsubscribe: %v", err)
	}
	if len(d.buffers) != 0 {
		t.Errorf("expected buffer to be released, got %d", len(d.buffers))
	}
}

func TestSource_AppliesOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var count int
	src := d.Source(Logged())
	src.Subscribe("referee", func(core.Event) error { count++; return nil }, core.EventBounce)

	_ = d.Dispatch(core.Event{Kind: core.EventBounce, Side: core.SideLeft})

	if count != 1 {
		t.Errorf("expected 1 call, got %d", count)
	}
	logger.mu.Lock()
	n := len(logger.messages)
	logger.mu.Unlock()
	if n != 2 {
		t.Errorf("expected start and completion debug lines, got %d", n)
	}

	src.Unsubscribe("referee")
	_ = d.Dispatch(core.Event{Kind: core.EventBounce})
	if count != 1 {
		t.Errorf("expected no calls after unsubscribe, got %d", count)
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("referee", core.EventBounce, func(core.Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	_ = d.Dispatch(core.Event{Kind: core.EventBounce})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("display", core.EventTableSideChange, func(core.Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100), Logged())

	if err := d.Dispatch(core.Event{Kind: core.EventTableSideChange}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}
