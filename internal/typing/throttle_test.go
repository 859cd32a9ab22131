package typing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/neo"
	"github.com/gotd/td/clock"
)

type neoClock struct {
	*neo.Time
}

func (c neoClock) Timer(d time.Duration) clock.Timer   { return c.Time.Timer(d) }
func (c neoClock) Ticker(d time.Duration) clock.Ticker { return c.Time.Ticker(d) }

// recordingNotifier counts backend typing calls per chat.
type recordingNotifier struct {
	calls map[int64]int
	err   error
}

func (n *recordingNotifier) SendTypingAction(_ context.Context, chatID int64) error {
	if n.calls == nil {
		n.calls = make(map[int64]int)
	}
	n.calls[chatID]++
	return n.err
}

func TestRateBoundWithinWindow(t *testing.T) {
	fake := neo.NewTime(time.Now())
	n := &recordingNotifier{}
	th := New(n, neoClock{fake}, 8*time.Second, nil)

	for range 50 {
		th.NotifyTyping(context.Background(), 1)
		fake.Travel(100 * time.Millisecond)
	}
	if n.calls[1] != 1 {
		t.Errorf("got %d backend calls within one window, want 1", n.calls[1])
	}
}

func TestNewCallAfterWindowLapses(t *testing.T) {
	fake := neo.NewTime(time.Now())
	n := &recordingNotifier{}
	th := New(n, neoClock{fake}, 8*time.Second, nil)

	th.NotifyTyping(context.Background(), 1)
	fake.Travel(9 * time.Second)
	th.NotifyTyping(context.Background(), 1)

	if n.calls[1] != 2 {
		t.Errorf("got %d backend calls across two windows, want 2", n.calls[1])
	}
}

func TestWindowsAreScopedPerChat(t *testing.T) {
	fake := neo.NewTime(time.Now())
	n := &recordingNotifier{}
	th := New(n, neoClock{fake}, 8*time.Second, nil)

	th.NotifyTyping(context.Background(), 1)
	th.NotifyTyping(context.Background(), 2)
	th.NotifyTyping(context.Background(), 1)
	th.NotifyTyping(context.Background(), 2)

	if n.calls[1] != 1 || n.calls[2] != 1 {
		t.Errorf("calls = %v, want one per chat", n.calls)
	}
}

func TestBackendFailureStillOpensWindow(t *testing.T) {
	fake := neo.NewTime(time.Now())
	n := &recordingNotifier{err: errors.New("FLOOD_WAIT")}
	th := New(n, neoClock{fake}, 8*time.Second, nil)

	th.NotifyTyping(context.Background(), 1)
	th.NotifyTyping(context.Background(), 1)

	if n.calls[1] != 1 {
		t.Errorf("got %d calls after failure, want 1 (no retry storm)", n.calls[1])
	}
}

func TestIdle(t *testing.T) {
	fake := neo.NewTime(time.Now())
	th := New(&recordingNotifier{}, neoClock{fake}, 8*time.Second, nil)

	if !th.Idle(1) {
		t.Error("chat with no keystrokes should be idle")
	}
	th.NotifyTyping(context.Background(), 1)
	if th.Idle(1) {
		t.Error("chat should not be idle inside the window")
	}
	fake.Travel(9 * time.Second)
	if !th.Idle(1) {
		t.Error("chat should be idle after the window lapses")
	}
}

func TestIdleIsReadOnly(t *testing.T) {
	fake := neo.NewTime(time.Now())
	n := &recordingNotifier{}
	th := New(n, neoClock{fake}, 8*time.Second, nil)

	th.NotifyTyping(context.Background(), 1)
	for range 5 {
		th.Idle(1)
	}
	th.NotifyTyping(context.Background(), 1)
	if n.calls[1] != 1 {
		t.Errorf("got %d calls, want querying Idle to leave the open window alone", n.calls[1])
	}

	fake.Travel(9 * time.Second)
	th.Idle(1)
	th.NotifyTyping(context.Background(), 1)
	if n.calls[1] != 2 {
		t.Errorf("got %d calls, want a lapsed window reopened regardless of Idle queries", n.calls[1])
	}
}
