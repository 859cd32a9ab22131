package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/gotd/neo"
	"github.com/gotd/td/clock"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// neoClock bridges the simulated neo time source to the clock capability.
type neoClock struct {
	*neo.Time
}

func (c neoClock) Timer(d time.Duration) clock.Timer   { return c.Time.Timer(d) }
func (c neoClock) Ticker(d time.Duration) clock.Ticker { return c.Time.Ticker(d) }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestAddIsExclusivePerKey(t *testing.T) {
	fake := neo.NewTime(time.Now())
	r := New(neoClock{fake})

	if !r.Add("undo_send", time.Minute, nil) {
		t.Fatal("first Add returned false")
	}
	if r.Add("undo_send", time.Minute, nil) {
		t.Error("second Add for active key returned true")
	}

	r.Remove("undo_send")
	if !r.Add("undo_send", time.Minute, nil) {
		t.Error("Add after Remove returned false")
	}
	r.Remove("undo_send")
}

func TestRemoveFiresCallbackOnce(t *testing.T) {
	fake := neo.NewTime(time.Now())
	r := New(neoClock{fake})

	fired := 0
	r.Add("k", time.Minute, func() { fired++ })
	r.Remove("k")
	r.Remove("k") // absent: no-op
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
	if r.Active("k") {
		t.Error("key still active after Remove")
	}
}

func TestExpiryIsSilent(t *testing.T) {
	fake := neo.NewTime(time.Now())
	r := New(neoClock{fake})

	fired := false
	r.Add("k", 3*time.Second, func() { fired = true })

	fake.Travel(4 * time.Second)
	waitFor(t, func() bool { return !r.Active("k") })

	if fired {
		t.Error("callback fired on natural expiry")
	}
	if !r.Add("k", 3*time.Second, nil) {
		t.Error("Add after expiry returned false")
	}
	r.Remove("k")
}

func TestInvokeRunsBeforeReturn(t *testing.T) {
	fake := neo.NewTime(time.Now())
	r := New(neoClock{fake})

	fired := false
	r.Add("clear_history chat_id=5", time.Minute, func() { fired = true })
	r.Invoke("clear_history chat_id=5")
	if !fired {
		t.Error("Invoke returned before callback settled")
	}

	// Absent key resolves immediately.
	r.Invoke("clear_history chat_id=6")
}

func TestConcurrentRemoveFiresOnce(t *testing.T) {
	fake := neo.NewTime(time.Now())
	r := New(neoClock{fake})

	var mu sync.Mutex
	fired := 0
	r.Add("k", time.Minute, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Remove("k")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("callback fired %d times under concurrent Remove, want 1", fired)
	}
}
