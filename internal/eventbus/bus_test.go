package eventbus

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestPublish tests routing by publisher.
func TestPublish(t *testing.T) {
	t.Parallel()

	b := New()
	var spider, all []string
	b.Subscribe(func(e Event) { spider = append(spider, e.Type) }, "spider")
	b.Subscribe(func(e Event) { all = append(all, e.Publisher+"/"+e.Type) })

	if got := b.Publish(Event{Publisher: "spider", Type: "scan.started"}); got != 2 {
		t.Errorf("delivered to %d consumers, want 2", got)
	}
	if got := b.Publish(Event{Publisher: "proxy", Type: "request"}); got != 1 {
		t.Errorf("delivered to %d consumers, want 1", got)
	}

	if diff := cmp.Diff([]string{"scan.started"}, spider); diff != "" {
		t.Errorf("spider consumer mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"spider/scan.started", "proxy/request"}, all); diff != "" {
		t.Errorf("wildcard consumer mismatch (-want +got):\n%s", diff)
	}
}

// TestPublishAssignsSequence tests event metadata set by the bus.
func TestPublishAssignsSequence(t *testing.T) {
	t.Parallel()

	b := New()
	var events []Event
	b.Subscribe(func(e Event) { events = append(events, e) })

	b.Publish(Event{Publisher: "p", Type: "a", Params: map[string]string{"scanId": "7"}})
	b.Publish(Event{Publisher: "p", Type: "b"})

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Seq >= events[1].Seq {
		t.Errorf("sequence not increasing: %d, %d", events[0].Seq, events[1].Seq)
	}
	if events[0].Time.IsZero() {
		t.Error("time not set")
	}
	if got := events[0].Param("scanId"); got != "7" {
		t.Errorf("Param(scanId) = %q, want 7", got)
	}
	if got := events[1].Param("scanId"); got != "" {
		t.Errorf("Param on nil params = %q, want empty", got)
	}
}

// TestCancel tests revoking subscriptions.
func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("cancelled consumer receives nothing", func(t *testing.T) {
		t.Parallel()

		b := New()
		count := 0
		sub := b.Subscribe(func(Event) { count++ }, "p")
		b.Publish(Event{Publisher: "p"})
		sub.Cancel()
		sub.Cancel()
		b.Publish(Event{Publisher: "p"})

		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
		if sub.Active() {
			t.Error("subscription still active")
		}
		if b.Len() != 0 {
			t.Errorf("Len() = %d, want 0", b.Len())
		}
	})

	t.Run("cancel from inside the consumer", func(t *testing.T) {
		t.Parallel()

		b := New()
		count := 0
		var sub *Subscription
		sub = b.Subscribe(func(Event) {
			count++
			sub.Cancel()
		})
		b.Publish(Event{})
		b.Publish(Event{})

		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("nil subscription", func(t *testing.T) {
		t.Parallel()

		var sub *Subscription
		sub.Cancel()
		if sub.Active() {
			t.Error("nil subscription reported active")
		}
	})
}

// TestConsumerPanic tests that one failing consumer does not stop others.
func TestConsumerPanic(t *testing.T) {
	t.Parallel()

	b := New()
	b.Subscribe(func(Event) { panic("boom") })
	got := false
	b.Subscribe(func(Event) { got = true })

	if n := b.Publish(Event{}); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if !got {
		t.Error("second consumer did not run")
	}
}

// TestConcurrentPublish tests publishing from several goroutines.
func TestConcurrentPublish(t *testing.T) {
	t.Parallel()

	b := New()
	var mu sync.Mutex
	seen := make(map[uint64]bool)
	b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		seen[e.Seq] = true
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(Event{Publisher: "p"})
			}
		}()
	}
	wg.Wait()

	if len(seen) != 400 {
		t.Errorf("saw %d distinct events, want 400", len(seen))
	}
}
