package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBus(historySize, queueSize int) *Bus {
	logger, _ := zap.NewDevelopment()
	return New(&Config{Logger: logger, HistorySize: historySize, QueueSize: queueSize})
}

func TestHistoryReplayBeforeLive(t *testing.T) {
	b := newTestBus(10, 10)

	b.Publish("a", 1)
	b.Publish("b", 2)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish("c", 3)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.Events():
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHistoryRingCapacity(t *testing.T) {
	b := newTestBus(3, 10)

	for i := 0; i < 5; i++ {
		b.Publish("t", i)
	}

	history := b.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Data != 2 || history[2].Data != 4 {
		t.Errorf("history = %v, want oldest=2 newest=4", history)
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := newTestBus(10, 2)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish("e1", 1)
	b.Publish("e2", 2)
	b.Publish("e3", 3) // e1 dropped

	first := <-sub.Events()
	second := <-sub.Events()

	if first.Type != "e2" || second.Type != "e3" {
		t.Errorf("got %q then %q, want e2 then e3", first.Type, second.Type)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := newTestBus(10, 10)

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // must not panic
	b.Unsubscribe(nil)
}

func TestConcurrentPublishers(t *testing.T) {
	b := newTestBus(DefaultHistorySize, 1024)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Publish(fmt.Sprintf("p%d", p), i)
			}
		}(p)
	}
	wg.Wait()

	received := 0
	for {
		select {
		case <-sub.Events():
			received++
		default:
			if received != producers*perProducer {
				t.Errorf("received %d events, want %d", received, producers*perProducer)
			}
			return
		}
	}
}

func TestPerProducerOrderPreserved(t *testing.T) {
	b := newTestBus(DefaultHistorySize, 1024)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < 20; i++ {
		b.Publish("seq", i)
	}

	last := -1
	for i := 0; i < 20; i++ {
		ev := <-sub.Events()
		n := ev.Data.(int)
		if n <= last {
			t.Fatalf("out of order: %d after %d", n, last)
		}
		last = n
	}
}
