package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(64, 1)

	const subscribers = 3
	const events = 10

	var count atomic.Uint64
	var wg sync.WaitGroup
	wg.Add(subscribers * events)

	for i := 0; i < subscribers; i++ {
		bus.Subscribe(KindOrderFilled, func(ev Event) {
			count.Add(1)
			wg.Done()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	for i := 0; i < events; i++ {
		if ok := bus.Publish(New(KindOrderFilled, nil)); !ok {
			t.Fatalf("publish %d dropped unexpectedly", i)
		}
	}

	wg.Wait()
	if got := count.Load(); got != subscribers*events {
		t.Errorf("expected %d invocations, got %d", subscribers*events, got)
	}
}

func TestBus_PublishNeverBlocksWhenFull(t *testing.T) {
	// Workers never started: queue fills up and stays full.
	bus := NewBus(2, 1)

	bus.Publish(New(KindQuoteUpdated, nil))
	bus.Publish(New(KindQuoteUpdated, nil))

	done := make(chan bool, 1)
	go func() {
		done <- bus.Publish(New(KindQuoteUpdated, nil))
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected publish into full queue to report a drop")
		}
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}

	if bus.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", bus.Dropped())
	}
}

func TestBus_HandlerPanicIsolation(t *testing.T) {
	bus := NewBus(16, 1)

	var delivered atomic.Uint64
	var wg sync.WaitGroup
	wg.Add(1)

	bus.Subscribe(KindOrderFailed, func(ev Event) {
		panic("handler exploded")
	})
	bus.Subscribe(KindOrderFailed, func(ev Event) {
		delivered.Add(1)
		wg.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	bus.Publish(New(KindOrderFailed, nil))
	wg.Wait()

	if delivered.Load() != 1 {
		t.Errorf("second handler did not run after first panicked")
	}

	// Subsequent events still flow.
	wg.Add(1)
	bus.Publish(New(KindOrderFailed, nil))
	wg.Wait()
	if delivered.Load() != 2 {
		t.Errorf("bus stopped delivering after a handler panic")
	}
}

func TestBus_SingleWorkerPreservesKindOrder(t *testing.T) {
	bus := NewBus(64, 1)

	const events = 20
	got := make([]int, 0, events)
	var wg sync.WaitGroup
	wg.Add(events)

	bus.Subscribe(KindQuoteUpdated, func(ev Event) {
		got = append(got, ev.Payload.(int))
		wg.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	for i := 0; i < events; i++ {
		bus.Publish(New(KindQuoteUpdated, i))
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("order broken at index %d: got %d", i, v)
		}
	}
}

func TestBus_NoSubscribersIsNoop(t *testing.T) {
	bus := NewBus(4, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	if ok := bus.Publish(New(KindCapitalUpdated, nil)); !ok {
		t.Error("publish with no subscribers should still be accepted")
	}
}
