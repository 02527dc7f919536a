package queue

import (
	"sync"
	"testing"
	"time"
)

func TestBuffer_FIFOAcrossGrowth(t *testing.T) {
	buf := New[int](4)

	for i := 0; i < 100; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}

	stats := buf.Stats()
	if stats.Count != 100 {
		t.Errorf("Count = %d, want 100", stats.Count)
	}
	if stats.ResizeCount < 3 {
		t.Errorf("ResizeCount = %d, expected at least 3 resizes", stats.ResizeCount)
	}

	for i := 0; i < 100; i++ {
		val, ok := buf.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() returned false for item %d", i)
		}
		if val != i {
			t.Fatalf("received %d, want %d", val, i)
		}
	}
}

func TestBuffer_WrappedGrowKeepsOrder(t *testing.T) {
	buf := New[int](10)

	// Advance head so the ring wraps before growing.
	for i := 0; i < 5; i++ {
		buf.Send(i)
	}
	for i := 0; i < 5; i++ {
		buf.TryReceive()
	}
	for i := 0; i < 20; i++ {
		buf.Send(100 + i)
	}

	got := buf.DrainTo(0)
	if len(got) != 20 {
		t.Fatalf("DrainTo returned %d items, want 20", len(got))
	}
	for i, v := range got {
		if v != 100+i {
			t.Fatalf("item %d = %d, want %d", i, v, 100+i)
		}
	}
}

func TestBuffer_BlockingReceive(t *testing.T) {
	buf := New[string](2)
	received := make(chan string, 1)

	go func() {
		v, ok := buf.Receive()
		if ok {
			received <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send("round_start")

	select {
	case v := <-received:
		if v != "round_start" {
			t.Errorf("received %q, want round_start", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Receive")
	}
}

func TestBuffer_CloseDrainsThenStops(t *testing.T) {
	buf := New[int](4)
	buf.Send(1)
	buf.Send(2)
	buf.Close()

	if buf.Send(3) {
		t.Error("Send after Close should return false")
	}
	if !buf.Closed() {
		t.Error("Closed() = false after Close")
	}

	for _, want := range []int{1, 2} {
		v, ok := buf.Receive()
		if !ok || v != want {
			t.Fatalf("Receive() = %d, %v; want %d, true", v, ok, want)
		}
	}
	if _, ok := buf.Receive(); ok {
		t.Error("Receive on closed empty buffer should return false")
	}
}

func TestBuffer_ConcurrentProducersSingleConsumer(t *testing.T) {
	buf := New[int](8)
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Send(i)
			}
		}()
	}
	wg.Wait()
	buf.Close()

	total := 0
	for {
		if _, ok := buf.Receive(); !ok {
			break
		}
		total++
	}
	if total != producers*perProducer {
		t.Errorf("received %d items, want %d", total, producers*perProducer)
	}
}

func TestBuffer_DrainToMax(t *testing.T) {
	buf := New[int](16)
	for i := 0; i < 10; i++ {
		buf.Send(i)
	}

	got := buf.DrainTo(3)
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("DrainTo(3) = %v, want [0 1 2]", got)
	}
	if buf.Len() != 7 {
		t.Errorf("Len() = %d, want 7", buf.Len())
	}
	if New[int](1).DrainTo(5) != nil {
		t.Error("DrainTo on empty buffer should return nil")
	}
}
