package util

import (
	"sync"
	"testing"
	"time"
)

func TestPushAndReceive(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("failed to push item %d", i)
		}
	}

	// a single producer is delivered in order
	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("expected %d, got %d", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("expected empty queue, got %v", *val)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const numProducers = 8
	const itemsPerProducer = 1000
	total := numProducers * itemsPerProducer

	done := make(chan struct{})
	seen := make(map[int]bool, total)
	go func() {
		defer close(done)
		for len(seen) < total {
			select {
			case val := <-q.Recv():
				if seen[*val] {
					t.Errorf("duplicate item %d", *val)
					return
				}
				seen[*val] = true
			case <-time.After(5 * time.Second):
				t.Errorf("timeout, received %d of %d items", len(seen), total)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				v := base + i
				if !q.Push(&v) {
					t.Errorf("failed to push item %d", v)
				}
			}
		}(p * itemsPerProducer)
	}
	wg.Wait()
	<-done
}

// The consumer loop pattern used by the engine's background syncer: wait on
// the queue and a timer at the same time.
func TestReceiveAlongsideTimer(t *testing.T) {
	q := NewLockFreeMPSC[struct{}]()
	defer q.Close()

	timer := time.NewTimer(10 * time.Millisecond)
	defer timer.Stop()

	// nothing queued, the timer must win
	select {
	case <-q.Recv():
		t.Errorf("expected no item from an empty queue")
	case <-timer.C:
	}

	q.Push(&struct{}{})
	select {
	case _, ok := <-q.Recv():
		if !ok {
			t.Errorf("expected an open channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for queued item")
	}
}

func TestCloseDrainsAndRejectsPush(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	for i := 0; i < 5; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()

	v := 100
	if q.Push(&v) {
		t.Error("expected Push to fail on a closed queue")
	}

	// items queued before Close are still delivered
	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if *val != i {
				t.Errorf("expected %d, got %d", i, *val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout draining item %d", i)
		}
	}

	// the receipt of the close is the drained, closed channel
	if _, ok := <-q.Recv(); ok {
		t.Error("expected the channel to be closed after the drain")
	}
}
