package queue

import (
	"sync"
	"testing"
	"time"
)

// TestBasicOperations tests push and receive with a single producer
func TestBasicOperations(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		if !q.Push(i) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %d", i, val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %d", val)
	case <-time.After(10 * time.Millisecond):
	}
}

// TestConcurrentProducers tests that every item of every producer arrives exactly once
// and items of one producer keep their order
func TestConcurrentProducers(t *testing.T) {
	q := NewMPSC[[2]int]()
	defer q.Close()

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{p, i})
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	for n := 0; n < producers*perProducer; n++ {
		select {
		case item := <-q.Recv():
			if item[1] != last[item[0]]+1 {
				t.Fatalf("Producer %d: expected item %d, got %d", item[0], last[item[0]]+1, item[1])
			}
			last[item[0]] = item[1]
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout after %d items", n)
		}
	}
	wg.Wait()
}

// TestCloseQueue tests that queued items are drained and Recv is closed afterwards
func TestCloseQueue(t *testing.T) {
	q := NewMPSC[string]()

	q.Push("a")
	q.Push("b")
	q.Close()

	if q.Push("c") {
		t.Error("Push after Close must fail")
	}
	if !q.IsClosed() {
		t.Error("Queue should be closed")
	}

	var got []string
	timeout := time.After(time.Second)
	for {
		select {
		case v, ok := <-q.Recv():
			if !ok {
				if len(got) != 2 || got[0] != "a" || got[1] != "b" {
					t.Errorf("Expected [a b], got %v", got)
				}
				return
			}
			got = append(got, v)
		case <-timeout:
			t.Fatalf("Recv was not closed, got %v", got)
		}
	}
}
