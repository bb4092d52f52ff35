package queue

import (
	"testing"
	"time"
)

func TestQueueEnqueueDequeueOrder(t *testing.T) {
	q := New[int](nil)
	q.EnqueueAll([]int{1, 2, 3})
	q.Enqueue(4)

	var got []int
	for {
		v, ok := q.TryDequeue()
		if !ok {
			break
		}
		got = append(got, v)
	}

	want := []int{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestQueueTryDequeueEmpty(t *testing.T) {
	q := New[string](nil)
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("TryDequeue on empty queue returned ok=true")
	}
}

func TestQueueSize(t *testing.T) {
	q := New[int](nil)
	if q.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", q.Size())
	}
	q.EnqueueAll([]int{1, 2, 3})
	if q.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", q.Size())
	}
	q.TryDequeue()
	if q.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", q.Size())
	}
}

func TestWaiterWaitReturnsImmediatelyWhenNonEmpty(t *testing.T) {
	w := NewWaiter()
	q := New[int](w)
	w.Watch(q)
	q.Enqueue(1)

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an already-non-empty queue")
	}
}

func TestWaiterWaitWakesOnEnqueue(t *testing.T) {
	w := NewWaiter()
	q := New[int](w)
	w.Watch(q)

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before any enqueue")
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not wake up after Enqueue")
	}
}

func TestWaiterCloseUnblocksWait(t *testing.T) {
	w := NewWaiter()
	q := New[int](w)
	w.Watch(q)

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	w.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Close")
	}
}

func TestWaiterMultipleQueuesAnyNonEmpty(t *testing.T) {
	w := NewWaiter()
	a := New[int](w)
	b := New[string](w)
	w.Watch(a)
	w.Watch(b)

	b.Enqueue("x")

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked despite a watched queue being non-empty")
	}
}
