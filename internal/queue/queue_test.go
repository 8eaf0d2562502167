package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	items := q.GetAndEmpty()
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("unexpected items %v", items)
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})
	failed := q.GetAndEmpty()
	q.Push(testItem{ID: 3})

	q.Requeue(failed...)

	items := q.GetAndEmpty()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []int{1, 2, 3} {
		if items[i].ID != want {
			t.Errorf("item %d: expected ID %d, got %d", i, want, items[i].ID)
		}
	}
}

func TestQueue_RequeueNothing(t *testing.T) {
	q := New[testItem]()
	q.Requeue()
	if !q.Empty() {
		t.Error("expected empty queue")
	}
}

func TestQueue_ConcurrentGetAndEmpty(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n := len(q.GetAndEmpty())
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total += len(q.GetAndEmpty())
	if total != 1000 {
		t.Errorf("expected 1000 items in total, got %d", total)
	}
}
