package server

import (
	"sort"
	"testing"
)

// TestNewExpiryQueue tests the creation of a new queue
func TestNewExpiryQueue(t *testing.T) {
	q := newExpiryQueue()

	if q.Len() != 0 {
		t.Errorf("New queue should be empty, but has length %d", q.Len())
	}

	if len(q.itemsMap) != 0 {
		t.Errorf("New queue's map should be empty, but has %d items", len(q.itemsMap))
	}
}

// TestScheduleReplaces tests that rescheduling a key moves it in the heap
func TestScheduleReplaces(t *testing.T) {
	q := newExpiryQueue()
	q.schedule("a", 100)
	q.schedule("b", 200)

	if q.items[0].key != "a" {
		t.Fatalf("Earliest key should be a, got %s", q.items[0].key)
	}

	q.schedule("a", 300)
	if q.Len() != 2 {
		t.Errorf("Queue should still have 2 items, has %d", q.Len())
	}
	if q.items[0].key != "b" {
		t.Errorf("Earliest key should now be b, got %s", q.items[0].key)
	}
}

// TestCancel tests removing keys from the queue
func TestCancel(t *testing.T) {
	q := newExpiryQueue()
	q.schedule("a", 100)
	q.schedule("b", 200)
	q.schedule("c", 300)

	if !q.cancel("b") {
		t.Fatal("cancel should return true for a scheduled key")
	}
	if q.cancel("b") {
		t.Error("cancel should return false for a key that is no longer scheduled")
	}
	if q.Len() != 2 {
		t.Errorf("Queue should have 2 items after cancel, has %d", q.Len())
	}
	if _, ok := q.itemsMap["b"]; ok {
		t.Error("Map should not contain b after cancel")
	}
}

// TestPopDueOrder tests that due keys are returned earliest first
func TestPopDueOrder(t *testing.T) {
	q := newExpiryQueue()

	items := []struct {
		key      string
		deadline int64
	}{
		{"e", 50},
		{"c", 30},
		{"a", 10},
		{"d", 40},
		{"b", 20},
	}
	for _, it := range items {
		q.schedule(it.key, it.deadline)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].deadline < items[j].deadline })

	due := q.popDue(35)
	if len(due) != 3 {
		t.Fatalf("Expected 3 due keys, got %d (%v)", len(due), due)
	}
	for i, key := range due {
		if key != items[i].key {
			t.Errorf("Pop %d: expected %s, got %s", i, items[i].key, key)
		}
	}

	if q.Len() != 2 {
		t.Errorf("Queue should keep 2 items, has %d", q.Len())
	}
	if len(q.popDue(35)) != 0 {
		t.Error("Second pop at the same time should return nothing")
	}
	if got := q.popDue(50); len(got) != 2 {
		t.Errorf("Expected the remaining 2 keys at their deadline, got %v", got)
	}
}

// TestReset tests dropping all schedules
func TestReset(t *testing.T) {
	q := newExpiryQueue()
	for i, key := range []string{"a", "b", "c"} {
		q.schedule(key, int64(i))
	}
	q.reset()

	if q.Len() != 0 || len(q.itemsMap) != 0 {
		t.Errorf("Queue should be empty after reset, has %d items and %d map entries", q.Len(), len(q.itemsMap))
	}

	// the queue stays usable
	q.schedule("a", 1)
	if q.Len() != 1 {
		t.Errorf("Queue should have 1 item, has %d", q.Len())
	}
}
