package server

import (
	"container/heap"
)

// expiryItem is one scheduled expiry, keyed by the canonical cache key
type expiryItem struct {
	key      string
	deadline int64 // unix nanos
	index    int   // Index in the heap, maintained by heap package
}

// expiryQueue combines a min heap ordered by deadline with a map for key
// based updates and removal. It is not safe for concurrent use.
type expiryQueue struct {
	items    []*expiryItem          // The actual heap slice
	itemsMap map[string]*expiryItem // Map for O(1) access by key
}

func newExpiryQueue() *expiryQueue {
	return &expiryQueue{
		items:    make([]*expiryItem, 0),
		itemsMap: make(map[string]*expiryItem),
	}
}

// Len returns the number of scheduled keys (part of heap.Interface)
func (q *expiryQueue) Len() int { return len(q.items) }

// Less orders by deadline, earliest first (part of heap.Interface)
func (q *expiryQueue) Less(i, j int) bool {
	return q.items[i].deadline < q.items[j].deadline
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (q *expiryQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (q *expiryQueue) Push(x interface{}) {
	it := x.(*expiryItem)
	it.index = len(q.items)
	q.items = append(q.items, it)
	q.itemsMap[it.key] = it
}

// Pop removes and returns the earliest item (part of heap.Interface)
func (q *expiryQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	q.items = old[:n-1]
	delete(q.itemsMap, it.key)
	return it
}

// schedule sets the deadline of key, replacing an earlier schedule
func (q *expiryQueue) schedule(key string, deadline int64) {
	if it, exists := q.itemsMap[key]; exists {
		it.deadline = deadline
		heap.Fix(q, it.index)
		return
	}
	heap.Push(q, &expiryItem{key: key, deadline: deadline})
}

// cancel removes the schedule of key
func (q *expiryQueue) cancel(key string) bool {
	it, exists := q.itemsMap[key]
	if !exists {
		return false
	}
	heap.Remove(q, it.index)
	return true
}

// popDue removes and returns all keys whose deadline is not after now
func (q *expiryQueue) popDue(now int64) []string {
	var due []string
	for len(q.items) > 0 && q.items[0].deadline <= now {
		due = append(due, heap.Pop(q).(*expiryItem).key)
	}
	return due
}

// reset drops all schedules
func (q *expiryQueue) reset() {
	q.items = q.items[:0]
	clear(q.itemsMap)
}
