package session

import (
	"container/heap"
	"time"
)

type expiryItem struct {
	at    time.Time
	entry *Entry
}

// expiryQueue is a min-heap of entries ordered by expiry. Entries removed explicitly
// stay in the heap and are skipped when popped.
type expiryQueue []expiryItem

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) { *q = append(*q, x.(expiryItem)) }

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = expiryItem{}
	*q = old[:n-1]
	return it
}

func (q *expiryQueue) schedule(e *Entry) {
	heap.Push(q, expiryItem{at: e.expiresAt, entry: e})
}

// popDue removes and returns every item due at or before now.
func (q *expiryQueue) popDue(now time.Time) []*Entry {
	var due []*Entry
	for q.Len() > 0 && !(*q)[0].at.After(now) {
		due = append(due, heap.Pop(q).(expiryItem).entry)
	}
	return due
}

func (q *expiryQueue) dropHead() {
	heap.Pop(q)
}
