package scheduler

import (
	"container/heap"
	"strconv"
)

// timer is an entry of the timerHeap, keyed by the task id and ordered by its due time
type timer struct {
	Key   uint64 // task id
	Due   int64  // due time in nanoseconds since the start of the scheduler
	index int    // index in the heap, maintained by the heap package
}

func (t *timer) String() string {
	return "{Key: " + strconv.FormatUint(t.Key, 10) + ", Due: " + strconv.FormatInt(t.Due, 10) + "}"
}

// timerHeap is a min heap of timers with O(1) access by task id.
// Ties are broken by the task id so tasks due at the same time run in registration order.
// It is not thread-safe.
type timerHeap struct {
	items    []*timer
	itemsMap map[uint64]*timer
}

func newTimerHeap() *timerHeap {
	return &timerHeap{
		items:    make([]*timer, 0),
		itemsMap: make(map[uint64]*timer),
	}
}

// Len returns the number of timers (part of heap.Interface)
func (h *timerHeap) Len() int { return len(h.items) }

// Less orders by due time, then by task id (part of heap.Interface)
func (h *timerHeap) Less(i, j int) bool {
	if h.items[i].Due == h.items[j].Due {
		return h.items[i].Key < h.items[j].Key
	}
	return h.items[i].Due < h.items[j].Due
}

// Swap exchanges timers at positions i and j (part of heap.Interface)
func (h *timerHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds a timer (part of heap.Interface)
func (h *timerHeap) Push(x interface{}) {
	t := x.(*timer)
	t.index = len(h.items)
	h.items = append(h.items, t)
	h.itemsMap[t.Key] = t
}

// Pop removes the earliest timer (part of heap.Interface)
func (h *timerHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, t.Key)
	return t
}

// set adds a timer or moves an existing one to a new due time
func (h *timerHeap) set(key uint64, due int64) {
	if t, exists := h.itemsMap[key]; exists {
		t.Due = due
		heap.Fix(h, t.index)
		return
	}
	heap.Push(h, &timer{Key: key, Due: due})
}

// remove drops the timer of a task
func (h *timerHeap) remove(key uint64) bool {
	t, exists := h.itemsMap[key]
	if !exists {
		return false
	}
	heap.Remove(h, t.index)
	return true
}

// peek returns the earliest timer without removing it
func (h *timerHeap) peek() (*timer, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}
