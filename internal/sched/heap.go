// internal/sched/heap.go

package sched

import "time"

// HeapKey orders heap entries: SortIndex first, ID breaks ties.
type HeapKey struct {
	SortIndex time.Duration
	ID        uint64
}

// Less reports whether k sorts strictly before o.
func (k HeapKey) Less(o HeapKey) bool {
	if k.SortIndex != o.SortIndex {
		return k.SortIndex < o.SortIndex
	}
	return k.ID < o.ID
}

// MinHeap is an array-backed binary min-heap. Only the minimum is cheap to
// find or remove; the backing slice is not sorted.
//
// The key function is consulted on every comparison, so an entry's key must
// not change while the entry sits in the heap.
type MinHeap[T any] struct {
	items []T
	key   func(T) HeapKey
}

// NewMinHeap returns an empty heap ordered by key.
func NewMinHeap[T any](key func(T) HeapKey) *MinHeap[T] {
	return &MinHeap[T]{key: key}
}

// Len returns the number of entries.
func (h *MinHeap[T]) Len() int { return len(h.items) }

// Push inserts v in O(log n).
func (h *MinHeap[T]) Push(v T) {
	h.items = append(h.items, v)
	h.siftUp(len(h.items) - 1)
}

// Peek returns the minimum without removing it.
func (h *MinHeap[T]) Peek() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

// Pop removes and returns the minimum in O(log n).
func (h *MinHeap[T]) Pop() (T, bool) {
	var zero T
	n := len(h.items)
	if n == 0 {
		return zero, false
	}

	first := h.items[0]
	last := h.items[n-1]
	h.items[n-1] = zero // avoid memory leak
	h.items = h.items[:n-1]
	if n > 1 {
		h.items[0] = last
		h.siftDown(0)
	}
	return first, true
}

func (h *MinHeap[T]) less(i, j int) bool {
	return h.key(h.items[i]).Less(h.key(h.items[j]))
}

func (h *MinHeap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *MinHeap[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *MinHeap[T]) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		right := left + 1

		// If the left child is smaller, swap with whichever child is smaller.
		if h.less(left, i) {
			if right < n && h.less(right, left) {
				h.swap(i, right)
				i = right
			} else {
				h.swap(i, left)
				i = left
			}
			continue
		}
		if right < n && h.less(right, i) {
			h.swap(i, right)
			i = right
			continue
		}
		return
	}
}
