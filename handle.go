// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/msq/internal/arena"
	"code.hybscloud.com/msq/internal/hazard"
	"code.hybscloud.com/spin"
)

// Handle is one goroutine's access point to an MPMC queue.
//
// A handle owns a hazard slot and a private list of retired nodes. It must
// be used by one goroutine at a time; handing it to another goroutine is
// fine once the first has stopped using it.
type Handle[T any] struct {
	q       *MPMC[T]
	slot    *hazard.Slot
	retired []arena.Ref
	kept    int // Survivors of the last scan
	scan    []uint64
}

// Enqueue appends a copy of *elem to the tail of the queue.
//
// Lock-free: a producer that finds tail lagging helps to advance it
// before retrying. Returns ErrAllocation if the node limit is reached
// even after reclaiming the handle's own retired nodes; the queue is
// left unchanged in that case.
func (h *Handle[T]) Enqueue(elem *T) error {
	q := h.mustQueue()

	node, err := q.nodes.Alloc(elem)
	if err != nil {
		// Our own retirements may be holding the last free nodes.
		if len(h.retired) > 0 || q.orphans.Load() != nil {
			h.reclaim()
			node, err = q.nodes.Alloc(elem)
		}
		if err != nil {
			return ErrAllocation
		}
	}

	sw := spin.Wait{}
	for {
		last := arena.Ref(h.slot.Protect(hpFirst, &q.tail))
		link := q.nodes.Next(last)
		next := link.LoadAcquire()
		q.check(last)

		if q.tail.LoadAcquire() == uint64(last) {
			if next == uint64(arena.Nil) {
				if link.CompareAndSwapAcqRel(next, uint64(node)) {
					// Best effort: a failed swing is finished by whoever
					// observes the lag next.
					q.tail.CompareAndSwapAcqRel(uint64(last), uint64(node))
					h.slot.Clear(hpFirst)
					return nil
				}
			} else {
				q.tail.CompareAndSwapAcqRel(uint64(last), next)
			}
		}
		sw.Once()
	}
}

// Dequeue removes and returns the value at the head of the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
//
// The old sentinel is retired and freed once no hazard pointer
// references it.
func (h *Handle[T]) Dequeue() (T, error) {
	q := h.mustQueue()

	sw := spin.Wait{}
	for {
		first := arena.Ref(h.slot.Protect(hpFirst, &q.head))
		last := q.tail.LoadAcquire()
		next := q.nodes.Next(first).LoadAcquire()
		q.check(first)

		if q.head.LoadAcquire() != uint64(first) {
			sw.Once()
			continue
		}

		if uint64(first) == last {
			if next == uint64(arena.Nil) {
				h.slot.ClearAll()
				var zero T
				return zero, ErrWouldBlock
			}
			// Tail is lagging behind a linked node
			q.tail.CompareAndSwapAcqRel(last, next)
			sw.Once()
			continue
		}

		// next stays linked while head == first, so the re-check
		// below makes the hazard on next effective.
		h.slot.Publish(hpNext, next)
		if q.head.Load() != uint64(first) {
			sw.Once()
			continue
		}

		elem := *q.nodes.Value(arena.Ref(next))
		q.check(arena.Ref(next))
		if q.head.CompareAndSwapAcqRel(uint64(first), next) {
			h.slot.ClearAll()
			h.retire(first)
			return elem, nil
		}
		sw.Once()
	}
}

// Release returns the handle's hazard slot to the queue.
//
// Retired nodes that are still protected by other goroutines are handed
// to the queue and freed by a later scan of any handle. The handle must
// not be used after Release. Releasing twice is a no-op.
func (h *Handle[T]) Release() {
	if h.slot == nil {
		return
	}
	h.slot.ClearAll()
	h.reclaim()
	if len(h.retired) > 0 {
		h.q.orphan(h.retired)
		h.retired = nil
		h.kept = 0
	}
	h.q.handles[h.slot.Index()] = nil
	h.slot.Release()
	h.slot = nil
}

// Pending returns the number of nodes this handle has retired but not
// yet freed.
func (h *Handle[T]) Pending() int {
	return len(h.retired)
}

func (h *Handle[T]) mustQueue() *MPMC[T] {
	if h.slot == nil {
		panic("msq: use of released handle")
	}
	h.q.mustLive()
	return h.q
}
