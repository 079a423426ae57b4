// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"slices"

	"code.hybscloud.com/msq/internal/arena"
)

// orphanBatch carries retired nodes left behind by a released handle.
type orphanBatch struct {
	refs []arena.Ref
	next *orphanBatch
}

// retire queues an unlinked node for reclamation.
//
// A scan runs once batch nodes have been retired since the previous scan.
// Survivors of a scan are bounded by the number of hazard pointers, so a
// handle never holds more than batch + 2*maxThreads retired nodes.
func (h *Handle[T]) retire(r arena.Ref) {
	h.retired = append(h.retired, r)
	h.q.retired.AddAcqRel(1)
	if len(h.retired)-h.kept >= h.q.batch {
		h.reclaim()
	}
}

// reclaim frees every retired node that no hazard pointer publishes.
// Protected nodes stay on the list for the next scan.
func (h *Handle[T]) reclaim() {
	q := h.q
	h.adopt()

	h.scan = q.hazards.Scan(h.scan[:0])
	slices.Sort(h.scan)

	kept := h.retired[:0]
	for _, r := range h.retired {
		if _, found := slices.BinarySearch(h.scan, uint64(r)); found {
			kept = append(kept, r)
			continue
		}
		q.free(r)
	}
	h.retired = kept
	h.kept = len(kept)
}

// adopt moves orphaned batches onto the handle's own list.
func (h *Handle[T]) adopt() {
	if h.q.orphans.Load() == nil {
		return
	}
	for b := h.q.orphans.Swap(nil); b != nil; b = b.next {
		h.retired = append(h.retired, b.refs...)
	}
}

// orphan publishes a batch of retired nodes for adoption.
//
// Batches are only ever removed all at once by Swap, so the push cannot
// suffer ABA.
func (q *MPMC[T]) orphan(refs []arena.Ref) {
	b := &orphanBatch{refs: refs}
	for {
		top := q.orphans.Load()
		b.next = top
		if q.orphans.CompareAndSwap(top, b) {
			return
		}
	}
}

func (q *MPMC[T]) free(r arena.Ref) {
	q.nodes.Free(r)
	q.retired.AddAcqRel(-1)
}
