// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/msq/internal/arena"
	"code.hybscloud.com/msq/internal/hazard"
)

// Hazard pointer roles within a slot.
const (
	hpFirst = 0 // head (Dequeue) or tail (Enqueue)
	hpNext  = 1 // successor of head while its value is read

	hazardsPerSlot = 2
)

// MPMC is an unbounded lock-free multi-producer multi-consumer queue.
//
// Based on the two-CAS linked queue by Michael & Scott (PODC 1996) with
// hazard pointer reclamation by Michael (TPDS 2004). The chain always
// starts with a sentinel node whose value is not observable; the value
// returned by Dequeue is the one stored in the node after the sentinel,
// and that node becomes the new sentinel.
//
// head and tail hold generation-tagged node handles and change only by
// CAS. tail may lag one node behind the last node; every operation that
// notices the lag helps to advance it.
//
// Goroutines access the queue through a Handle obtained from Register.
//
// Memory: one arena node per queued value plus the sentinel and nodes
// awaiting reclamation
type MPMC[T any] struct {
	_         pad
	head      atomix.Uint64 // arena.Ref of the sentinel
	_         pad
	tail      atomix.Uint64 // arena.Ref of the last or next-to-last node
	_         pad
	retired   atomix.Int64 // Unlinked, not yet freed
	orphans   atomic.Pointer[orphanBatch]
	destroyed atomix.Bool
	_         pad
	nodes     *arena.Arena[T]
	hazards   *hazard.Registry
	handles   []*Handle[T] // Indexed by slot, written by the owner only
	batch     int
	checked   bool
}

// NewMPMC creates an unbounded MPMC queue for up to maxThreads
// concurrently registered goroutines.
// Panics if maxThreads < 1.
func NewMPMC[T any](maxThreads int) *MPMC[T] {
	return Build[T](New(maxThreads))
}

func newMPMC[T any](opts Options) *MPMC[T] {
	q := &MPMC[T]{
		nodes:   arena.New[T](opts.nodeLimit),
		hazards: hazard.New(opts.maxThreads, hazardsPerSlot),
		handles: make([]*Handle[T], opts.maxThreads),
		batch:   opts.reclaimBatch,
		checked: opts.checked,
	}

	var zero T
	sentinel, err := q.nodes.Alloc(&zero)
	if err != nil {
		panic("msq: cannot allocate sentinel")
	}
	q.head.StoreRelaxed(uint64(sentinel))
	q.tail.StoreRelaxed(uint64(sentinel))
	return q
}

// Register binds a hazard slot to the caller and returns its handle.
//
// Returns ErrRegistryFull if maxThreads handles are already live, or
// ErrDestroyed after Destroy. Registration never silently proceeds
// without hazard protection.
func (q *MPMC[T]) Register() (*Handle[T], error) {
	if q.destroyed.LoadAcquire() {
		return nil, ErrDestroyed
	}
	slot, err := q.hazards.Acquire()
	if err != nil {
		return nil, ErrRegistryFull
	}
	h := &Handle[T]{q: q, slot: slot}
	q.handles[slot.Index()] = h
	return h, nil
}

// MaxThreads returns the hazard slot table size.
func (q *MPMC[T]) MaxThreads() int {
	return q.hazards.Cap()
}

// Destroy frees every node the queue still owns and returns the number
// of queued values that were discarded.
//
// The caller must ensure all goroutines using the queue have finished:
// no handle may be used concurrently with or after Destroy. Handles that
// were not released are released by Destroy. Destroying twice is a no-op.
func (q *MPMC[T]) Destroy() int {
	if q.destroyed.LoadAcquire() {
		return 0
	}
	q.destroyed.StoreRelease(true)

	// With no goroutine left, nothing is hazardous.
	for i, h := range q.handles {
		if h == nil {
			continue
		}
		for _, r := range h.retired {
			q.free(r)
		}
		h.retired = nil
		h.slot.Release()
		h.slot = nil
		q.handles[i] = nil
	}
	for b := q.orphans.Swap(nil); b != nil; b = b.next {
		for _, r := range b.refs {
			q.free(r)
		}
	}

	dropped := 0
	r := arena.Ref(q.head.LoadAcquire())
	for r != arena.Nil {
		next := arena.Ref(q.nodes.Next(r).LoadAcquire())
		if next != arena.Nil {
			dropped++
		}
		q.nodes.Free(r)
		r = next
	}
	q.head.StoreRelease(uint64(arena.Nil))
	q.tail.StoreRelease(uint64(arena.Nil))
	return dropped
}

// Stats is a snapshot of node accounting.
//
// Under concurrent use the fields are read one after another and may be
// mutually inconsistent. After Destroy, Allocated equals Freed and
// Retired is zero.
type Stats struct {
	Allocated uint64 // Nodes ever handed out, including the sentinel
	Freed     uint64 // Nodes returned to the arena
	Retired   int64  // Nodes unlinked but still awaiting reclamation
	Live      int64  // Nodes on the chain (queued values + sentinel)
}

// Stats returns the queue's node accounting.
func (q *MPMC[T]) Stats() Stats {
	retired := q.retired.LoadAcquire()
	freed := q.nodes.Freed()
	allocated := q.nodes.Allocated()
	return Stats{
		Allocated: allocated,
		Freed:     freed,
		Retired:   retired,
		Live:      int64(allocated) - int64(freed) - retired,
	}
}

func (q *MPMC[T]) mustLive() {
	if q.destroyed.LoadAcquire() {
		panic("msq: use of destroyed queue")
	}
}

// check panics when a protected node has been reclaimed.
// Only active in checked mode.
func (q *MPMC[T]) check(r arena.Ref) {
	if q.checked && !q.nodes.Live(r) {
		panic("msq: use of reclaimed node")
	}
}
