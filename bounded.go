// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Bounded limits the number of values queued in an MPMC queue.
//
// Bounded is a decorator: the linked queue underneath stays unbounded and
// unaware of the limit. Producers reserve a unit of capacity with CAS
// before linking and consumers give it back after a successful dequeue,
// so the count can only over-approximate the number of linked values.
//
// Memory: the wrapped MPMC plus one counter
type Bounded[T any] struct {
	_        pad
	size     atomix.Int64 // Reserved or linked values
	_        pad
	q        *MPMC[T]
	capacity int64
}

// NewBounded creates a bounded MPMC queue for up to maxThreads
// concurrently registered goroutines.
// Panics if maxThreads < 1 or capacity < 1.
func NewBounded[T any](maxThreads, capacity int) *Bounded[T] {
	return BuildBounded[T](New(maxThreads), capacity)
}

func newBounded[T any](q *MPMC[T], capacity int) *Bounded[T] {
	if capacity < 1 {
		panic("msq: capacity must be >= 1")
	}
	return &Bounded[T]{q: q, capacity: int64(capacity)}
}

// Register binds a hazard slot to the caller and returns its handle.
// Same errors as MPMC.Register.
func (b *Bounded[T]) Register() (*BoundedHandle[T], error) {
	h, err := b.q.Register()
	if err != nil {
		return nil, err
	}
	return &BoundedHandle[T]{b: b, h: h}, nil
}

// Cap returns the queue capacity.
func (b *Bounded[T]) Cap() int {
	return int(b.capacity)
}

// Unwrap returns the underlying unbounded queue.
func (b *Bounded[T]) Unwrap() *MPMC[T] {
	return b.q
}

// Destroy destroys the underlying queue. See MPMC.Destroy.
func (b *Bounded[T]) Destroy() int {
	n := b.q.Destroy()
	b.size.StoreRelease(0)
	return n
}

// Stats returns the underlying queue's node accounting.
func (b *Bounded[T]) Stats() Stats {
	return b.q.Stats()
}

// BoundedHandle is one goroutine's access point to a Bounded queue.
type BoundedHandle[T any] struct {
	b *Bounded[T]
	h *Handle[T]
}

// Enqueue appends a copy of *elem to the tail of the queue.
// Returns ErrWouldBlock if the queue is full, or ErrAllocation if the
// node limit is reached.
func (h *BoundedHandle[T]) Enqueue(elem *T) error {
	b := h.b
	sw := spin.Wait{}
	for {
		n := b.size.LoadAcquire()
		if n >= b.capacity {
			return ErrWouldBlock
		}
		if b.size.CompareAndSwapAcqRel(n, n+1) {
			break
		}
		sw.Once()
	}

	if err := h.h.Enqueue(elem); err != nil {
		b.size.AddAcqRel(-1)
		return err
	}
	return nil
}

// Dequeue removes and returns the value at the head of the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (h *BoundedHandle[T]) Dequeue() (T, error) {
	elem, err := h.h.Dequeue()
	if err == nil {
		h.b.size.AddAcqRel(-1)
	}
	return elem, err
}

// Cap returns the queue capacity.
func (h *BoundedHandle[T]) Cap() int {
	return h.b.Cap()
}

// Release returns the handle's hazard slot. See Handle.Release.
func (h *BoundedHandle[T]) Release() {
	h.h.Release()
}
