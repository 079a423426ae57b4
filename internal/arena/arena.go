// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import (
	"errors"
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/cpu"
)

// ErrExhausted is returned by Alloc when the node limit has been reached
// and no freed node is available for reuse.
var ErrExhausted = errors.New("arena: node limit reached")

const (
	baseBits    = 6
	baseSize    = 1 << baseBits
	maxSegments = 32

	indexMask = 1<<32 - 1
	genMask   = 1<<32 - 1
)

// MaxNodes is the largest node limit an Arena accepts.
// Index+1 must fit in the low 32 bits of a Ref.
const MaxNodes = 1<<32 - 1

// Ref is a generation-tagged node handle: gen<<32 | (index+1).
// The zero Ref is nil.
type Ref uint64

// Nil is the nil node handle.
const Nil Ref = 0

func makeRef(gen, index uint64) Ref {
	return Ref((gen&genMask)<<32 | (index + 1))
}

// Index returns the slot index of r. r must not be Nil.
func (r Ref) Index() uint64 {
	return uint64(r)&indexMask - 1
}

// Gen returns the generation r was issued under.
func (r Ref) Gen() uint64 {
	return uint64(r) >> 32
}

type node[T any] struct {
	next  atomix.Uint64 // queue successor (Ref)
	gen   atomix.Uint64
	link  atomix.Uint64 // free list successor (index+1)
	value T
}

type segment[T any] struct {
	nodes []node[T]
}

// Arena is a lock-free, growable node store.
//
// Segment k holds 64<<k nodes, so the fixed directory never has to be
// reallocated. Freed nodes are recycled through a tag-versioned Treiber
// stack. A node's generation is bumped on every free, which makes stale
// handles detectable and turns a second free of the same Ref into a panic.
type Arena[T any] struct {
	_         cpu.CacheLinePad
	free      atomix.Uint64 // tag<<32 | (index+1)
	_         cpu.CacheLinePad
	grown     atomix.Uint64 // indices handed out from fresh segments
	_         cpu.CacheLinePad
	allocated atomix.Uint64
	freed     atomix.Uint64
	limit     uint64
	segs      [maxSegments]atomic.Pointer[segment[T]]
}

// New creates an arena holding at most limit nodes at a time.
// A limit of 0 or above MaxNodes selects MaxNodes.
func New[T any](limit uint64) *Arena[T] {
	if limit == 0 || limit > MaxNodes {
		limit = MaxNodes
	}
	return &Arena[T]{limit: limit}
}

// locate maps an index onto its segment and offset.
func locate(index uint64) (seg int, off uint64) {
	j := index + baseSize
	seg = bits.Len64(j) - 1 - baseBits
	off = j - baseSize<<seg
	return
}

func (a *Arena[T]) at(index uint64) *node[T] {
	seg, off := locate(index)
	return &a.segs[seg].Load().nodes[off]
}

func (a *Arena[T]) ensure(index uint64) {
	seg, _ := locate(index)
	if a.segs[seg].Load() != nil {
		return
	}
	s := &segment[T]{nodes: make([]node[T], baseSize<<seg)}
	a.segs[seg].CompareAndSwap(nil, s)
}

// Alloc takes a node, stores *v in it and returns its handle.
// The node's successor is Nil.
func (a *Arena[T]) Alloc(v *T) (Ref, error) {
	index, ok := a.pop()
	if !ok {
		var err error
		index, err = a.grow()
		if err != nil {
			// A concurrent Free may have refilled the list.
			if index, ok = a.pop(); !ok {
				return Nil, err
			}
		}
	}

	n := a.at(index)
	n.value = *v
	n.next.StoreRelaxed(uint64(Nil))
	a.allocated.AddAcqRel(1)
	return makeRef(n.gen.LoadAcquire(), index), nil
}

func (a *Arena[T]) grow() (uint64, error) {
	sw := spin.Wait{}
	for {
		index := a.grown.LoadAcquire()
		if index >= a.limit {
			return 0, ErrExhausted
		}
		if a.grown.CompareAndSwapAcqRel(index, index+1) {
			a.ensure(index)
			return index, nil
		}
		sw.Once()
	}
}

func (a *Arena[T]) pop() (uint64, bool) {
	sw := spin.Wait{}
	for {
		head := a.free.LoadAcquire()
		top := head & indexMask
		if top == 0 {
			return 0, false
		}
		succ := a.at(top - 1).link.LoadAcquire()
		if a.free.CompareAndSwapAcqRel(head, (head>>32+1)<<32|succ) {
			return top - 1, true
		}
		sw.Once()
	}
}

func (a *Arena[T]) push(index uint64) {
	n := a.at(index)
	sw := spin.Wait{}
	for {
		head := a.free.LoadAcquire()
		n.link.StoreRelease(head & indexMask)
		if a.free.CompareAndSwapAcqRel(head, (head>>32+1)<<32|(index+1)) {
			return
		}
		sw.Once()
	}
}

// Free returns the node behind r to the arena.
// Panics if r is Nil or was already freed.
func (a *Arena[T]) Free(r Ref) {
	if r == Nil {
		panic("arena: free of nil ref")
	}
	n := a.at(r.Index())
	g := r.Gen()
	if !n.gen.CompareAndSwapAcqRel(g, (g+1)&genMask) {
		panic("arena: double free or stale ref")
	}
	var zero T
	n.value = zero
	n.next.StoreRelaxed(uint64(Nil))
	a.freed.AddAcqRel(1)
	a.push(r.Index())
}

// Next returns the successor word of the node behind r.
func (a *Arena[T]) Next(r Ref) *atomix.Uint64 {
	return &a.at(r.Index()).next
}

// Value returns a pointer to the value stored in the node behind r.
func (a *Arena[T]) Value(r Ref) *T {
	return &a.at(r.Index()).value
}

// Live reports whether r still names an allocated node,
// i.e. it has not been freed since it was issued.
func (a *Arena[T]) Live(r Ref) bool {
	if r == Nil {
		return false
	}
	return a.at(r.Index()).gen.LoadAcquire() == r.Gen()
}

// Allocated returns the number of successful Alloc calls.
func (a *Arena[T]) Allocated() uint64 {
	return a.allocated.LoadAcquire()
}

// Freed returns the number of Free calls.
func (a *Arena[T]) Freed() uint64 {
	return a.freed.LoadAcquire()
}

// Limit returns the maximum number of nodes held at a time.
func (a *Arena[T]) Limit() uint64 {
	return a.limit
}
