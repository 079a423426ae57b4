// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hazard

import (
	"errors"

	"code.hybscloud.com/atomix"
	"golang.org/x/sys/cpu"
)

// ErrExhausted is returned by Acquire when every slot is owned.
var ErrExhausted = errors.New("hazard: registry exhausted")

// MaxPerSlot is the largest number of hazard pointers a slot can carry.
const MaxPerSlot = 4

// Slot is one goroutine's set of hazard pointers.
//
// Only the owning goroutine writes a slot; any goroutine may read it
// through Registry.Scan.
type Slot struct {
	_     cpu.CacheLinePad
	owned atomix.Uint64
	hp    [MaxPerSlot]atomix.Uint64
	n     int
	index int
	reg   *Registry
	_     cpu.CacheLinePad
}

// Registry is a fixed table of hazard slots.
type Registry struct {
	slots   []Slot
	perSlot int
	active  atomix.Int64
}

// New creates a registry with capacity slots of perSlot hazard pointers.
// Panics if capacity < 1 or perSlot is outside [1, MaxPerSlot].
func New(capacity, perSlot int) *Registry {
	if capacity < 1 {
		panic("hazard: capacity must be >= 1")
	}
	if perSlot < 1 || perSlot > MaxPerSlot {
		panic("hazard: hazard pointers per slot out of range")
	}

	r := &Registry{
		slots:   make([]Slot, capacity),
		perSlot: perSlot,
	}
	for i := range r.slots {
		r.slots[i].n = perSlot
		r.slots[i].index = i
		r.slots[i].reg = r
	}
	return r
}

// Acquire claims an unowned slot.
// Returns ErrExhausted if every slot is already owned.
func (r *Registry) Acquire() (*Slot, error) {
	for i := range r.slots {
		s := &r.slots[i]
		if s.owned.LoadAcquire() != 0 {
			continue
		}
		if s.owned.CompareAndSwapAcqRel(0, 1) {
			r.active.AddAcqRel(1)
			return s, nil
		}
	}
	return nil, ErrExhausted
}

// Scan appends every published handle to dst and returns the extended
// slice. The result is a snapshot: a handle absent from it was not
// protected at the moment its slot was read.
func (r *Registry) Scan(dst []uint64) []uint64 {
	for i := range r.slots {
		s := &r.slots[i]
		for j := range r.perSlot {
			if ref := s.hp[j].Load(); ref != 0 {
				dst = append(dst, ref)
			}
		}
	}
	return dst
}

// Protected reports whether any slot currently publishes ref.
func (r *Registry) Protected(ref uint64) bool {
	for i := range r.slots {
		s := &r.slots[i]
		for j := range r.perSlot {
			if s.hp[j].Load() == ref {
				return true
			}
		}
	}
	return false
}

// Cap returns the number of slots.
func (r *Registry) Cap() int {
	return len(r.slots)
}

// PerSlot returns the number of hazard pointers per slot.
func (r *Registry) PerSlot() int {
	return r.perSlot
}

// Active returns the number of owned slots.
func (r *Registry) Active() int {
	return int(r.active.LoadAcquire())
}

// Publish stores ref in hazard pointer i.
//
// The caller must re-read the shared word ref came from before
// dereferencing it. Protect does both steps.
func (s *Slot) Publish(i int, ref uint64) {
	s.hp[i].Store(ref)
}

// Protect loads src, publishes the value in hazard pointer i and
// re-reads src until the published value is current.
// Returns the protected value.
func (s *Slot) Protect(i int, src *atomix.Uint64) uint64 {
	ref := src.Load()
	for {
		s.hp[i].Store(ref)
		cur := src.Load()
		if cur == ref {
			return ref
		}
		ref = cur
	}
}

// Clear withdraws hazard pointer i.
func (s *Slot) Clear(i int) {
	s.hp[i].StoreRelease(0)
}

// ClearAll withdraws every hazard pointer of the slot.
func (s *Slot) ClearAll() {
	for i := range s.n {
		s.hp[i].StoreRelease(0)
	}
}

// Published returns the value of hazard pointer i.
func (s *Slot) Published(i int) uint64 {
	return s.hp[i].Load()
}

// Index returns the position of the slot in its registry.
func (s *Slot) Index() int {
	return s.index
}

// Release clears the slot and returns it to the registry.
// Releasing a slot twice is a no-op.
func (s *Slot) Release() {
	s.ClearAll()
	if s.owned.CompareAndSwapAcqRel(1, 0) {
		s.reg.active.AddAcqRel(-1)
	}
}
