// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Lock-free algorithm tests excluded from race detection.
//
// Node values are plain fields written before the node is linked with an
// acquire-release CAS and read after the link is loaded with acquire
// semantics. The race detector may not observe this ordering when it is
// established through atomix, so these tests are skipped under -race.

package msq_test

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msq"
)

func skipRace(t *testing.T) {
	t.Helper()
	if msq.RaceEnabled {
		t.Skip("skip: lock-free algorithm uses cross-variable memory ordering")
	}
}

// =============================================================================
// Concrete Scenario
// =============================================================================

// TestFourProducersThenDrain runs 4 producers of 100 values each
// (producer*100 + j), joins them, and drains from a single goroutine.
func TestFourProducersThenDrain(t *testing.T) {
	skipRace(t)

	const producers = 4
	const perProducer = 100

	q := msq.Build[int](msq.New(producers + 1).Checked())
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			defer h.Release()
			for j := range perProducer {
				v := p*perProducer + j
				if err := h.Enqueue(&v); err != nil {
					t.Errorf("Enqueue(%d): %v", v, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	h, err := q.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	seen := make([]bool, producers*perProducer)
	count := 0
	for {
		v, err := h.Dequeue()
		if msq.IsWouldBlock(err) {
			break
		}
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if v < 0 || v >= len(seen) {
			t.Fatalf("value out of range: %d", v)
		}
		if seen[v] {
			t.Fatalf("duplicate value: %d", v)
		}
		seen[v] = true
		count++
	}
	if count != producers*perProducer {
		t.Fatalf("drained %d values, want %d", count, producers*perProducer)
	}
	for v, ok := range seen {
		if !ok {
			t.Fatalf("missing value: %d", v)
		}
	}
	h.Release()

	q.Destroy()
	if st := q.Stats(); st.Allocated != st.Freed || st.Retired != 0 {
		t.Fatalf("Stats after Destroy: %+v", st)
	}
}

// =============================================================================
// Ordering
// =============================================================================

// TestSPSCOrder verifies a concurrent producer/consumer pair observes
// exactly the enqueued sequence.
func TestSPSCOrder(t *testing.T) {
	skipRace(t)

	const n = 100000
	q := msq.NewMPMC[int](2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h, err := q.Register()
		if err != nil {
			t.Errorf("Register: %v", err)
			return
		}
		defer h.Release()
		for i := range n {
			if err := h.Enqueue(&i); err != nil {
				t.Errorf("Enqueue(%d): %v", i, err)
				return
			}
		}
	}()

	h, err := q.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer h.Release()

	backoff := iox.Backoff{}
	deadline := time.Now().Add(10 * time.Second)
	for want := 0; want < n; {
		v, err := h.Dequeue()
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("timeout at %d", want)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != want {
			t.Fatalf("Dequeue: got %d, want %d", v, want)
		}
		want++
	}
	wg.Wait()
}

// TestPerProducerOrder verifies each consumer sees every producer's values
// in increasing order under full MPMC contention.
func TestPerProducerOrder(t *testing.T) {
	skipRace(t)

	const producers = 4
	const consumers = 4
	const perProducer = 20000

	q := msq.NewMPMC[[2]int](producers + consumers)
	var wg sync.WaitGroup
	var consumed atomix.Int64

	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			defer h.Release()
			for j := range perProducer {
				v := [2]int{p, j}
				if err := h.Enqueue(&v); err != nil {
					t.Errorf("Enqueue: %v", err)
					return
				}
			}
		}()
	}

	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			defer h.Release()
			last := make([]int, producers)
			for i := range last {
				last[i] = -1
			}
			backoff := iox.Backoff{}
			for consumed.Load() < producers*perProducer {
				v, err := h.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				consumed.Add(1)
				if v[1] <= last[v[0]] {
					t.Errorf("producer %d: got %d after %d", v[0], v[1], last[v[0]])
					return
				}
				last[v[0]] = v[1]
			}
		}()
	}
	wg.Wait()

	if got := consumed.Load(); got != producers*perProducer {
		t.Fatalf("consumed %d, want %d", got, producers*perProducer)
	}
}

// =============================================================================
// Conservation and Reclamation
// =============================================================================

// TestConservation verifies dequeued + drained == enqueued, with no value
// lost or duplicated, for several reclamation batch sizes.
func TestConservation(t *testing.T) {
	skipRace(t)

	for _, batch := range []int{1, 8, 128} {
		t.Run(fmt.Sprintf("batch=%d", batch), func(t *testing.T) {
			const producers = 6
			const consumers = 6
			const perProducer = 20000
			const total = producers * perProducer

			q := msq.Build[int](msq.New(producers + consumers + 1).ReclaimBatch(batch).Checked())
			seen := make([]atomix.Int32, total)

			var prodWg, consWg sync.WaitGroup
			var stop atomix.Bool
			var dequeued atomix.Int64

			for p := range producers {
				prodWg.Add(1)
				go func() {
					defer prodWg.Done()
					h, err := q.Register()
					if err != nil {
						t.Errorf("Register: %v", err)
						return
					}
					defer h.Release()
					for j := range perProducer {
						v := p*perProducer + j
						if err := h.Enqueue(&v); err != nil {
							t.Errorf("Enqueue: %v", err)
							return
						}
						if j%64 == 0 {
							runtime.Gosched()
						}
					}
				}()
			}

			for range consumers {
				consWg.Add(1)
				go func() {
					defer consWg.Done()
					h, err := q.Register()
					if err != nil {
						t.Errorf("Register: %v", err)
						return
					}
					defer h.Release()
					for !stop.Load() {
						v, err := h.Dequeue()
						if err != nil {
							runtime.Gosched()
							continue
						}
						seen[v].Add(1)
						dequeued.Add(1)
					}
				}()
			}

			prodWg.Wait()
			stop.Store(true)
			consWg.Wait()

			h, err := q.Register()
			if err != nil {
				t.Fatalf("Register: %v", err)
			}
			drained := 0
			for {
				v, err := h.Dequeue()
				if err != nil {
					break
				}
				seen[v].Add(1)
				drained++
			}
			h.Release()

			if got := int(dequeued.Load()) + drained; got != total {
				t.Fatalf("dequeued %d + drained %d = %d, want %d", dequeued.Load(), drained, got, total)
			}
			for v := range seen {
				if c := seen[v].Load(); c != 1 {
					t.Fatalf("value %d seen %d times", v, c)
				}
			}

			st := q.Stats()
			if st.Retired != 0 {
				t.Fatalf("Retired after all handles released: %d", st.Retired)
			}
			q.Destroy()
			if st := q.Stats(); st.Allocated != st.Freed {
				t.Fatalf("Allocated %d != Freed %d", st.Allocated, st.Freed)
			}
		})
	}
}

// TestNoPrematureFree hammers a small queue with interleaved enqueue and
// dequeue in checked mode. Any dereference of a reclaimed node panics.
func TestNoPrematureFree(t *testing.T) {
	skipRace(t)

	const workers = 8
	const ops = 50000

	q := msq.Build[int](msq.New(workers).Checked())
	var wg sync.WaitGroup
	var enq, deq atomix.Int64

	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			defer h.Release()
			for i := range ops {
				if (i+w)%2 == 0 {
					v := i
					if err := h.Enqueue(&v); err != nil {
						t.Errorf("Enqueue: %v", err)
						return
					}
					enq.Add(1)
				} else if _, err := h.Dequeue(); err == nil {
					deq.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	dropped := q.Destroy()
	if got := deq.Load() + int64(dropped); got != enq.Load() {
		t.Fatalf("dequeued %d + dropped %d != enqueued %d", deq.Load(), dropped, enq.Load())
	}
	if st := q.Stats(); st.Allocated != st.Freed || st.Retired != 0 {
		t.Fatalf("Stats after Destroy: %+v", st)
	}
}

// TestNodeRecycling verifies steady-state traffic reuses freed nodes
// instead of growing the arena.
func TestNodeRecycling(t *testing.T) {
	skipRace(t)

	const workers = 4
	const rounds = 20000

	// Queued values never exceed workers. The limit covers them, nodes
	// being linked, and retired nodes waiting on hazards; reclamation on
	// allocation failure keeps it from deadlocking.
	q := msq.Build[int](msq.New(workers).NodeLimit(1 + 2*workers + workers*(1+2*workers)))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			defer h.Release()
			for i := range rounds {
				backoff := iox.Backoff{}
				for h.Enqueue(&i) != nil {
					backoff.Wait()
				}
				for {
					if _, err := h.Dequeue(); err == nil {
						break
					}
					backoff.Wait()
				}
			}
		}()
	}
	wg.Wait()

	st := q.Stats()
	if st.Allocated != uint64(1+workers*rounds) {
		t.Fatalf("Allocated: got %d, want %d", st.Allocated, 1+workers*rounds)
	}
	q.Destroy()
}

// =============================================================================
// Registration Churn
// =============================================================================

// TestRegisterReleaseChurn verifies slots cycle between short-lived
// goroutines while others keep working.
func TestRegisterReleaseChurn(t *testing.T) {
	skipRace(t)

	const slots = 4
	const goroutines = 64
	const perGoroutine = 500

	q := msq.NewMPMC[int](slots)
	var wg sync.WaitGroup
	var enq, deq atomix.Int64

	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var h *msq.Handle[int]
			backoff := iox.Backoff{}
			for {
				var err error
				h, err = q.Register()
				if err == nil {
					break
				}
				if err != msq.ErrRegistryFull {
					t.Errorf("Register: %v", err)
					return
				}
				backoff.Wait()
			}
			defer h.Release()
			for i := range perGoroutine {
				if (g+i)%3 != 0 {
					v := i
					if h.Enqueue(&v) == nil {
						enq.Add(1)
					}
				} else if _, err := h.Dequeue(); err == nil {
					deq.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	dropped := q.Destroy()
	if deq.Load()+int64(dropped) != enq.Load() {
		t.Fatalf("dequeued %d + dropped %d != enqueued %d", deq.Load(), dropped, enq.Load())
	}
	if st := q.Stats(); st.Allocated != st.Freed {
		t.Fatalf("Stats after Destroy: %+v", st)
	}
}
