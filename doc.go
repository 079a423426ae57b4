// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msq provides an unbounded lock-free FIFO queue with hazard
// pointer memory reclamation.
//
// The queue is the two-CAS linked list algorithm by Michael & Scott. Any
// number of goroutines may enqueue and dequeue concurrently; no operation
// takes a lock, and system-wide progress is guaranteed by CAS-retry and
// helping (lock-free, not wait-free).
//
// # Quick Start
//
// Direct constructor:
//
//	q := msq.NewMPMC[Event](16) // up to 16 registered goroutines
//
// Builder API:
//
//	q := msq.Build[Event](msq.New(16).ReclaimBatch(64))
//	b := msq.BuildBounded[Event](msq.New(16), 4096)
//
// # Basic Usage
//
// Every goroutine registers once and works through its own handle:
//
//	h, err := q.Register()
//	if err != nil {
//	    return err // ErrRegistryFull: more goroutines than maxThreads
//	}
//	defer h.Release()
//
//	// Enqueue (non-blocking, never full)
//	value := 42
//	if err := h.Enqueue(&value); err != nil {
//	    // ErrAllocation: node limit reached
//	}
//
//	// Dequeue (non-blocking)
//	elem, err := h.Dequeue()
//	if msq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # Handles and Hazard Slots
//
// A handle owns one slot of the queue's hazard registry. The registry has
// a fixed number of slots chosen at construction (maxThreads); Register
// fails with [ErrRegistryFull] when all are taken, so a goroutine can
// never operate without hazard protection. Release gives the slot back.
//
// A handle is not safe for concurrent use. Register one per goroutine:
//
//	for range numWorkers {
//	    go func() {
//	        h, err := q.Register()
//	        if err != nil {
//	            panic(err)
//	        }
//	        defer h.Release()
//	        backoff := iox.Backoff{}
//	        for {
//	            job, err := h.Dequeue()
//	            if err != nil {
//	                backoff.Wait()
//	                continue
//	            }
//	            backoff.Reset()
//	            job.Run()
//	        }
//	    }()
//	}
//
// # Memory Reclamation
//
// Nodes live in an arena and are named by generation-tagged handles.
// Before touching a node, an operation publishes its handle in the
// caller's hazard slot and re-reads the shared word it came from; only if
// the word is unchanged is the node protected.
//
// Dequeue unlinks the old sentinel and retires it to the handle's private
// list. Every ReclaimBatch retirements (default 1) the handle scans all
// hazard slots and frees the retired nodes nobody publishes. Protected
// nodes wait for a later scan; nothing is freed on a timer or
// unconditionally. A released handle's leftovers are adopted by the next
// scan of any other handle.
//
// Freeing a node zeroes its value, so the queue does not keep dequeued
// values reachable for the garbage collector once their node is reclaimed.
//
// # Ordering
//
// Values are returned in the order they were linked. Linkage order among
// concurrent producers is the order their CAS on the last node succeeded,
// which need not match the order the calls were issued.
//
// # Error Handling
//
// Dequeue on an empty queue returns [ErrWouldBlock], sourced from
// [code.hybscloud.com/iox] for ecosystem consistency. It is a control flow
// signal, not a failure:
//
//	msq.IsWouldBlock(err)  // true if queue empty (or bounded queue full)
//	msq.IsSemantic(err)    // true if control flow signal
//	msq.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// Resource exhaustion is reported as a failure:
//
//	ErrRegistryFull  // Register: every hazard slot is owned
//	ErrAllocation    // Enqueue: node limit reached, queue unchanged
//
// Contention is always resolved internally by retrying and is never
// reported. Configuration mistakes (maxThreads < 1 and similar) panic.
//
// # Capacity
//
// The queue is unbounded. Backpressure is layered on top with the
// [Bounded] decorator, which rejects Enqueue with [ErrWouldBlock] while
// capacity values are queued:
//
//	b := msq.NewBounded[Event](16, 1024)
//	h, _ := b.Register()
//	if msq.IsWouldBlock(h.Enqueue(&ev)) {
//	    // Full - handle backpressure
//	}
//
// Length is intentionally not provided because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
// [MPMC.Stats] reports node accounting for diagnostics.
//
// # Teardown
//
// Destroy frees every node still owned by the queue: queued values, the
// sentinel, and retired nodes. It must only be called once every goroutine
// using the queue has finished.
//
//	wg.Wait()
//	dropped := q.Destroy()
//	st := q.Stats() // st.Allocated == st.Freed
//
// # Race Detection
//
// Go's race detector is not designed for lock-free algorithm verification.
// Node values are plain fields published through acquire-release atomics
// on the link words, which the detector may not observe. Concurrent tests
// are skipped when [RaceEnabled] is set. Use [Builder.Checked] under stress
// to detect use of reclaimed nodes instead.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package msq
