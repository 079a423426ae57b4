// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import "golang.org/x/sys/cpu"

// Options configures queue creation.
type Options struct {
	// Hazard slot table size (maximum concurrently registered goroutines)
	maxThreads int

	// Reclamation
	reclaimBatch int // Retirements between hazard scans

	// Node arena ceiling (0 = full index space)
	nodeLimit uint64

	// Instrumentation
	checked bool // Verify node generations on dereference
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	// Default MPMC queue for up to 16 goroutines
//	q := msq.Build[Request](msq.New(16))
//
//	// Amortize hazard scans over 64 retirements
//	q := msq.Build[Request](msq.New(16).ReclaimBatch(64))
//
//	// Capacity-limited decorator
//	q := msq.BuildBounded[Request](msq.New(16), 4096)
type Builder struct {
	opts Options
}

// New creates a queue builder for up to maxThreads concurrently
// registered goroutines.
//
// maxThreads is the size of the hazard slot table and is fixed for the
// lifetime of the queue. Register fails with ErrRegistryFull once
// maxThreads handles are live.
//
// Panics if maxThreads < 1.
func New(maxThreads int) *Builder {
	if maxThreads < 1 {
		panic("msq: maxThreads must be >= 1")
	}
	return &Builder{opts: Options{maxThreads: maxThreads, reclaimBatch: 1}}
}

// ReclaimBatch sets how many nodes a handle retires before it scans the
// hazard slots and frees what is no longer protected.
//
// The default of 1 attempts reclamation on every retirement. Larger
// batches amortize the O(maxThreads) scan over more dequeues at the cost
// of more nodes waiting to be freed.
//
// Panics if n < 1.
func (b *Builder) ReclaimBatch(n int) *Builder {
	if n < 1 {
		panic("msq: reclaim batch must be >= 1")
	}
	b.opts.reclaimBatch = n
	return b
}

// NodeLimit caps the number of nodes (including the sentinel and nodes
// awaiting reclamation) the queue may hold at a time. Enqueue returns
// ErrAllocation when the cap is hit.
//
// This models allocator exhaustion, not backpressure. Use BuildBounded
// for a capacity limit on queued values.
//
// Panics if n < 1.
func (b *Builder) NodeLimit(n int) *Builder {
	if n < 1 {
		panic("msq: node limit must be >= 1")
	}
	b.opts.nodeLimit = uint64(n)
	return b
}

// Checked enables use-after-free detection: every protected node is
// verified against its generation after it is read, and a mismatch
// panics. Intended for tests and stress runs.
func (b *Builder) Checked() *Builder {
	b.opts.checked = true
	return b
}

// Build creates an unbounded MPMC queue.
func Build[T any](b *Builder) *MPMC[T] {
	return newMPMC[T](b.opts)
}

// BuildBounded creates an MPMC queue wrapped in a capacity-limiting
// decorator. Enqueue returns ErrWouldBlock while capacity values are
// queued.
//
// Panics if capacity < 1.
func BuildBounded[T any](b *Builder, capacity int) *Bounded[T] {
	return newBounded(newMPMC[T](b.opts), capacity)
}

// pad is cache line padding to prevent false sharing.
type pad = cpu.CacheLinePad
