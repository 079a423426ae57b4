// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Dequeue: the queue is empty (no value linked yet)
// For Enqueue on a Bounded queue: the capacity is reached (backpressure)
//
// ErrWouldBlock is a control flow signal, not a failure. An empty queue is
// the normal outcome of racing against producers; the caller decides
// whether to poll again, back off, or give up.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrAllocation indicates Enqueue could not obtain a node because the
// node limit was reached. The queue is left unchanged.
var ErrAllocation = errors.New("msq: node allocation failed")

// ErrRegistryFull indicates more goroutines tried to register than the
// queue has hazard slots. Raise maxThreads or Release idle handles.
var ErrRegistryFull = errors.New("msq: hazard registry full")

// ErrDestroyed is returned by Register after Destroy.
var ErrDestroyed = errors.New("msq: queue destroyed")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, or ErrMore.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
