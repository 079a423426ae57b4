// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stress drives an msq queue with concurrent producers and
// consumers and verifies what comes out.
//
// Producer p enqueues p*items+i for i in [0, items). Every consumer keeps
// what it dequeued; after all goroutines join, the values are checked for
// conservation (each value exactly once), per-producer order as seen by
// each consumer, an empty queue, and a balanced arena after Destroy.
package stress

import (
	"context"
	"errors"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"code.hybscloud.com/msq"
	"code.hybscloud.com/msq/internal/log"
)

// queue is the part of MPMC and Bounded a run needs.
type queue interface {
	register() (msq.Queue[int], error)
	Destroy() int
	Stats() msq.Stats
}

type unbounded struct{ *msq.MPMC[int] }

func (q unbounded) register() (msq.Queue[int], error) { return q.Register() }

type bounded struct{ *msq.Bounded[int] }

func (q bounded) register() (msq.Queue[int], error) { return q.Register() }

func build(c *Config) queue {
	b := msq.New(c.MaxThreads()).ReclaimBatch(c.Batch)
	if c.NodeLimit > 0 {
		b.NodeLimit(c.NodeLimit)
	}
	if c.Checked {
		b.Checked()
	}
	if c.Capacity > 0 {
		return bounded{msq.BuildBounded[int](b, c.Capacity)}
	}
	return unbounded{msq.Build[int](b)}
}

type consumerLog struct {
	values     []int
	violations int
}

// Run executes one stress run described by c.
//
// The returned error covers setup problems only. Failed checks are
// recorded in the report; see Report.OK.
func Run(ctx context.Context, c *Config, l *log.Logger) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := build(c)
	r := &Report{Config: c}
	total := int64(c.Total())

	l.Debug(tagRun, "starting",
		"max_threads", c.MaxThreads(),
		"batch", c.Batch,
		"node_limit", c.NodeLimit,
		"capacity", c.Capacity,
		"checked", c.Checked)

	var wg sync.WaitGroup
	var enqueued, dequeued, allocRetries, fullRetries atomix.Int64
	var setup sync.Once
	var setupErr error
	fail := func(err error) {
		setup.Do(func() { setupErr = err })
		cancel()
	}

	start := time.Now()
	for p := range c.Producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.register()
			if err != nil {
				fail(err)
				return
			}
			defer h.Release()

			backoff := iox.Backoff{}
			for i := range c.Items {
				v := p*c.Items + i
				for {
					err := h.Enqueue(&v)
					if err == nil {
						break
					}
					switch {
					case msq.IsWouldBlock(err):
						fullRetries.Add(1)
					case errors.Is(err, msq.ErrAllocation):
						allocRetries.Add(1)
					default:
						fail(err)
						return
					}
					if ctx.Err() != nil {
						return
					}
					backoff.Wait()
				}
				backoff.Reset()
				enqueued.Add(1)
			}
		}()
	}

	logs := make([]consumerLog, c.Consumers)
	for n := range c.Consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.register()
			if err != nil {
				fail(err)
				return
			}
			defer h.Release()

			cl := &logs[n]
			last := make([]int, c.Producers)
			for i := range last {
				last[i] = -1
			}
			backoff := iox.Backoff{}
			for dequeued.Load() < total {
				v, err := h.Dequeue()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				dequeued.Add(1)
				cl.values = append(cl.values, v)
				if p, seq := v/c.Items, v%c.Items; p >= 0 && p < c.Producers {
					if seq <= last[p] {
						cl.violations++
					}
					last[p] = seq
				}
			}
		}()
	}
	wg.Wait()
	r.Elapsed = time.Since(start)

	if setupErr != nil {
		q.Destroy()
		return nil, setupErr
	}

	r.Enqueued = enqueued.Load()
	r.Dequeued = dequeued.Load()
	r.AllocRetries = allocRetries.Load()
	r.FullRetries = fullRetries.Load()
	if secs := r.Elapsed.Seconds(); secs > 0 {
		r.Throughput = float64(r.Enqueued+r.Dequeued) / secs
	}

	if err := ctx.Err(); err != nil {
		r.fail("run aborted: %v", err)
	}
	if r.Enqueued != total {
		r.fail("enqueued %d of %d values", r.Enqueued, total)
	}
	verify(r, c, logs)
	verifyEmpty(r, q)

	r.Dropped = q.Destroy()
	st := q.Stats()
	r.Allocated, r.Freed, r.Retired = st.Allocated, st.Freed, st.Retired
	if r.Dropped != 0 {
		r.fail("destroy dropped %d values", r.Dropped)
	}
	if st.Allocated != st.Freed {
		r.fail("allocated %d nodes but freed %d", st.Allocated, st.Freed)
	}
	if st.Retired != 0 {
		r.fail("%d nodes still retired after destroy", st.Retired)
	}
	return r, nil
}

// verify checks that every value was dequeued exactly once.
func verify(r *Report, c *Config, logs []consumerLog) {
	seen := make([]uint8, c.Total())
	for _, cl := range logs {
		r.OrderViolations += cl.violations
		for _, v := range cl.values {
			if v < 0 || v >= len(seen) {
				r.OutOfRange++
				continue
			}
			if seen[v] > 0 {
				r.Duplicates++
			}
			seen[v] = 1
		}
	}
	for _, s := range seen {
		if s == 0 {
			r.Missing++
		}
	}

	if r.Duplicates > 0 {
		r.fail("%d values dequeued more than once", r.Duplicates)
	}
	if r.Missing > 0 {
		r.fail("%d values never dequeued", r.Missing)
	}
	if r.OutOfRange > 0 {
		r.fail("%d values that were never enqueued", r.OutOfRange)
	}
	if r.OrderViolations > 0 {
		r.fail("%d values out of producer order", r.OrderViolations)
	}
}

// verifyEmpty checks that nothing is left once every value was taken.
func verifyEmpty(r *Report, q queue) {
	h, err := q.register()
	if err != nil {
		r.fail("verifier register: %v", err)
		return
	}
	defer h.Release()
	switch v, err := h.Dequeue(); {
	case err == nil:
		r.fail("queue not empty after drain: found %d", v)
	case !msq.IsWouldBlock(err):
		r.fail("verifier dequeue: %v", err)
	}
}
