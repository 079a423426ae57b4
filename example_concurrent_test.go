// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// This file contains examples with concurrent producer/consumer goroutines.
// These trigger false positives with Go's race detector because lock-free
// queue synchronization uses atomic sequences that the detector cannot see.
// The examples are correct; they're excluded from race testing.

package msq_test

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/msq"
)

// Example_producersConsumers demonstrates four producers and two
// consumers sharing one queue, each through its own handle.
func Example_producersConsumers() {
	const producers = 4
	const perProducer = 100

	q := msq.NewMPMC[int](producers + 2)
	defer q.Destroy()

	var wg sync.WaitGroup
	var sum, received atomix.Int64

	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				panic(err)
			}
			defer h.Release()
			for i := range perProducer {
				v := p*perProducer + i
				h.Enqueue(&v)
			}
		}()
	}

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				panic(err)
			}
			defer h.Release()
			backoff := iox.Backoff{}
			for received.Load() < producers*perProducer {
				v, err := h.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				sum.Add(int64(v))
				received.Add(1)
			}
		}()
	}
	wg.Wait()

	fmt.Println("received:", received.Load())
	fmt.Println("sum:", sum.Load())

	// Output:
	// received: 400
	// sum: 79800
}

// Example_workerPool demonstrates a job queue drained by a pool of
// workers with a results queue flowing back.
func Example_workerPool() {
	type Job struct {
		ID    int
		Input int
	}

	jobs := msq.NewMPMC[Job](4)
	results := msq.NewBounded[int](4, 8)
	defer jobs.Destroy()
	defer results.Destroy()

	var wg sync.WaitGroup
	var done atomix.Int32

	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in, _ := jobs.Register()
			defer in.Release()
			out, _ := results.Register()
			defer out.Release()

			backoff := iox.Backoff{}
			for done.Load() < 5 {
				job, err := in.Dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				r := job.Input * job.Input
				for out.Enqueue(&r) != nil {
					backoff.Wait()
				}
				done.Add(1)
			}
		}()
	}

	submit, _ := jobs.Register()
	for i := range 5 {
		job := Job{ID: i, Input: i + 1}
		submit.Enqueue(&job)
	}
	submit.Release()
	wg.Wait()

	collect, _ := results.Register()
	defer collect.Release()
	total := 0
	for {
		r, err := collect.Dequeue()
		if err != nil {
			break
		}
		total += r
	}
	fmt.Println("sum of squares:", total)

	// Output:
	// sum of squares: 55
}
