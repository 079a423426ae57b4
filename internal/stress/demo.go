// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stress

import (
	"fmt"
	"io"
	"sync"

	"code.hybscloud.com/msq"
	"code.hybscloud.com/msq/internal/log"
)

// Demo sizes
const (
	DemoProducers   = 4
	DemoPerProducer = 100
)

// DemoResult is what Demo drained.
type DemoResult struct {
	Values []int `json:"values"`
	Sum    int   `json:"sum"`
}

// Demo runs the basic scenario: four producers enqueue 100 values each
// (producer*100 + j), join, and a single handle drains the queue.
// When w is non-nil every drained value is written to it, one per line.
func Demo(w io.Writer, l *log.Logger) (*DemoResult, error) {
	q := msq.Build[int](msq.New(DemoProducers + 1).Checked())
	defer q.Destroy()

	var wg sync.WaitGroup
	errs := make([]error, DemoProducers)
	for p := range DemoProducers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := q.Register()
			if err != nil {
				errs[p] = err
				return
			}
			defer h.Release()
			for j := range DemoPerProducer {
				v := p*DemoPerProducer + j
				if err := h.Enqueue(&v); err != nil {
					errs[p] = err
					return
				}
			}
		}()
	}
	wg.Wait()
	for p, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("producer %d: %w", p, err)
		}
	}

	h, err := q.Register()
	if err != nil {
		return nil, err
	}
	defer h.Release()

	res := &DemoResult{Values: make([]int, 0, DemoProducers*DemoPerProducer)}
	for {
		v, err := h.Dequeue()
		if err != nil {
			break
		}
		res.Values = append(res.Values, v)
		res.Sum += v
		if w != nil {
			fmt.Fprintln(w, v)
		}
	}
	l.Info(tagDemo, "drained", "count", len(res.Values), "sum", res.Sum)
	return res, nil
}
