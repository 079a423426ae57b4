// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stress

import (
	"fmt"
	"io"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"code.hybscloud.com/msq/internal/log"
)

// Report is the outcome of a stress run.
type Report struct {
	Config *Config `json:"config"`

	Enqueued int64 `json:"enqueued"`
	Dequeued int64 `json:"dequeued"`

	// Enqueue attempts rejected and retried
	AllocRetries int64 `json:"alloc_retries"`
	FullRetries  int64 `json:"full_retries"`

	Duplicates      int `json:"duplicates"`
	Missing         int `json:"missing"`
	OutOfRange      int `json:"out_of_range"`
	OrderViolations int `json:"order_violations"`

	// Values still linked at Destroy
	Dropped int `json:"dropped"`

	Allocated uint64 `json:"allocated"`
	Freed     uint64 `json:"freed"`
	Retired   int64  `json:"retired"`

	Elapsed    time.Duration `json:"elapsed_ns"`
	Throughput float64       `json:"ops_per_sec"`

	Failures []string `json:"failures"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

func (r *Report) fail(format string, v ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, v...))
}

// WriteJSON encodes r as one JSON document followed by a newline.
func (r *Report) WriteJSON(w io.Writer) error {
	b, err := sonnet.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Log writes r as structured records.
func (r *Report) Log(l *log.Logger) {
	l.Info(tagReport, "run finished",
		"producers", r.Config.Producers,
		"consumers", r.Config.Consumers,
		"enqueued", r.Enqueued,
		"dequeued", r.Dequeued,
		"elapsed", r.Elapsed,
		"ops_per_sec", int64(r.Throughput))
	l.Info(tagReport, "node accounting",
		"allocated", r.Allocated,
		"freed", r.Freed,
		"retired", r.Retired,
		"dropped", r.Dropped,
		"alloc_retries", r.AllocRetries,
		"full_retries", r.FullRetries)
	for _, f := range r.Failures {
		l.Error(tagReport, "check failed", "reason", f)
	}
	if r.OK() {
		l.Info(tagReport, "all checks passed")
	}
}

type tag string

func (t tag) String() string { return string(t) }

const (
	tagRun    tag = "run"
	tagReport tag = "report"
	tagDemo   tag = "demo"
)
