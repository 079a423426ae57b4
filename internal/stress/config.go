// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stress

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config describes one stress run.
type Config struct {
	Producers int `json:"producers"`
	Consumers int `json:"consumers"`
	// Values enqueued by each producer
	Items int `json:"items"`
	// Hazard slot table size, 0 for exactly producers+consumers
	Threads int `json:"threads"`
	// Retirements between hazard scans
	Batch int `json:"batch"`
	// Arena ceiling, 0 for none
	NodeLimit int `json:"node_limit"`
	// Bounded decorator capacity, 0 for an unbounded queue
	Capacity int `json:"capacity"`
	// Verify node generations on every protected read
	Checked bool `json:"checked"`
	// Give up and fail after this long, 0 for no limit
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns the configuration used when no flag or file
// overrides a field.
func DefaultConfig() *Config {
	return &Config{
		Producers: 4,
		Consumers: 4,
		Items:     100000,
		Batch:     1,
		Checked:   true,
		Timeout:   time.Minute,
	}
}

// ErrConfig is wrapped by every validation failure.
var ErrConfig = errors.New("invalid configuration")

// Validate reports the first field that cannot be run.
func (c *Config) Validate() error {
	switch {
	case c.Producers < 1:
		return fmt.Errorf("%w: producers must be >= 1", ErrConfig)
	case c.Consumers < 1:
		return fmt.Errorf("%w: consumers must be >= 1", ErrConfig)
	case c.Items < 1:
		return fmt.Errorf("%w: items must be >= 1", ErrConfig)
	case c.Threads < 0:
		return fmt.Errorf("%w: threads must be >= 0", ErrConfig)
	case c.Threads > 0 && c.Threads < c.Producers+c.Consumers:
		return fmt.Errorf("%w: threads must cover %d producers and %d consumers",
			ErrConfig, c.Producers, c.Consumers)
	case c.Batch < 1:
		return fmt.Errorf("%w: batch must be >= 1", ErrConfig)
	case c.NodeLimit < 0 || c.NodeLimit == 1:
		return fmt.Errorf("%w: node limit must be 0 or >= 2", ErrConfig)
	case c.Capacity < 0:
		return fmt.Errorf("%w: capacity must be >= 0", ErrConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must be >= 0", ErrConfig)
	}
	return nil
}

// MaxThreads returns the hazard slot table size the run uses.
func (c *Config) MaxThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return c.Producers + c.Consumers
}

// Total returns the number of values the run moves through the queue.
func (c *Config) Total() int {
	return c.Producers * c.Items
}

// ReadConfig overlays the YAML file at path onto c.
// Unknown keys are rejected.
func ReadConfig(c *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open configuration file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f, yaml.Strict())
	if err = dec.Decode(c); err != nil {
		return fmt.Errorf("unable to parse configuration file: %w", err)
	}
	return nil
}
