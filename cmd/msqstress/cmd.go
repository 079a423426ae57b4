// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"code.hybscloud.com/msq/internal/log"
	"code.hybscloud.com/msq/internal/stress"
)

// errChecks is returned when a run completes but a check failed.
var errChecks = errors.New("stress checks failed")

type options struct {
	config   string
	json     bool
	level    string
	verbose  bool
	stress   *stress.Config
	out, err io.Writer
}

// CmdStress returns the root command writing to the process streams.
func CmdStress() *cobra.Command {
	return newCmdStress(os.Stdout, os.Stderr)
}

func newCmdStress(out, errOut io.Writer) *cobra.Command {
	opts := &options{
		stress: stress.DefaultConfig(),
		out:    out,
		err:    errOut,
	}

	root := &cobra.Command{
		Use:           "msqstress",
		Short:         "Lock-free MPMC queue stress tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print results as JSON")
	root.PersistentFlags().StringVar(&opts.level, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")

	root.AddCommand(cmdRun(opts))
	root.AddCommand(cmdDemo(opts))
	return root
}

func cmdRun(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run producers and consumers concurrently and verify the result",
		Long: `Run producers and consumers concurrently and verify the result.

Producer p enqueues p*items+i for every i in [0, items). Consumers drain
until every value has been seen. The run fails if a value is lost, seen
twice or out of its producer's order, or if the node arena is not
balanced after the queue is destroyed.

Flags override the defaults; a --config file overrides the flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}

	c := opts.stress
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "YAML configuration file")
	f.IntVarP(&c.Producers, "producers", "p", c.Producers, "Producer goroutines")
	f.IntVarP(&c.Consumers, "consumers", "n", c.Consumers, "Consumer goroutines")
	f.IntVarP(&c.Items, "items", "i", c.Items, "Values enqueued per producer")
	f.IntVar(&c.Threads, "threads", c.Threads, "Hazard slot table size (0 = producers+consumers)")
	f.IntVar(&c.Batch, "batch", c.Batch, "Retirements between hazard scans")
	f.IntVar(&c.NodeLimit, "node-limit", c.NodeLimit, "Node arena ceiling (0 = none)")
	f.IntVar(&c.Capacity, "capacity", c.Capacity, "Bounded queue capacity (0 = unbounded)")
	f.BoolVar(&c.Checked, "checked", c.Checked, "Verify node generations on every protected read")
	f.DurationVar(&c.Timeout, "timeout", c.Timeout, "Abort the run after this long (0 = never)")
	return cmd
}

func cmdDemo(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: fmt.Sprintf("Enqueue %d values from %d producers, then drain", stress.DemoPerProducer, stress.DemoProducers),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.demo()
		},
	}
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print every drained value")
	return cmd
}

func (o *options) logger() (*log.Logger, error) {
	level, err := log.ParseLevel(o.level)
	if err != nil {
		return nil, err
	}
	l := log.NewText(o.err)
	if o.json {
		l = log.NewJson(o.err)
	}
	l.SetLevel(level)
	return l, nil
}

func (o *options) run(cmd *cobra.Command) error {
	l, err := o.logger()
	if err != nil {
		return err
	}
	if o.config != "" {
		if err := stress.ReadConfig(o.stress, o.config); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := stress.Run(ctx, o.stress, l)
	if err != nil {
		return err
	}
	if o.json {
		if err := r.WriteJSON(o.out); err != nil {
			return err
		}
	} else {
		r.Log(l)
	}
	if !r.OK() {
		return errChecks
	}
	return nil
}

func (o *options) demo() error {
	l, err := o.logger()
	if err != nil {
		return err
	}

	var w io.Writer
	if o.verbose && !o.json {
		w = o.out
	}
	res, err := stress.Demo(w, l)
	if err != nil {
		return err
	}

	if o.json {
		b, err := sonnet.Marshal(res)
		if err != nil {
			return err
		}
		_, err = o.out.Write(append(b, '\n'))
		return err
	}
	fmt.Fprintf(o.out, "drained %d values, total %d\n", len(res.Values), res.Sum)
	return nil
}
