// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package main

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sensorium/internal/engine"
	"github.com/tomtom215/sensorium/internal/simulate"
)

func newSimulateCmd() *cobra.Command {
	var (
		seed     uint64
		trials   int
		start    float64
		spacing  float64
		mode     string
		baseline bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Measure alignment error over isolated single-node trials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if trials <= 0 {
				return fmt.Errorf("--trials must be positive")
			}
			sim := simulate.New(seed, simulate.DefaultSensors()...)
			ecfg := engine.DefaultConfig("sim")
			ecfg.Mode = engine.Mode(mode)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TRIAL\tTRUE_TIME\tT_GLOBAL\tERROR_MS\tIMU_MASS")

			var sum float64
			var n int
			for i := 0; i < trials; i++ {
				trueTime := start + float64(i)*spacing
				res, err := simulate.Trial(cmd.Context(), sim, trueTime, ecfg)
				if err != nil {
					return fmt.Errorf("trial %d: %w", i, err)
				}
				tGlobal := math.NaN()
				if len(res.Groups) > 0 {
					tGlobal = res.Groups[0].TGlobal
				}
				fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%s\t%.3f\n",
					i, trueTime, tGlobal, formatMS(res.ErrorMS), simulate.FalseAssociationMass(res.Groups, "imu"))
				if res.ErrorMS != nil {
					sum += *res.ErrorMS
					n++
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "mean alignment error: %.3f ms over %d trials\n", sum/float64(n), n)
			}
			if baseline {
				fmt.Fprintf(cmd.OutOrStdout(), "nearest-timestamp false association rate: %.3f\n",
					nearestBaseline(seed, trials))
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&trials, "trials", 10, "number of trials")
	cmd.Flags().Float64Var(&start, "start", 10, "true time of the first event, seconds")
	cmd.Flags().Float64Var(&spacing, "spacing", 1, "seconds between trial events")
	cmd.Flags().StringVar(&mode, "mode", string(engine.ModeBatch), "grouping mode: batch or slice")
	cmd.Flags().BoolVar(&baseline, "baseline", false, "also report the nearest-timestamp baseline")
	return cmd
}

// nearestBaseline averages the naive matcher's false rate for two events
// 50ms apart under the default camera jitter.
func nearestBaseline(seed uint64, trials int) float64 {
	rng := simulate.NewRand(seed)
	jitter := simulate.DefaultSensors()[0].Jitter
	var sum float64
	for i := 0; i < trials; i++ {
		sum += simulate.NearestBaselineFalse(rng, jitter, 0.05)
	}
	return sum / float64(trials)
}

func newFailoverCmd() *cobra.Command {
	cfg := simulate.DefaultFailoverConfig()
	var nodes string
	cmd := &cobra.Command{
		Use:   "failover",
		Short: "Run a multi-node cluster in process and crash its master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Nodes = strings.Split(nodes, ",")
			report, err := simulate.Failover(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "master %s fails at step %d\n", report.FailedNode, cfg.FailStep)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tELAPSED_S\tMASTER\tPUBLISHED\tERROR_MS")
			for _, s := range report.Steps {
				master := s.Master
				if master == "" {
					master = "-"
				}
				fmt.Fprintf(w, "%d\t%.2f\t%s\t%t\t%s\n", s.Step, s.Elapsed, master, s.Published, formatMS(s.ErrorMS))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&nodes, "nodes", strings.Join(cfg.Nodes, ","), "comma-separated node ids")
	cmd.Flags().IntVar(&cfg.Steps, "steps", cfg.Steps, "steps to run")
	cmd.Flags().IntVar(&cfg.FailStep, "fail-step", cfg.FailStep, "first step with the master down")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", cfg.Interval, "time between steps")
	cmd.Flags().DurationVar(&cfg.HeartbeatTTL, "heartbeat-ttl", cfg.HeartbeatTTL, "heartbeat expiry")
	return cmd
}

func formatMS(ms *float64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *ms)
}
