// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/sensorium/internal/logging"
)

const defaultServer = "http://127.0.0.1:8742"

type rootOptions struct {
	server   string
	timeout  time.Duration
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "sensorctl",
		Short: "Operate a Sensorium cluster and run sync experiments",
		Long: `sensorctl sends observations to a Sensorium coordinator, triggers sync
steps, reads published groups and the election view, and runs the offline
accuracy and failover experiments against an in-process cluster.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Init(logging.Config{Level: opts.logLevel, Format: "console", Output: os.Stderr})
		},
	}

	server := os.Getenv("SENSORCTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "coordinator base URL (env SENSORCTL_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP request timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newIngestCmd(opts),
		newStepCmd(opts),
		newGroupCmd(opts),
		newElectionCmd(opts),
		newSimulateCmd(),
		newFailoverCmd(),
	)
	return root
}
