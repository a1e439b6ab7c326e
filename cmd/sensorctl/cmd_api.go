// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/sensorium/internal/models"
	"github.com/tomtom215/sensorium/internal/validation"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		ttlSeconds int
		sigma      float64
		payload    string
	)
	cmd := &cobra.Command{
		Use:   "ingest [file|-] | ingest <sensor_id> <type> <t_local>",
		Short: "Send observations to the coordinator",
		Long: `With three arguments, sends a single observation built from the arguments
and the --sigma and --payload flags.

Otherwise reads {"observations":[...]} or a bare array of observations from
a file, or from stdin when the argument is "-" or omitted, and posts it.`,
		Example: `  sensorctl ingest cam-1 camera 10.0125 --sigma 0.004 --payload s3://frames/1
  sensorctl ingest batch.json --ttl 120`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) <= 1 || len(args) == 3 {
				return nil
			}
			return fmt.Errorf("accepts a file, or <sensor_id> <type> <t_local>; received %d args", len(args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				req models.IngestRequest
				err error
			)
			if len(args) == 3 {
				req, err = singleObservation(args, sigma, payload)
			} else {
				req, err = ingestFromInput(cmd, args)
			}
			if err != nil {
				return err
			}
			if ttlSeconds > 0 {
				req.TTLSeconds = ttlSeconds
			}
			// Fail locally with the same messages the server would send.
			if verr := validation.ValidateStruct(&req); verr != nil {
				return verr
			}

			body, err := json.Marshal(req)
			if err != nil {
				return err
			}
			var resp models.IngestResponse
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/observations", body, &resp); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "accepted %d observations (ttl %s)\n", resp.Accepted, resp.TTL)
			return err
		},
	}
	cmd.Flags().IntVar(&ttlSeconds, "ttl", 0, "retention in seconds; 0 uses the server default")
	cmd.Flags().Float64Var(&sigma, "sigma", 0.01, "timestamp standard deviation in seconds (single observation)")
	cmd.Flags().StringVar(&payload, "payload", "", "opaque payload reference (single observation)")
	return cmd
}

func singleObservation(args []string, sigma float64, payload string) (models.IngestRequest, error) {
	tLocal, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return models.IngestRequest{}, fmt.Errorf("t_local %q is not a number", args[2])
	}
	return models.IngestRequest{Observations: []models.Observation{{
		SensorID:   args[0],
		SensorType: args[1],
		TLocal:     tLocal,
		Sigma:      sigma,
		PayloadRef: payload,
	}}}, nil
}

func ingestFromInput(cmd *cobra.Command, args []string) (models.IngestRequest, error) {
	if len(args) == 0 || args[0] == "-" {
		return readIngestRequest(cmd.InOrStdin())
	}
	f, err := os.Open(args[0])
	if err != nil {
		return models.IngestRequest{}, err
	}
	defer f.Close()
	return readIngestRequest(f)
}

func readIngestRequest(r io.Reader) (models.IngestRequest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return models.IngestRequest{}, err
	}
	var req models.IngestRequest
	if err := json.Unmarshal(raw, &req); err == nil && len(req.Observations) > 0 {
		return req, nil
	}
	var list []models.Observation
	if err := json.Unmarshal(raw, &list); err != nil {
		return models.IngestRequest{}, fmt.Errorf("input is neither an ingest request nor an observation list: %w", err)
	}
	return models.IngestRequest{Observations: list}, nil
}

func newStepCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "step",
		Short: "Run one sync step on the coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res models.StepResult
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/sync/step", nil, &res); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newGroupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "group <id>",
		Short: "Show a published group, e.g. g:10000000000",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out json.RawMessage
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/groups/"+args[0], nil, &out); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newElectionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "election",
		Aliases: []string{"master"},
		Short:   "Show live nodes and the current master",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status models.ElectionStatus
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/election", nil, &status); err != nil {
				return err
			}
			master := status.Master
			if master == "" {
				master = "(none)"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "master: %s\nlive:   %v\n", master, status.LiveNodes)
			return err
		},
	}
}
