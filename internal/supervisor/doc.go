// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

/*
Package supervisor runs the coordinator's long-lived services under a
suture v4 tree.

	RootSupervisor ("sensorium")
	├── "storage-layer"
	│   └── PeriodicService "badger-gc" or "memory-sweep"
	├── "coordination-layer"
	│   └── StepService "sync-step"
	└── "api-layer"
	    └── HTTPServerService "http-server"

A service that returns an error is restarted with suture's backoff. A
service that returns after its context is canceled is treated as stopped.
Supervisor events go to zerolog through sutureslog and the logging slog
bridge:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCoordinationService(services.NewStepService(eng, time.Second, services.WithResigner(eng.Elector(), nodeID)))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)

The services themselves live in the services subpackage.
*/
package supervisor
