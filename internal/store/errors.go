// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for reads of keys that do not exist.
	ErrNotFound = errors.New("store: key not found")

	// ErrCircuitOpen is returned while a backend's circuit breaker is open.
	ErrCircuitOpen = errors.New("store: circuit breaker open")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// OpError carries the backend, operation and key of a failed store call.
type OpError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, and an *OpError otherwise.
func Wrap(backend, op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Backend: backend, Op: op, Key: key, Err: err}
}
