// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package publish

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMaster matches every NotMasterError.
	ErrNotMaster = errors.New("not master")

	// ErrEmptyGroup is returned for groups without members.
	ErrEmptyGroup = errors.New("publish: group has no members")

	// ErrNonFiniteTime is returned for groups whose event time is NaN or
	// infinite. Such a group has no stable storage key.
	ErrNonFiniteTime = errors.New("publish: event time is not finite")
)

// NotMasterError rejects a write by a node that is not the current master.
type NotMasterError struct {
	NodeID string
	// Master is the node that was master in the snapshot, or "" if none.
	Master string
}

func (e *NotMasterError) Error() string {
	return fmt.Sprintf("not master: node '%s' cannot write sync:group:*", e.NodeID)
}

func (e *NotMasterError) Is(target error) bool {
	return target == ErrNotMaster
}
