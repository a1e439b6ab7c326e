// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package models

import "time"

// GroupMember is one sensor's contribution to a synchronized group.
// Probability is a relative membership weight, not an inclusion flag.
type GroupMember struct {
	SensorID    string  `json:"sensor_id"`
	Probability float64 `json:"probability"`
}

// SynchronizedGroup is one fused event: a global time estimate plus the
// membership weight of every contributing sensor. When Members is not empty
// the probabilities sum to 1 within floating-point tolerance.
type SynchronizedGroup struct {
	TGlobal float64       `json:"t_global"`
	Members []GroupMember `json:"members"`
}

// Empty reports whether the group has no members.
func (g SynchronizedGroup) Empty() bool {
	return len(g.Members) == 0
}

// ProbabilitySum returns the sum of member probabilities.
func (g SynchronizedGroup) ProbabilitySum() float64 {
	var sum float64
	for _, m := range g.Members {
		sum += m.Probability
	}
	return sum
}

// MostLikely returns the member with the highest probability.
// Ties keep the earlier member. ok is false for an empty group.
func (g SynchronizedGroup) MostLikely() (member GroupMember, ok bool) {
	for i, m := range g.Members {
		if i == 0 || m.Probability > member.Probability {
			member = m
		}
	}
	return member, len(g.Members) > 0
}

// PublishedGroup is a group together with its storage identity, as
// returned by the read API and carried in group events.
type PublishedGroup struct {
	GroupID     string            `json:"group_id"`
	NodeID      string            `json:"node_id"`
	PublishedAt time.Time         `json:"published_at"`
	Group       SynchronizedGroup `json:"group"`
}

// StepResult is the outcome of one synchronization step on one node.
type StepResult struct {
	NodeID       string              `json:"node_id"`
	IsMaster     bool                `json:"is_master"`
	Observations int                 `json:"observations"`
	Groups       []SynchronizedGroup `json:"groups"`
	// Published lists the ids of groups this node durably wrote.
	Published []string `json:"published,omitempty"`
}

// ElectionStatus is a snapshot of cluster liveness as seen by one node.
type ElectionStatus struct {
	NodeID    string   `json:"node_id"`
	LiveNodes []string `json:"live_nodes"`
	Master    string   `json:"master,omitempty"`
	IsMaster  bool     `json:"is_master"`
}
