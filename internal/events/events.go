// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sensorium/internal/models"
)

// Topic suffixes. The full topic is <prefix>.<suffix>.
const (
	TopicGroupsPublished = "groups.published"
	TopicElectionChanged = "election.changed"
)

// Topic joins prefix and suffix.
func Topic(prefix, suffix string) string {
	return prefix + "." + suffix
}

// ElectionChanged is emitted when a node observes a different master.
// Current is "" when no node is live.
type ElectionChanged struct {
	ObservedBy string    `json:"observed_by"`
	Previous   string    `json:"previous"`
	Current    string    `json:"current"`
	ObservedAt time.Time `json:"observed_at"`
}

// DecodeGroupPublished parses a groups.published payload.
func DecodeGroupPublished(data []byte) (models.PublishedGroup, error) {
	var g models.PublishedGroup
	if err := json.Unmarshal(data, &g); err != nil {
		return models.PublishedGroup{}, fmt.Errorf("decode group event: %w", err)
	}
	return g, nil
}

// DecodeElectionChanged parses an election.changed payload.
func DecodeElectionChanged(data []byte) (ElectionChanged, error) {
	var e ElectionChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return ElectionChanged{}, fmt.Errorf("decode election event: %w", err)
	}
	return e, nil
}
