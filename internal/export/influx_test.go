// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/models"
)

type mockWriteAPI struct {
	err    error
	points []*write.Point
}

func (m *mockWriteAPI) WritePoint(_ context.Context, point ...*write.Point) error {
	m.points = append(m.points, point...)
	return m.err
}

func (m *mockWriteAPI) WriteRecord(context.Context, ...string) error { return nil }
func (m *mockWriteAPI) EnableBatching()                              {}
func (m *mockWriteAPI) Flush(context.Context) error                  { return nil }

func lines(points []*write.Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = write.PointToLineProtocol(p, time.Nanosecond)
	}
	return out
}

func TestGroupPublishedWritesPoints(t *testing.T) {
	w := &mockWriteAPI{}
	s := NewWithWriter(w, "")
	defer s.Close()

	pg := models.PublishedGroup{
		GroupID:     "g:10000000000",
		NodeID:      "node-3",
		PublishedAt: time.Unix(1700000000, 0),
		Group: models.SynchronizedGroup{
			TGlobal: 10,
			Members: []models.GroupMember{
				{SensorID: "cam", Probability: 0.25},
				{SensorID: "imu", Probability: 0.5},
				{SensorID: "cam", Probability: 0.25},
			},
		},
	}
	require.NoError(t, s.GroupPublished(context.Background(), pg))

	got := lines(w.points)
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "sync_group,group_id=g:10000000000,node_id=node-3 ")
	assert.Contains(t, got[0], "t_global=10")
	assert.Contains(t, got[0], "members=3i")
	assert.Contains(t, got[0], `top_sensor="imu"`)
	assert.Contains(t, got[1], "sync_group_member,group_id=g:10000000000,sensor_id=cam probability=0.5 1700000000000000000")
	assert.Contains(t, got[2], "sensor_id=imu probability=0.5")
}

func TestGroupPublishedWriteError(t *testing.T) {
	w := &mockWriteAPI{err: errors.New("influx unavailable")}
	s := NewWithWriter(w, "events")
	err := s.GroupPublished(context.Background(), models.PublishedGroup{GroupID: "g:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "g:1")
}

func TestNewFailsHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"name":"influxdb","status":"fail","message":"starting"}`))
	}))
	defer srv.Close()

	_, err := New(context.Background(), Config{URL: srv.URL, Token: "t", Org: "o", Bucket: "b", Timeout: time.Second})
	require.Error(t, err)
}

func TestNewHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"influxdb","status":"pass","version":"2.7.0","checks":[]}`))
	}))
	defer srv.Close()

	s, err := New(context.Background(), Config{URL: srv.URL, Token: "t", Org: "o", Bucket: "b"})
	require.NoError(t, err)
	s.Close()
}
