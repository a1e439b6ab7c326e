// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/models"
)

func newGoChannel(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 16,
		Persistent:          true,
	}, WatermillLogger())
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func sampleGroup() models.PublishedGroup {
	return models.PublishedGroup{
		GroupID:     "g:10000000000",
		NodeID:      "node-3",
		PublishedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Group: models.SynchronizedGroup{
			TGlobal: 10,
			Members: []models.GroupMember{{SensorID: "cam", Probability: 0.5}, {SensorID: "imu", Probability: 0.5}},
		},
	}
}

func TestGroupPublished(t *testing.T) {
	gc := newGoChannel(t)
	cfg := DefaultConfig("node-3")
	p := NewPublisher(gc, cfg)
	t.Cleanup(func() { _ = p.Close() })

	ch, err := gc.Subscribe(context.Background(), Topic(cfg.TopicPrefix, TopicGroupsPublished))
	require.NoError(t, err)

	ctx := logging.ContextWithCorrelationID(context.Background(), "abcd1234")
	require.NoError(t, p.GroupPublished(ctx, sampleGroup()))

	msg := receive(t, ch)
	assert.Equal(t, "g:10000000000", msg.UUID)
	assert.Equal(t, "g:10000000000", msg.Metadata.Get(natsgo.MsgIdHdr))
	assert.Equal(t, "node-3", msg.Metadata.Get("node_id"))
	assert.Equal(t, "abcd1234", msg.Metadata.Get("correlation_id"))

	got, err := DecodeGroupPublished(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, sampleGroup(), got)
}

func TestMasterChanged(t *testing.T) {
	gc := newGoChannel(t)
	cfg := DefaultConfig("node-1")
	p := NewPublisher(gc, cfg)
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	t.Cleanup(func() { _ = p.Close() })

	ch, err := gc.Subscribe(context.Background(), "sensorium.election.changed")
	require.NoError(t, err)

	p.MasterChanged(context.Background(), "node-3", "node-2")

	ev, err := DecodeElectionChanged(receive(t, ch).Payload)
	require.NoError(t, err)
	assert.Equal(t, ElectionChanged{ObservedBy: "node-1", Previous: "node-3", Current: "node-2", ObservedAt: fixed}, ev)
}

type failingPublisher struct {
	calls int
}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.calls++
	return errors.New("nats down")
}

func (f *failingPublisher) Close() error { return nil }

func TestBreakerOpensAfterFailures(t *testing.T) {
	fp := &failingPublisher{}
	cfg := DefaultConfig("node-1")
	cfg.FailureThreshold = 2
	cfg.BreakerTimeout = time.Hour
	p := NewPublisher(fp, cfg)

	for range 2 {
		require.Error(t, p.GroupPublished(context.Background(), sampleGroup()))
	}
	err := p.GroupPublished(context.Background(), sampleGroup())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "breaker open")
	assert.Equal(t, 2, fp.calls)
}

func TestPublishAfterClose(t *testing.T) {
	p := NewPublisher(newGoChannel(t), DefaultConfig("node-1"))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.GroupPublished(context.Background(), sampleGroup()), ErrPublisherClosed)
}

func TestPublishCanceledContext(t *testing.T) {
	fp := &failingPublisher{}
	p := NewPublisher(fp, DefaultConfig("node-1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.GroupPublished(ctx, sampleGroup()), context.Canceled)
	assert.Zero(t, fp.calls)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeGroupPublished([]byte("{"))
	require.Error(t, err)
	_, err = DecodeElectionChanged([]byte("nope"))
	require.Error(t, err)
}
