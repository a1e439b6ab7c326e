// Sensorium - Probabilistic Sensor Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sensorium

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/sensorium/internal/logging"
	"github.com/tomtom215/sensorium/internal/metrics"
	"github.com/tomtom215/sensorium/internal/models"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("events: publisher is closed")

// Config configures a Publisher.
type Config struct {
	// TopicPrefix is prepended to every topic.
	TopicPrefix string
	// NodeID is stamped on every message as metadata.
	NodeID  string
	Timeout time.Duration

	// Breaker settings. FailureThreshold 0 disables the breaker.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// DefaultConfig returns defaults for nodeID.
func DefaultConfig(nodeID string) Config {
	return Config{
		TopicPrefix:      "sensorium",
		NodeID:           nodeID,
		Timeout:          5 * time.Second,
		FailureThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// Publisher emits domain events through a watermill publisher guarded by
// a circuit breaker. It is a publish.Sink, and MasterChanged fits
// election.ChangeFunc.
type Publisher struct {
	publisher message.Publisher
	cb        *gobreaker.CircuitBreaker[any]
	cfg       Config
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. The Publisher owns pub and closes it.
func NewPublisher(pub message.Publisher, cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "sensorium"
	}
	p := &Publisher{publisher: pub, cfg: cfg, now: time.Now}
	if cfg.FailureThreshold > 0 {
		p.cb = newBreaker("events", cfg)
	}
	return p
}

// NewNATSPublisher dials url and publishes to JetStream. Messages carry
// Nats-Msg-Id so the stream's duplicate window drops republished groups.
// The stream must exist; see EnsureStream.
func NewNATSPublisher(url string, cfg Config) (*Publisher, error) {
	logger := WatermillLogger()
	natsOpts := []natsgo.Option{
		natsgo.Name("sensorium-events-" + cfg.NodeID),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return NewPublisher(pub, cfg), nil
}

// WatermillLogger routes watermill's logs through the process logger.
func WatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "events"))
}

func newBreaker(name string, cfg Config) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// Publish sends msg to topic. The message UUID doubles as Nats-Msg-Id.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	var err error
	if p.cb != nil {
		_, err = p.cb.Execute(func() (any, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("publish %s: breaker open: %w", topic, err)
		}
	} else {
		err = p.publisher.Publish(topic, msg)
	}
	metrics.RecordEvent(topic, err)
	return err
}

// GroupPublished emits the group on groups.published. The message id is
// the group id, so a group republished within the duplicate window is
// delivered once.
func (p *Publisher) GroupPublished(ctx context.Context, g models.PublishedGroup) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode group event: %w", err)
	}
	msg := message.NewMessage(g.GroupID, data)
	msg.Metadata.Set("node_id", g.NodeID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}
	return p.publishWithTimeout(ctx, Topic(p.cfg.TopicPrefix, TopicGroupsPublished), msg)
}

// MasterChanged emits election.changed. Errors are logged, not returned.
func (p *Publisher) MasterChanged(ctx context.Context, previous, current string) {
	ev := ElectionChanged{
		ObservedBy: p.cfg.NodeID,
		Previous:   previous,
		Current:    current,
		ObservedAt: p.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to encode election event")
		return
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("node_id", p.cfg.NodeID)
	if err := p.publishWithTimeout(ctx, Topic(p.cfg.TopicPrefix, TopicElectionChanged), msg); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("previous", previous).
			Str("current", current).
			Msg("Failed to publish election event")
	}
}

func (p *Publisher) publishWithTimeout(ctx context.Context, topic string, msg *message.Message) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return p.Publish(ctx, topic, msg)
}

// Close closes the underlying publisher. Safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
