// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dealhound/dealhound/internal/config"
)

// Bus bundles the publisher and subscriber for one transport. The
// gochannel transport is the default: clicks never leave the process, and
// the subscriber sees exactly what was published. The NATS transport
// exists for multi-instance deployments where one node owns the ledger.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	// shared marks transports where publisher and subscriber are the
	// same object and must only be closed once.
	shared bool

	mu     sync.Mutex
	closed bool
}

// NewBus builds the bus selected by cfg.Transport.
func NewBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	switch cfg.Transport {
	case "nats":
		return newNATSBus(cfg, logger)
	case "gochannel", "":
		ps := gochannel.NewGoChannel(gochannel.Config{
			// Clicks queued here survive a slow consumer without blocking
			// the HTTP handler.
			OutputChannelBuffer: 1024,
		}, logger)
		return &Bus{Publisher: ps, Subscriber: ps, shared: true}, nil
	default:
		return nil, fmt.Errorf("events: unknown transport %q", cfg.Transport)
	}
}

func newNATSBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	marshaler := &wmNats.NATSMarshaler{}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Unmarshaler: marshaler,
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Bus{Publisher: pub, Subscriber: sub}, nil
}

// Close shuts both ends down. Safe to call twice.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if !b.shared && b.Subscriber != nil {
		if err := b.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// ClickPublisher publishes ClickRecorded events behind a circuit breaker,
// shedding publishes instead of stalling HTTP handlers when the transport
// is down.
type ClickPublisher struct {
	topic   string
	pub     message.Publisher
	breaker *gobreaker.CircuitBreaker[any]
}

// NewClickPublisher wraps a bus publisher for the click topic.
func NewClickPublisher(topic string, pub message.Publisher) *ClickPublisher {
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "click-publisher",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &ClickPublisher{topic: topic, pub: pub, breaker: breaker}
}

// Publish serializes and sends one click event.
func (p *ClickPublisher) Publish(_ context.Context, e ClickRecorded) error {
	msg, err := e.Message()
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.pub.Publish(p.topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish click: %w", err)
	}
	return nil
}
