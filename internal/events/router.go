// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/dealhound/dealhound/internal/ledger"
	"github.com/dealhound/dealhound/internal/metrics"
)

// Broadcaster receives every applied click for live fan-out. Implemented
// by the websocket hub; implementations must not block.
type Broadcaster interface {
	BroadcastClick(e ClickRecorded)
}

// Archiver receives every applied click for durable archival. Failures
// are the archiver's problem; the ledger path never waits on it.
type Archiver interface {
	ArchiveClick(ctx context.Context, e ClickRecorded) error
}

// RouterConfig tunes the click consumer router.
type RouterConfig struct {
	Topic        string
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Topic:                TopicClicks,
		CloseTimeout:         15 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     5 * time.Second,
	}
}

// ClickRouter consumes ClickRecorded events and applies them to the
// ledger actor, then fans out to the optional broadcaster and archiver.
// It is the only ledger write path besides the admin API.
type ClickRouter struct {
	router *message.Router
	cfg    RouterConfig
	actor  *ledger.Actor

	broadcaster Broadcaster
	archiver    Archiver
}

// NewClickRouter wires the consumer. broadcaster and archiver may be nil.
func NewClickRouter(
	cfg RouterConfig,
	sub message.Subscriber,
	actor *ledger.Actor,
	broadcaster Broadcaster,
	archiver Archiver,
	logger watermill.LoggerAdapter,
) (*ClickRouter, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if actor == nil {
		return nil, fmt.Errorf("events: click router requires a ledger actor")
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	r := &ClickRouter{
		router:      wmRouter,
		cfg:         cfg,
		actor:       actor,
		broadcaster: broadcaster,
		archiver:    archiver,
	}

	wmRouter.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	wmRouter.AddNoPublisherHandler("ledger-click-consumer", cfg.Topic, sub, r.handle)

	return r, nil
}

// handle applies one click. Malformed payloads are dropped (acked) so they
// never wedge the stream; rate-limited clicks are dropped rather than
// retried, since a retry would land in the same saturated window.
func (r *ClickRouter) handle(msg *message.Message) error {
	e, err := DecodeClick(msg)
	if err != nil {
		metrics.ClicksDropped.WithLabelValues("malformed").Inc()
		return nil
	}

	ctx := msg.Context()
	if err := r.actor.RecordClick(ctx, e.Deal, e.Category, e.At); err != nil {
		if errors.Is(err, ledger.ErrRateLimited) {
			metrics.ClicksDropped.WithLabelValues("rate_limited").Inc()
			return nil
		}
		return fmt.Errorf("record click %s: %w", e.EventID, err)
	}

	if e.PatternKey != "" {
		if err := r.actor.Reinforce(ctx, e.Category, e.PatternKey); err != nil {
			return fmt.Errorf("reinforce %s/%s: %w", e.Category, e.PatternKey, err)
		}
	}

	if r.broadcaster != nil {
		r.broadcaster.BroadcastClick(e)
	}
	if r.archiver != nil {
		// Archive errors are counted inside the archiver; a broken
		// archive must not nack ledger-applied clicks.
		_ = r.archiver.ArchiveClick(ctx, e)
	}
	return nil
}

// Serve runs the router until ctx is cancelled. Implements suture.Service.
func (r *ClickRouter) Serve(ctx context.Context) error {
	if err := r.router.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

// Running unblocks once handlers are subscribed. Tests use this to avoid
// publishing into the void.
func (r *ClickRouter) Running() chan struct{} {
	return r.router.Running()
}

func (r *ClickRouter) String() string { return "click-router" }
