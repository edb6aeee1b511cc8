// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package events is the fire-and-forget event log. Engine events are
// published to an in-process Watermill pub/sub; subscribers (currently the
// structured audit logger) consume them asynchronously so publishing never
// blocks quiz generation.
package events

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adaptix-learn/adaptix/internal/metrics"
)

// Topic carries every engine event; the type lives in the envelope.
const Topic = "adaptix.engine.events"

// Envelope is the wire form of one event.
type Envelope struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Bus is an in-process event bus backed by Watermill's gochannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

// NewBus creates the bus. Call Run to attach the audit subscriber and
// Close on shutdown.
func NewBus(log zerolog.Logger) *Bus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, &watermillLogger{log: log})
	return &Bus{pubsub: pubsub, log: log}
}

// Publish implements the engine's event port. Failures are counted and
// dropped; events are advisory, never load-bearing.
func (b *Bus) Publish(_ context.Context, eventType string, payload map[string]any) {
	data, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		metrics.EventsDropped.Inc()
		b.log.Error().Err(err).Str("event_type", eventType).Msg("event marshal failed")
		return
	}

	msg := message.NewMessage(uuid.NewString(), data)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		metrics.EventsDropped.Inc()
		b.log.Error().Err(err).Str("event_type", eventType).Msg("event publish failed")
	}
}

// Run attaches the audit-log subscriber and blocks until ctx is cancelled
// or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	for msg := range messages {
		var env Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			b.log.Error().Err(err).Str("message_id", msg.UUID).Msg("malformed event payload")
			msg.Ack()
			continue
		}
		b.log.Info().
			Str("event_type", env.Type).
			Time("occurred_at", env.OccurredAt).
			Fields(env.Payload).
			Msg("engine event")
		msg.Ack()
	}
	return nil
}

// Close shuts the bus down; pending subscribers drain and exit.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// watermillLogger adapts zerolog to Watermill's logging interface.
type watermillLogger struct {
	log zerolog.Logger
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.log.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.log.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.log.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: w.log.With().Fields(map[string]any(fields)).Logger()}
}
