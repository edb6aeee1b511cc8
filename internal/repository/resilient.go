// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// ResilientConfig tunes the retry/breaker decorator.
type ResilientConfig struct {
	// MaxRetries bounds retry attempts per call (on top of the first try).
	MaxRetries uint64 `koanf:"max_retries"`

	// InitialInterval seeds the exponential backoff between retries.
	InitialInterval time.Duration `koanf:"initial_interval"`

	// BreakerThreshold is the consecutive-failure count that opens the
	// storage circuit.
	BreakerThreshold uint32 `koanf:"breaker_threshold"`

	// BreakerCooldown is how long the circuit stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// DefaultResilientConfig returns production defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		MaxRetries:       3,
		InitialInterval:  50 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  10 * time.Second,
	}
}

// Resilient decorates a Repository with bounded exponential-backoff retries
// and a circuit breaker. Only transient failures (ErrUnavailable) and lost
// write races (ErrConflict) are retried; domain errors pass through
// unchanged and never trip the breaker.
type Resilient struct {
	inner   Repository
	cfg     ResilientConfig
	breaker *gobreaker.CircuitBreaker[any]
	log     zerolog.Logger
}

// NewResilient wraps a Repository.
func NewResilient(inner Repository, cfg ResilientConfig, log zerolog.Logger) *Resilient {
	r := &Resilient{inner: inner, cfg: cfg, log: log}
	r.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "repository",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			// Missing learners and validation failures are not storage
			// health signals.
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("storage circuit state change")
		},
	})
	return r
}

func retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrConflict)
}

func (r *Resilient) do(ctx context.Context, op string, call func() error) error {
	_, err := r.breaker.Execute(func() (any, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = r.cfg.InitialInterval
		policy := backoff.WithContext(backoff.WithMaxRetries(bo, r.cfg.MaxRetries), ctx)

		attempt := 0
		return nil, backoff.Retry(func() error {
			attempt++
			err := call()
			if err == nil {
				return nil
			}
			if retryable(err) {
				r.log.Debug().Str("op", op).Int("attempt", attempt).Err(err).
					Msg("retrying repository call")
				return err
			}
			return backoff.Permanent(err)
		}, policy)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
	}
	return err
}

// GetItem implements Repository.
func (r *Resilient) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	var out *models.Item
	err := r.do(ctx, "get_item", func() error {
		var err error
		out, err = r.inner.GetItem(ctx, itemID)
		return err
	})
	return out, err
}

// PutItem implements Repository.
func (r *Resilient) PutItem(ctx context.Context, item *models.Item) error {
	return r.do(ctx, "put_item", func() error {
		return r.inner.PutItem(ctx, item)
	})
}

// QueryItems implements Repository.
func (r *Resilient) QueryItems(ctx context.Context, q ItemQuery) ([]models.Item, error) {
	var out []models.Item
	err := r.do(ctx, "query_items", func() error {
		var err error
		out, err = r.inner.QueryItems(ctx, q)
		return err
	})
	return out, err
}

// GetProfile implements Repository.
func (r *Resilient) GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	var out *models.LearnerProfile
	err := r.do(ctx, "get_profile", func() error {
		var err error
		out, err = r.inner.GetProfile(ctx, learnerID)
		return err
	})
	return out, err
}

// PutProfile implements Repository.
func (r *Resilient) PutProfile(ctx context.Context, profile *models.LearnerProfile) error {
	return r.do(ctx, "put_profile", func() error {
		return r.inner.PutProfile(ctx, profile)
	})
}

// UpdateProfile implements Repository. The mutator may run more than once
// when a write conflict is retried, so it must be idempotent over its input.
func (r *Resilient) UpdateProfile(ctx context.Context, learnerID string, mutate func(*models.LearnerProfile) error) error {
	return r.do(ctx, "update_profile", func() error {
		return r.inner.UpdateProfile(ctx, learnerID, mutate)
	})
}

// AppendResponse implements Repository.
func (r *Resilient) AppendResponse(ctx context.Context, resp *models.Response) error {
	return r.do(ctx, "append_response", func() error {
		return r.inner.AppendResponse(ctx, resp)
	})
}

// RecentResponses implements Repository.
func (r *Resilient) RecentResponses(ctx context.Context, learnerID string, since time.Time, limit int) ([]models.Response, error) {
	var out []models.Response
	err := r.do(ctx, "recent_responses", func() error {
		var err error
		out, err = r.inner.RecentResponses(ctx, learnerID, since, limit)
		return err
	})
	return out, err
}

// CorrectResponses implements Repository.
func (r *Resilient) CorrectResponses(ctx context.Context, learnerID string, since, until time.Time) ([]models.Response, error) {
	var out []models.Response
	err := r.do(ctx, "correct_responses", func() error {
		var err error
		out, err = r.inner.CorrectResponses(ctx, learnerID, since, until)
		return err
	})
	return out, err
}

// PutQuiz implements Repository.
func (r *Resilient) PutQuiz(ctx context.Context, quiz *models.Quiz) error {
	return r.do(ctx, "put_quiz", func() error {
		return r.inner.PutQuiz(ctx, quiz)
	})
}

var _ Repository = (*Resilient)(nil)
