// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package repository defines the storage port the engine runs against and
// its concrete implementations. The engine is pure over this interface;
// swapping BadgerDB for the in-memory store changes nothing above it.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// Sentinel errors. Implementations wrap these so callers can errors.Is.
var (
	// ErrNotFound indicates a missing learner, item, or profile.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict indicates a concurrent write to the same learner lost
	// the race. Safe to retry.
	ErrConflict = errors.New("repository: write conflict")

	// ErrUnavailable indicates a transient storage failure. Safe to
	// retry with backoff.
	ErrUnavailable = errors.New("repository: store unavailable")
)

// ItemQuery selects catalog items. Zero-valued bounds are ignored, so
// {Topic: "x"} returns every item of a topic.
type ItemQuery struct {
	Topic string

	// BMin/BMax bound the difficulty parameter when BMax > 0.
	BMin float64
	BMax float64

	// AMin bounds the discrimination parameter when positive.
	AMin float64
}

// Matches reports whether an item satisfies the query.
func (q ItemQuery) Matches(item *models.Item) bool {
	if item.Topic != q.Topic {
		return false
	}
	if q.BMax > 0 && (item.IRT.DifficultyB < q.BMin || item.IRT.DifficultyB > q.BMax) {
		return false
	}
	if q.AMin > 0 && item.IRT.DiscriminationA < q.AMin {
		return false
	}
	return true
}

// Repository is the storage port. All calls are potentially blocking I/O
// and honor context deadlines; on deadline expiry before persistence the
// store is left unchanged.
type Repository interface {
	// GetItem returns a catalog item or ErrNotFound.
	GetItem(ctx context.Context, itemID string) (*models.Item, error)

	// PutItem stores a catalog item. Items are immutable to the engine;
	// this exists for catalog loading and tests.
	PutItem(ctx context.Context, item *models.Item) error

	// QueryItems returns all catalog items matching the query, ordered
	// by item id for determinism.
	QueryItems(ctx context.Context, q ItemQuery) ([]models.Item, error)

	// GetProfile returns a learner profile or ErrNotFound.
	GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error)

	// PutProfile stores a learner profile, replacing any existing one.
	PutProfile(ctx context.Context, profile *models.LearnerProfile) error

	// UpdateProfile applies mutate to the stored profile atomically.
	// Returns ErrNotFound when the profile does not exist and
	// ErrConflict when a concurrent update wins.
	UpdateProfile(ctx context.Context, learnerID string, mutate func(*models.LearnerProfile) error) error

	// AppendResponse appends to the learner's response log. The log is
	// append-only; responses are never mutated or deleted.
	AppendResponse(ctx context.Context, resp *models.Response) error

	// RecentResponses returns responses answered at or after since,
	// newest first. limit <= 0 means no limit.
	RecentResponses(ctx context.Context, learnerID string, since time.Time, limit int) ([]models.Response, error)

	// CorrectResponses returns correct responses with since <=
	// answered_at <= until, newest first. Zero bounds are open.
	CorrectResponses(ctx context.Context, learnerID string, since, until time.Time) ([]models.Response, error)

	// PutQuiz stores quiz metadata.
	PutQuiz(ctx context.Context, quiz *models.Quiz) error
}
