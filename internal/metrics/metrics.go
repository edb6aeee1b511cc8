// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package metrics registers the Prometheus collectors for the engine and
// the HTTP layer on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adaptix"

// Engine collectors.
var (
	AssessmentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "assessments_processed_total",
		Help:      "Initial assessments turned into learner profiles.",
	})

	ThetaUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "theta_updates_total",
		Help:      "Per-response ability updates applied.",
	})

	QuizzesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "quizzes_generated_total",
		Help:      "Quizzes emitted, labelled by learning phase.",
	}, []string{"phase"})

	BreakerTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "circuit_breaker_triggers_total",
		Help:      "Failure streaks that forced a recovery quiz.",
	})

	ShortQuizzes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "short_quizzes_total",
		Help:      "Quizzes emitted below the target length after catalog exhaustion.",
	})
)

// HTTP collectors.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests, labelled by route and status class.",
	}, []string{"route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// EventsDropped counts fire-and-forget events discarded on publish failure.
var EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Events dropped because the bus rejected the publish.",
})
