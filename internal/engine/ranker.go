// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"math"
	"sort"
	"time"

	"github.com/adaptix-learn/adaptix/internal/engine/topics"
	"github.com/adaptix-learn/adaptix/internal/models"
)

// daysSinceNeverPracticed stands in for "never" so untouched topics rank as
// maximally stale.
const daysSinceNeverPracticed = 999.0

type rankedTopic struct {
	Topic    string
	Priority float64
}

// sortRanked orders by priority descending with a lexicographic topic-id
// tie-break so equal priorities are reproducible.
func sortRanked(ranked []rankedTopic) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Topic < ranked[j].Topic
	})
}

// rankExploration orders the unexplored high-value topics for breadth-first
// coverage: heavy JEE weight first, shallow prerequisites next, and a
// nudge toward whichever subject the learner has been neglecting.
func (e *Engine) rankExploration(profile *models.LearnerProfile) []string {
	var ranked []rankedTopic
	for _, topic := range topics.All() {
		if profile.TopicAttemptCounts[topic] >= e.cfg.ExplorationAttemptCeiling {
			continue
		}
		weight := topics.Weight(topic)
		if weight < e.cfg.ExplorationWeightFloor {
			continue
		}

		depth := float64(topics.Depth(topic))
		share := profile.SubjectBalance[models.SubjectFromTopic(topic)]

		priority := 0.5*weight +
			0.3*(1.0-depth/3.0) +
			0.2*(1.0-math.Abs(share-1.0/3.0))
		ranked = append(ranked, rankedTopic{Topic: topic, Priority: priority})
	}

	sortRanked(ranked)
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Topic
	}
	return out
}

// rankWeakness orders all tested topics weakest-first: low theta dominates,
// staleness and JEE weight break ties.
func (e *Engine) rankWeakness(profile *models.LearnerProfile, now time.Time) []string {
	var ranked []rankedTopic
	for topic, ability := range profile.ThetaByTopic {
		if ability.Attempts == 0 {
			continue
		}

		days := daysSinceNeverPracticed
		if !ability.LastUpdated.IsZero() {
			days = now.Sub(ability.LastUpdated).Hours() / 24.0
		}

		priority := 0.6*(1.0-(ability.Theta+3.0)/6.0) +
			0.2*math.Min(1.0, days/7.0) +
			0.2*topics.Weight(topic)
		ranked = append(ranked, rankedTopic{Topic: topic, Priority: priority})
	}

	sortRanked(ranked)
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Topic
	}
	return out
}

// strongestTopics returns up to n tested topics with the highest theta,
// ties broken lexicographically. Feeds the maintenance pool.
func strongestTopics(profile *models.LearnerProfile, n int) []string {
	var ranked []rankedTopic
	for topic, ability := range profile.ThetaByTopic {
		if ability.Attempts == 0 {
			continue
		}
		ranked = append(ranked, rankedTopic{Topic: topic, Priority: ability.Theta})
	}
	sortRanked(ranked)

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Topic
	}
	return out
}

// weakestTopics returns up to n tested topics with the lowest theta, ties
// broken lexicographically. Feeds the recovery quiz.
func weakestTopics(profile *models.LearnerProfile, n int) []string {
	var ranked []rankedTopic
	for topic, ability := range profile.ThetaByTopic {
		if ability.Attempts == 0 {
			continue
		}
		ranked = append(ranked, rankedTopic{Topic: topic, Priority: -ability.Theta})
	}
	sortRanked(ranked)

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Topic
	}
	return out
}
