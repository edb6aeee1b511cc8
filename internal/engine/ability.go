// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"math"
	"time"

	"github.com/adaptix-learn/adaptix/internal/engine/irt"
	"github.com/adaptix-learn/adaptix/internal/engine/topics"
	"github.com/adaptix-learn/adaptix/internal/models"
)

// accuracyToTheta maps initial-assessment accuracy to a starting theta.
// Perfect and zero scores get a less extreme estimate when the sample is
// small (n < 5).
func accuracyToTheta(acc float64, n int) float64 {
	switch {
	case acc >= 1.0:
		if n >= 5 {
			return 2.0
		}
		return 1.5
	case acc >= 0.90:
		return 2.5
	case acc >= 0.75:
		return 1.5
	case acc >= 0.60:
		return 0.5
	case acc >= 0.40:
		return -0.5
	case acc >= 0.20:
		return -1.5
	case acc > 0.0:
		return -2.5
	default:
		if n >= 5 {
			return -2.0
		}
		return -1.5
	}
}

// initialSE derives the starting standard error from the assessment sample
// size, penalizing extreme accuracy where the binomial estimate is least
// informative about theta.
func initialSE(acc float64, n int) float64 {
	if n <= 0 {
		return models.SECeiling
	}
	base := 1.0 / math.Sqrt(float64(n))
	penalty := 1.0 + math.Abs(acc-0.5)
	return models.ClampSE(base * penalty)
}

// priorTheta estimates theta for a topic the learner has never attempted:
// mean of tested topics in the same subject, falling back to the overall
// estimate, falling back to zero.
func priorTheta(profile *models.LearnerProfile, topic string) float64 {
	subject := models.SubjectFromTopic(topic)

	var sum float64
	var n int
	for tested, ability := range profile.ThetaByTopic {
		if ability.Attempts == 0 {
			continue
		}
		if models.SubjectFromTopic(tested) != subject {
			continue
		}
		sum += ability.Theta
		n++
	}
	if n > 0 {
		return models.ClampTheta(sum / float64(n))
	}
	if profile.OverallTheta != 0 {
		return profile.OverallTheta
	}
	return 0
}

// abilityFor returns the topic ability, creating a prior-initialized record
// when the topic has never been attempted. The record is not persisted
// until a response lands.
func abilityFor(profile *models.LearnerProfile, topic string) models.TopicAbility {
	if ability, ok := profile.ThetaByTopic[topic]; ok {
		return ability
	}
	theta := priorTheta(profile, topic)
	return models.TopicAbility{
		Theta:      theta,
		Percentile: irt.ThetaToPercentile(theta),
		SE:         models.SECeiling,
	}
}

// AssessmentAnswer is one scored response from the initial diagnostic
// assessment.
type AssessmentAnswer struct {
	Topic   string `json:"topic" validate:"required"`
	Correct bool   `json:"correct"`
}

// initAbilities seeds per-topic abilities on a fresh profile from the
// initial assessment and computes the JEE-weighted overall theta.
func initAbilities(profile *models.LearnerProfile, answers []AssessmentAnswer, now time.Time) {
	type tally struct {
		n, k int
	}
	byTopic := make(map[string]*tally)
	for _, a := range answers {
		t, ok := byTopic[a.Topic]
		if !ok {
			t = &tally{}
			byTopic[a.Topic] = t
		}
		t.n++
		if a.Correct {
			t.k++
		}
	}

	var weightedSum, weightSum float64
	for topic, t := range byTopic {
		acc := float64(t.k) / float64(t.n)
		theta := models.ClampTheta(accuracyToTheta(acc, t.n))
		accCopy := acc
		profile.ThetaByTopic[topic] = models.TopicAbility{
			Theta:       theta,
			Percentile:  irt.ThetaToPercentile(theta),
			SE:          initialSE(acc, t.n),
			Attempts:    t.n,
			Accuracy:    &accCopy,
			LastUpdated: now,
		}
		profile.TopicAttemptCounts[topic] += t.n
		profile.TotalQuestionsSolved += t.n

		w := topics.Weight(topic)
		weightedSum += w * theta
		weightSum += w
	}

	if weightSum > 0 {
		profile.OverallTheta = models.ClampTheta(weightedSum / weightSum)
		profile.OverallPercentile = irt.ThetaToPercentile(profile.OverallTheta)
	}
	profile.AssessmentCompletedAt = now
	profile.TopicsExplored = len(byTopic)
	profile.RecomputeSubjectBalance()
}

// abilityUpdate records the before/after of one theta step.
type abilityUpdate struct {
	Before models.TopicAbility
	After  models.TopicAbility
	Delta  float64
}

// applyResponse runs the ability update for a single scored response and
// writes the new TopicAbility back to the profile.
func (e *Engine) applyResponse(profile *models.LearnerProfile, item *models.Item, correct bool, now time.Time) abilityUpdate {
	before := abilityFor(profile, item.Topic)

	p := irt.Probability(before.Theta, item.IRT.DifficultyB, item.IRT.DiscriminationA, item.IRT.GuessingC)
	lr := e.cfg.BaseLearningRate / (1.0 + e.cfg.LearningRateDecay*float64(before.Attempts))

	var delta float64
	if correct {
		delta = lr * (1.0 - p)
	} else {
		delta = -lr * p
	}

	after := before
	after.Theta = models.ClampTheta(before.Theta + delta)
	after.Percentile = irt.ThetaToPercentile(after.Theta)
	after.SE = models.ClampSE(before.SE * e.cfg.SEReduction)
	after.Attempts = before.Attempts + 1
	after.LastUpdated = now

	// Running accuracy: a missing value is a cold start with n = 0, not a
	// sentinel blended against prior attempts.
	observed := 0.0
	if correct {
		observed = 1.0
	}
	if before.Accuracy == nil {
		after.Accuracy = &observed
	} else {
		n := float64(before.Attempts)
		acc := (*before.Accuracy*n + observed) / (n + 1.0)
		after.Accuracy = &acc
	}

	profile.ThetaByTopic[item.Topic] = after
	profile.TotalQuestionsSolved++
	profile.TopicAttemptCounts[item.Topic]++
	profile.RecomputeSubjectBalance()
	recomputeOverall(profile)

	return abilityUpdate{Before: before, After: after, Delta: after.Theta - before.Theta}
}

// recomputeOverall refreshes the JEE-weight-weighted overall theta from the
// per-topic records.
func recomputeOverall(profile *models.LearnerProfile) {
	var weightedSum, weightSum float64
	confident := 0
	for topic, ability := range profile.ThetaByTopic {
		w := topics.Weight(topic)
		weightedSum += w * ability.Theta
		weightSum += w
		if ability.SE <= 0.2 {
			confident++
		}
	}
	if weightSum > 0 {
		profile.OverallTheta = models.ClampTheta(weightedSum / weightSum)
		profile.OverallPercentile = irt.ThetaToPercentile(profile.OverallTheta)
	}
	profile.TopicsExplored = len(profile.ThetaByTopic)
	profile.TopicsConfident = confident
}
