// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package models defines the domain records shared across the engine,
// repository, and API layers. Records enforce their own invariants at
// construction; callers never see an Item with invalid IRT parameters or a
// TopicAbility outside the theta/SE bounds.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Theta and standard-error bounds applied on every write.
const (
	ThetaMin  = -3.0
	ThetaMax  = 3.0
	SEFloor   = 0.1
	SECeiling = 0.6
)

// Subject identifies the exam subject an item or topic belongs to.
type Subject string

// Subjects derivable from topic id prefixes.
const (
	SubjectPhysics     Subject = "physics"
	SubjectChemistry   Subject = "chemistry"
	SubjectMathematics Subject = "mathematics"
	SubjectOther       Subject = "other"
)

// SubjectFromTopic derives the subject from a topic id prefix,
// e.g. "physics_mechanics_kinematics" -> physics.
func SubjectFromTopic(topic string) Subject {
	switch {
	case strings.HasPrefix(topic, "physics_"):
		return SubjectPhysics
	case strings.HasPrefix(topic, "chemistry_"):
		return SubjectChemistry
	case strings.HasPrefix(topic, "mathematics_"):
		return SubjectMathematics
	default:
		return SubjectOther
	}
}

// LearningPhase is the quiz-composition regime the learner is in.
type LearningPhase string

// Learning phases. Recovery is transient: it applies to a single
// circuit-breaker quiz and does not change the quiz-count schedule.
const (
	PhaseExploration  LearningPhase = "exploration"
	PhaseExploitation LearningPhase = "exploitation"
	PhaseRecovery     LearningPhase = "recovery"
)

// ItemType distinguishes single-choice items (with a guessing floor) from
// numeric-entry items.
type ItemType string

// Item types.
const (
	ItemSingleChoice ItemType = "single_choice"
	ItemNumeric      ItemType = "numeric"
)

// DifficultyTier is the coarse editorial difficulty label.
type DifficultyTier string

// Difficulty tiers.
const (
	TierEasy   DifficultyTier = "easy"
	TierMedium DifficultyTier = "medium"
	TierHard   DifficultyTier = "hard"
)

// IRTParameters holds the 3PL parameters calibrated for an item.
type IRTParameters struct {
	// DifficultyB locates the item on the theta axis. Calibrated range
	// for the question bank is [0.4, 2.6].
	DifficultyB float64 `json:"difficulty_b"`

	// DiscriminationA is the slope of the item characteristic curve.
	// Must be positive; typical range [1.0, 2.0].
	DiscriminationA float64 `json:"discrimination_a"`

	// GuessingC is the lower asymptote of the correct-response
	// probability. 0.25 for single-choice, 0.0 for numeric.
	GuessingC float64 `json:"guessing_c"`
}

// Validate checks the 3PL invariants: a > 0, 0 <= c < 1.
func (p IRTParameters) Validate() error {
	if p.DiscriminationA <= 0 {
		return fmt.Errorf("discrimination_a must be positive, got %f", p.DiscriminationA)
	}
	if p.GuessingC < 0 || p.GuessingC >= 1 {
		return fmt.Errorf("guessing_c must be in [0, 1), got %f", p.GuessingC)
	}
	return nil
}

// Item is a calibrated question from the catalog. Items are immutable from
// the engine's viewpoint; the engine holds read-only views for the duration
// of a request.
type Item struct {
	ID      string         `json:"id" validate:"required"`
	Topic   string         `json:"topic" validate:"required"`
	Subject Subject        `json:"subject"`
	Type    ItemType       `json:"type"`
	Tier    DifficultyTier `json:"tier"`
	IRT     IRTParameters  `json:"irt"`
}

// NewItem constructs an Item, deriving the subject from the topic and
// validating the IRT parameters.
func NewItem(id, topic string, typ ItemType, tier DifficultyTier, irt IRTParameters) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("item id must not be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("item topic must not be empty")
	}
	if err := irt.Validate(); err != nil {
		return nil, fmt.Errorf("item %s: %w", id, err)
	}
	return &Item{
		ID:      id,
		Topic:   topic,
		Subject: SubjectFromTopic(topic),
		Type:    typ,
		Tier:    tier,
		IRT:     irt,
	}, nil
}

// TopicAbility is the per-(learner, topic) latent-ability record. Mutated
// only through the engine's ability store.
type TopicAbility struct {
	Theta      float64 `json:"theta"`
	Percentile float64 `json:"percentile"`

	// SE is the standard error on the theta estimate. Shrinks as
	// attempts accumulate, bounded to [SEFloor, SECeiling].
	SE float64 `json:"confidence_se"`

	Attempts int `json:"attempts"`

	// Accuracy is the running proportion correct. Nil until the first
	// observed attempt (cold start is n=0, not a sentinel blend).
	Accuracy *float64 `json:"accuracy,omitempty"`

	// LastUpdated is zero for ability records created by prior
	// inheritance that have never seen a response.
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// ClampTheta bounds a theta estimate to [ThetaMin, ThetaMax].
func ClampTheta(theta float64) float64 {
	if theta < ThetaMin {
		return ThetaMin
	}
	if theta > ThetaMax {
		return ThetaMax
	}
	return theta
}

// ClampSE bounds a standard error to [SEFloor, SECeiling].
func ClampSE(se float64) float64 {
	if se < SEFloor {
		return SEFloor
	}
	if se > SECeiling {
		return SECeiling
	}
	return se
}

// LearnerProfile is the per-learner mutable state. It exclusively owns its
// TopicAbility records.
type LearnerProfile struct {
	LearnerID string `json:"learner_id"`

	ThetaByTopic map[string]TopicAbility `json:"theta_by_topic"`

	// OverallTheta is the JEE-weight-weighted mean of per-topic theta.
	OverallTheta      float64 `json:"overall_theta"`
	OverallPercentile float64 `json:"overall_percentile"`

	// CompletedQuizCount is the PRIMARY scheduler input. Monotonically
	// non-decreasing; incremented exactly once per emitted quiz.
	CompletedQuizCount int `json:"completed_quiz_count"`

	AssessmentCompletedAt time.Time     `json:"assessment_completed_at"`
	LearningPhase         LearningPhase `json:"learning_phase"`

	// PhaseSwitchedAtQuiz is nil until the first exploitation quiz and
	// is set exactly once.
	PhaseSwitchedAtQuiz *int `json:"phase_switched_at_quiz,omitempty"`

	TotalQuestionsSolved int            `json:"total_questions_solved"`
	TopicAttemptCounts   map[string]int `json:"topic_attempt_counts"`

	// SubjectBalance is the proportion of attempts per subject.
	SubjectBalance map[Subject]float64 `json:"subject_balance"`

	TopicsExplored  int `json:"topics_explored"`
	TopicsConfident int `json:"topics_confident"`

	LastQuizGeneratedAt time.Time `json:"last_quiz_generated_at,omitempty"`
}

// NewLearnerProfile returns an empty profile in the exploration phase.
func NewLearnerProfile(learnerID string) *LearnerProfile {
	return &LearnerProfile{
		LearnerID:          learnerID,
		ThetaByTopic:       make(map[string]TopicAbility),
		LearningPhase:      PhaseExploration,
		TopicAttemptCounts: make(map[string]int),
		SubjectBalance: map[Subject]float64{
			SubjectPhysics:     1.0 / 3.0,
			SubjectChemistry:   1.0 / 3.0,
			SubjectMathematics: 1.0 / 3.0,
		},
	}
}

// RecomputeSubjectBalance refreshes SubjectBalance from TopicAttemptCounts.
// With zero attempts the balance is uniform across the three subjects.
func (p *LearnerProfile) RecomputeSubjectBalance() {
	counts := map[Subject]int{
		SubjectPhysics:     0,
		SubjectChemistry:   0,
		SubjectMathematics: 0,
	}
	total := 0
	for topic, n := range p.TopicAttemptCounts {
		subj := SubjectFromTopic(topic)
		if _, ok := counts[subj]; !ok {
			continue
		}
		counts[subj] += n
		total += n
	}

	balance := make(map[Subject]float64, len(counts))
	if total == 0 {
		for subj := range counts {
			balance[subj] = 1.0 / 3.0
		}
	} else {
		for subj, n := range counts {
			balance[subj] = float64(n) / float64(total)
		}
	}
	p.SubjectBalance = balance
}

// Response is an append-only record of one answered item. Never mutated.
type Response struct {
	ID        string `json:"id"`
	LearnerID string `json:"learner_id"`
	ItemID    string `json:"item_id"`
	Topic     string `json:"topic"`

	Correct        bool `json:"correct"`
	ElapsedSeconds int  `json:"elapsed_seconds"`

	ThetaBefore float64 `json:"theta_before"`
	ThetaAfter  float64 `json:"theta_after"`
	ThetaDelta  float64 `json:"theta_delta"`
	SEBefore    float64 `json:"se_before"`
	SEAfter     float64 `json:"se_after"`

	AnsweredAt time.Time `json:"answered_at"`
}

// QuizQuestion is one positioned slot in an emitted quiz.
type QuizQuestion struct {
	ItemID      string  `json:"item_id"`
	Topic       string  `json:"topic"`
	DifficultyB float64 `json:"difficulty_b"`
	Position    int     `json:"position"`
}

// Quiz is an ordered sequence of up to QuizLength item ids with metadata.
type Quiz struct {
	ID        string `json:"id"`
	LearnerID string `json:"learner_id"`

	// Number is 1-based: the completed-quiz count at generation time
	// plus one.
	Number int `json:"number"`

	Phase         LearningPhase  `json:"phase"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Questions     []QuizQuestion `json:"questions"`
	TopicsCovered []string       `json:"topics_covered"`
}

// Validate checks the no-duplicate-item invariant.
func (q *Quiz) Validate() error {
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if _, dup := seen[question.ItemID]; dup {
			return fmt.Errorf("quiz %s: duplicate item %s", q.ID, question.ItemID)
		}
		seen[question.ItemID] = struct{}{}
	}
	return nil
}
