// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import "fmt"

// Config centralises the engine tunables. Zero values are invalid; start
// from DefaultConfig and override.
type Config struct {
	// BaseLearningRate is the step size for theta updates before attempt
	// decay is applied.
	BaseLearningRate float64 `koanf:"base_learning_rate"`

	// LearningRateDecay shrinks the step per accumulated attempt:
	// lr = base / (1 + decay*attempts).
	LearningRateDecay float64 `koanf:"learning_rate_decay"`

	// SEReduction scales the standard error down on every response.
	SEReduction float64 `koanf:"se_reduction"`

	// ExplorationEndQuiz is the completed-quiz count at which the
	// scheduler switches to exploitation.
	ExplorationEndQuiz int `koanf:"exploration_end_quiz"`

	// ExplorationStartRatio and ExplorationEndRatio bound the share of
	// exploration slots; RatioDecayPerQuiz interpolates between them.
	ExplorationStartRatio float64 `koanf:"exploration_start_ratio"`
	ExplorationEndRatio   float64 `koanf:"exploration_end_ratio"`
	RatioDecayPerQuiz     float64 `koanf:"ratio_decay_per_quiz"`

	// QuizLength is the target number of items per quiz.
	QuizLength int `koanf:"quiz_length"`

	// Exploitation slot split. Must sum to QuizLength.
	WeakSlots        int `koanf:"weak_slots"`
	MaintenanceSlots int `koanf:"maintenance_slots"`
	ReviewSlots      int `koanf:"review_slots"`

	// DifficultyWindow is the half-width of the |b - target| band in the
	// strict selector filter.
	DifficultyWindow float64 `koanf:"difficulty_window"`

	// RecencyWindowDays defines the trailing answered-item set excluded
	// from new quizzes.
	RecencyWindowDays int `koanf:"recency_window_days"`

	// BreakerThreshold consecutive failures within the newest
	// BreakerWindow responses trigger a recovery quiz.
	BreakerThreshold int `koanf:"breaker_threshold"`
	BreakerWindow    int `koanf:"breaker_window"`

	// ExplorationTargetDifficulty is the target theta for topics the
	// learner has never attempted.
	ExplorationTargetDifficulty float64 `koanf:"exploration_target_difficulty"`

	// DiscriminationMin is the strict a-parameter floor for selection;
	// DiscriminationMinRecovery is the relaxed floor used for recovery
	// quizzes, DiscriminationMinMaintenance the relaxed floor for
	// maintenance picks on strong topics.
	DiscriminationMin            float64 `koanf:"discrimination_min"`
	DiscriminationMinRecovery    float64 `koanf:"discrimination_min_recovery"`
	DiscriminationMinMaintenance float64 `koanf:"discrimination_min_maintenance"`

	// ExplorationWeightFloor restricts exploration ranking to topics at
	// or above this JEE weight.
	ExplorationWeightFloor float64 `koanf:"exploration_weight_floor"`

	// ExplorationAttemptCeiling marks a topic unexplored while its
	// attempt count stays below this value.
	ExplorationAttemptCeiling int `koanf:"exploration_attempt_ceiling"`

	// Recovery quiz difficulty bands.
	RecoveryEasyBMin   float64 `koanf:"recovery_easy_b_min"`
	RecoveryEasyBMax   float64 `koanf:"recovery_easy_b_max"`
	RecoveryMediumBMin float64 `koanf:"recovery_medium_b_min"`
	RecoveryMediumBMax float64 `koanf:"recovery_medium_b_max"`

	// Recovery review lookback window, in days since a correct answer.
	RecoveryReviewMinDays int `koanf:"recovery_review_min_days"`
	RecoveryReviewMaxDays int `koanf:"recovery_review_max_days"`

	// MaintenancePoolSize is how many highest-theta topics feed the
	// random maintenance pick.
	MaintenancePoolSize int `koanf:"maintenance_pool_size"`
}

// DefaultConfig returns the calibrated production tunables.
func DefaultConfig() Config {
	return Config{
		BaseLearningRate:             0.3,
		LearningRateDecay:            0.02,
		SEReduction:                  0.95,
		ExplorationEndQuiz:           14,
		ExplorationStartRatio:        0.6,
		ExplorationEndRatio:          0.3,
		RatioDecayPerQuiz:            0.04,
		QuizLength:                   10,
		WeakSlots:                    7,
		MaintenanceSlots:             2,
		ReviewSlots:                  1,
		DifficultyWindow:             0.5,
		RecencyWindowDays:            30,
		BreakerThreshold:             5,
		BreakerWindow:                10,
		ExplorationTargetDifficulty:  0.9,
		DiscriminationMin:            1.4,
		DiscriminationMinRecovery:    1.0,
		DiscriminationMinMaintenance: 1.0,
		ExplorationWeightFloor:       0.6,
		ExplorationAttemptCeiling:    2,
		RecoveryEasyBMin:             0.4,
		RecoveryEasyBMax:             0.7,
		RecoveryMediumBMin:           0.8,
		RecoveryMediumBMax:           1.1,
		RecoveryReviewMinDays:        7,
		RecoveryReviewMaxDays:        14,
		MaintenancePoolSize:          5,
	}
}

// Validate checks internal consistency of the tunables.
func (c Config) Validate() error {
	if c.BaseLearningRate <= 0 {
		return fmt.Errorf("base_learning_rate must be positive, got %f", c.BaseLearningRate)
	}
	if c.LearningRateDecay < 0 {
		return fmt.Errorf("learning_rate_decay must be non-negative, got %f", c.LearningRateDecay)
	}
	if c.SEReduction <= 0 || c.SEReduction > 1 {
		return fmt.Errorf("se_reduction must be in (0, 1], got %f", c.SEReduction)
	}
	if c.QuizLength <= 0 {
		return fmt.Errorf("quiz_length must be positive, got %d", c.QuizLength)
	}
	if c.WeakSlots+c.MaintenanceSlots+c.ReviewSlots != c.QuizLength {
		return fmt.Errorf("slot split %d/%d/%d does not sum to quiz_length %d",
			c.WeakSlots, c.MaintenanceSlots, c.ReviewSlots, c.QuizLength)
	}
	if c.ExplorationStartRatio < c.ExplorationEndRatio {
		return fmt.Errorf("exploration_start_ratio %f below end ratio %f",
			c.ExplorationStartRatio, c.ExplorationEndRatio)
	}
	if c.BreakerThreshold <= 0 || c.BreakerWindow < c.BreakerThreshold {
		return fmt.Errorf("breaker window %d must cover threshold %d",
			c.BreakerWindow, c.BreakerThreshold)
	}
	if c.RecoveryEasyBMin > c.RecoveryEasyBMax || c.RecoveryMediumBMin > c.RecoveryMediumBMax {
		return fmt.Errorf("recovery difficulty bands are inverted")
	}
	if c.RecoveryReviewMinDays >= c.RecoveryReviewMaxDays {
		return fmt.Errorf("recovery review window [%d, %d) is empty",
			c.RecoveryReviewMinDays, c.RecoveryReviewMaxDays)
	}
	return nil
}
