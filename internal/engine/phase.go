// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"math"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// slotPlan is the per-quiz composition decided by the phase controller.
// Exactly one of the two slot groups is populated: exploration quizzes use
// Exploration/Deliberate, exploitation quizzes use Weak/Maintenance. Review
// is common to both.
type slotPlan struct {
	Phase            models.LearningPhase
	ExplorationRatio float64

	Exploration int
	Deliberate  int
	Weak        int
	Maintenance int
	Review      int
}

// planFor is a pure function of the completed-quiz count.
func (e *Engine) planFor(completedQuizzes int) slotPlan {
	if completedQuizzes < e.cfg.ExplorationEndQuiz {
		ratio := math.Max(
			e.cfg.ExplorationStartRatio-e.cfg.RatioDecayPerQuiz*float64(completedQuizzes),
			e.cfg.ExplorationEndRatio,
		)
		nExp := int(math.Floor(float64(e.cfg.QuizLength) * ratio))
		return slotPlan{
			Phase:            models.PhaseExploration,
			ExplorationRatio: ratio,
			Exploration:      nExp,
			Review:           1,
			Deliberate:       e.cfg.QuizLength - nExp - 1,
		}
	}
	return slotPlan{
		Phase:       models.PhaseExploitation,
		Weak:        e.cfg.WeakSlots,
		Maintenance: e.cfg.MaintenanceSlots,
		Review:      e.cfg.ReviewSlots,
	}
}
