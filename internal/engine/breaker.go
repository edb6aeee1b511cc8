// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import "github.com/adaptix-learn/adaptix/internal/models"

// failureStreakTriggered reports whether the learner's newest responses
// form a failure streak long enough to warrant a recovery quiz.
//
// tail is the response log newest first. Only the newest window entries
// are examined, and the streak must start at the very newest response. A
// learner with fewer than threshold responses overall never triggers.
func failureStreakTriggered(tail []models.Response, threshold, window int) bool {
	if len(tail) < threshold {
		return false
	}
	if len(tail) > window {
		tail = tail[:window]
	}

	streak := 0
	for i := range tail {
		if tail[i].Correct {
			break
		}
		streak++
		if streak >= threshold {
			return true
		}
	}
	return false
}
