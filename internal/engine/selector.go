// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"github.com/adaptix-learn/adaptix/internal/engine/irt"
	"github.com/adaptix-learn/adaptix/internal/models"
)

// selectItem runs the filter cascade over a topic's candidate items and
// returns the one carrying the most Fisher information at the target theta,
// or nil when nothing qualifies.
//
// Cascade, strict to relaxed:
//  1. exclude items in the excluded set (recently answered or already
//     placed in this quiz); this filter is never relaxed,
//  2. discrimination a >= aMin,
//  3. |b - target| <= window.
//
// Relaxation drops the discrimination floor first, then the difficulty
// band.
func selectItem(candidates []models.Item, targetTheta float64, excluded map[string]struct{}, aMin, window float64) *models.Item {
	passes := []func(*models.Item) bool{
		func(it *models.Item) bool {
			return it.IRT.DiscriminationA >= aMin && inWindow(it, targetTheta, window)
		},
		func(it *models.Item) bool {
			return inWindow(it, targetTheta, window)
		},
		func(*models.Item) bool { return true },
	}

	for _, keep := range passes {
		if best := bestByInformation(candidates, targetTheta, excluded, keep); best != nil {
			return best
		}
	}
	return nil
}

func inWindow(it *models.Item, target, window float64) bool {
	diff := it.IRT.DifficultyB - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

// bestByInformation scores survivors by Fisher information at the target
// theta, breaking ties toward the lexicographically smaller item id.
func bestByInformation(candidates []models.Item, targetTheta float64, excluded map[string]struct{}, keep func(*models.Item) bool) *models.Item {
	var best *models.Item
	var bestInfo float64

	for i := range candidates {
		it := &candidates[i]
		if _, skip := excluded[it.ID]; skip {
			continue
		}
		if !keep(it) {
			continue
		}

		info := irt.FisherInformation(targetTheta, it.IRT.DifficultyB, it.IRT.DiscriminationA, it.IRT.GuessingC)
		switch {
		case best == nil, info > bestInfo:
			best, bestInfo = it, info
		case info == bestInfo && it.ID < best.ID:
			best = it
		}
	}
	return best
}
