// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"time"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// reviewTier buckets days-since-correct into a spaced-repetition priority.
// Anything answered less than a day ago is excluded (tier 0).
func reviewTier(days float64) int {
	switch {
	case days >= 30:
		return 5
	case days >= 14:
		return 4
	case days >= 7:
		return 3
	case days >= 3:
		return 2
	case days >= 1:
		return 1
	default:
		return 0
	}
}

// selectReview picks the spaced-repetition candidate from the learner's
// correctly answered items: maximum (tier, days_since) lexicographically,
// then smaller item id. Items in the excluded set never qualify. Returns
// nil when no candidate exists.
//
// correct is the correct-response log, newest first. Only the most recent
// correct answer per item counts toward its days_since.
func selectReview(correct []models.Response, excluded map[string]struct{}, now time.Time) *models.Response {
	seen := make(map[string]struct{}, len(correct))

	var best *models.Response
	var bestTier int
	var bestDays float64

	for i := range correct {
		resp := &correct[i]
		if _, dup := seen[resp.ItemID]; dup {
			continue // newest-first, so the first occurrence is the latest
		}
		seen[resp.ItemID] = struct{}{}

		if _, skip := excluded[resp.ItemID]; skip {
			continue
		}

		days := now.Sub(resp.AnsweredAt).Hours() / 24.0
		tier := reviewTier(days)
		if tier == 0 {
			continue
		}

		switch {
		case best == nil,
			tier > bestTier,
			tier == bestTier && days > bestDays,
			tier == bestTier && days == bestDays && resp.ItemID < best.ItemID:
			best, bestTier, bestDays = resp, tier, days
		}
	}
	return best
}

// selectRecoveryReview picks the recovery quiz's review slot: an item the
// learner answered correctly within the lookback window, preferring the
// stalest, restricted to the given topics when the set is non-empty.
func selectRecoveryReview(correct []models.Response, allowedTopics map[string]struct{}, excluded map[string]struct{}, now time.Time, minDays, maxDays int) *models.Response {
	var best *models.Response
	var bestDays float64

	for i := range correct {
		resp := &correct[i]
		if _, skip := excluded[resp.ItemID]; skip {
			continue
		}
		if len(allowedTopics) > 0 {
			if _, ok := allowedTopics[resp.Topic]; !ok {
				continue
			}
		}

		days := now.Sub(resp.AnsweredAt).Hours() / 24.0
		if days < float64(minDays) || days >= float64(maxDays) {
			continue
		}

		switch {
		case best == nil,
			days > bestDays,
			days == bestDays && resp.ItemID < best.ItemID:
			best, bestDays = resp, days
		}
	}
	return best
}
