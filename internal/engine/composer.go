// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"math/rand"
	"sort"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// interleaveByTopic orders the selected items so no two adjacent items
// share a topic whenever the multiset of topics allows it, then truncates
// to maxLen.
//
// The items are partitioned into per-topic queues preserving selection
// order; the composer repeatedly pops from a topic different from the last
// emitted, always draining the fullest eligible queue so a dominant topic
// cannot corner the tail into forced adjacency. The injected RNG breaks
// ties among equally full queues for fairness. When only the last-emitted
// topic has items left, it is emitted anyway.
func interleaveByTopic(items []models.Item, rng *rand.Rand, maxLen int) []models.Item {
	if len(items) == 0 {
		return nil
	}

	queues := make(map[string][]models.Item)
	var order []string
	for _, it := range items {
		if _, ok := queues[it.Topic]; !ok {
			order = append(order, it.Topic)
		}
		queues[it.Topic] = append(queues[it.Topic], it)
	}
	// Deterministic eligible-set ordering so a seeded RNG reproduces the
	// same interleaving regardless of input map iteration.
	sort.Strings(order)

	out := make([]models.Item, 0, len(items))
	last := ""
	for len(out) < len(items) {
		var eligible []string
		longest := 0
		for _, topic := range order {
			n := len(queues[topic])
			if n == 0 || topic == last {
				continue
			}
			switch {
			case n > longest:
				eligible = append(eligible[:0], topic)
				longest = n
			case n == longest:
				eligible = append(eligible, topic)
			}
		}
		if len(eligible) == 0 {
			// Only the previous topic remains.
			eligible = append(eligible, last)
		}

		topic := eligible[rng.Intn(len(eligible))]
		q := queues[topic]
		out = append(out, q[0])
		queues[topic] = q[1:]
		last = topic
	}

	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
