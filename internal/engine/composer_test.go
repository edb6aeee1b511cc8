// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"math/rand"
	"testing"

	"github.com/adaptix-learn/adaptix/internal/models"
)

func itemsForTopics(ids []string, topicByID map[string]string) []models.Item {
	out := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Item{
			ID:    id,
			Topic: topicByID[id],
			IRT:   models.IRTParameters{DifficultyB: 1.0, DiscriminationA: 1.5, GuessingC: 0.25},
		})
	}
	return out
}

func assertNoAdjacentTopics(t *testing.T, items []models.Item) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		if items[i].Topic == items[i-1].Topic {
			t.Fatalf("adjacent items %s and %s share topic %s",
				items[i-1].ID, items[i].ID, items[i].Topic)
		}
	}
}

func TestInterleaveByTopic(t *testing.T) {
	// Skewed topic counts: [A, A, B, C, A, B].
	topicByID := map[string]string{
		"q1": "A", "q2": "A", "q3": "B", "q4": "C", "q5": "A", "q6": "B",
	}
	input := itemsForTopics([]string{"q1", "q2", "q3", "q4", "q5", "q6"}, topicByID)

	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		got := interleaveByTopic(input, rng, 10)
		if len(got) != len(input) {
			t.Fatalf("seed %d: interleaved %d items, want %d", seed, len(got), len(input))
		}
		assertNoAdjacentTopics(t, got)

		seen := make(map[string]struct{}, len(got))
		for _, it := range got {
			if _, dup := seen[it.ID]; dup {
				t.Fatalf("seed %d: duplicate item %s", seed, it.ID)
			}
			seen[it.ID] = struct{}{}
		}
	}
}

func TestInterleaveByTopic_Deterministic(t *testing.T) {
	topicByID := map[string]string{
		"q1": "A", "q2": "A", "q3": "B", "q4": "C", "q5": "A", "q6": "B",
	}
	input := itemsForTopics([]string{"q1", "q2", "q3", "q4", "q5", "q6"}, topicByID)

	first := interleaveByTopic(input, rand.New(rand.NewSource(42)), 10)
	second := interleaveByTopic(input, rand.New(rand.NewSource(42)), 10)
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("same seed diverged at position %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestInterleaveByTopic_SingleTopic(t *testing.T) {
	topicByID := map[string]string{"q1": "A", "q2": "A", "q3": "A"}
	input := itemsForTopics([]string{"q1", "q2", "q3"}, topicByID)

	got := interleaveByTopic(input, rand.New(rand.NewSource(1)), 10)
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	// Single topic: adjacency is unavoidable, order is preserved.
	for i, id := range []string{"q1", "q2", "q3"} {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestInterleaveByTopic_Truncates(t *testing.T) {
	topicByID := map[string]string{}
	ids := make([]string, 0, 14)
	for i := 0; i < 14; i++ {
		id := string(rune('a'+i)) + "-item"
		ids = append(ids, id)
		if i%2 == 0 {
			topicByID[id] = "A"
		} else {
			topicByID[id] = "B"
		}
	}
	input := itemsForTopics(ids, topicByID)

	got := interleaveByTopic(input, rand.New(rand.NewSource(7)), 10)
	if len(got) != 10 {
		t.Fatalf("got %d items, want truncation to 10", len(got))
	}
	assertNoAdjacentTopics(t, got)
}

func TestInterleaveByTopic_Empty(t *testing.T) {
	if got := interleaveByTopic(nil, rand.New(rand.NewSource(1)), 10); got != nil {
		t.Errorf("interleaveByTopic(nil) = %v, want nil", got)
	}
}
