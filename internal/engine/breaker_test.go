// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"testing"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// tail builds a newest-first response log from outcome letters:
// 'w' wrong, 'c' correct.
func tailOf(outcomes string) []models.Response {
	out := make([]models.Response, 0, len(outcomes))
	for _, r := range outcomes {
		out = append(out, models.Response{Correct: r == 'c'})
	}
	return out
}

func TestFailureStreakTriggered(t *testing.T) {
	tests := []struct {
		name string
		tail string
		want bool
	}{
		{"five wrongs then correct", "wwwwwc", true},
		{"exactly five wrongs", "wwwww", true},
		{"four wrongs", "wwwwc", false},
		{"streak broken at newest", "cwwwww", false},
		{"fewer than five responses", "www", false},
		{"empty log", "", false},
		{"long all-wrong history", "wwwwwwwwwwwwwww", true},
		{"streak buried past window", "ccccccccccwwwww", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureStreakTriggered(tailOf(tt.tail), 5, 10); got != tt.want {
				t.Errorf("failureStreakTriggered(%q) = %v, want %v", tt.tail, got, tt.want)
			}
		})
	}
}
