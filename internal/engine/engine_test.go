// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adaptix-learn/adaptix/internal/models"
	"github.com/adaptix-learn/adaptix/internal/repository"
)

var catalogTopics = []string{
	"physics_mechanics_kinematics",
	"physics_mechanics_newtons_laws",
	"physics_current_electricity",
	"chemistry_physical_mole_concept",
	"chemistry_physical_thermodynamics",
	"mathematics_calculus_limits",
	"mathematics_algebra_complex",
}

// seedCatalog stores a spread of difficulties and discriminations per
// topic, covering the recovery bands and the strict selector window.
func seedCatalog(t *testing.T, repo *repository.Memory) {
	t.Helper()
	ctx := context.Background()

	bs := []float64{0.45, 0.6, 0.9, 1.0, 1.3, 1.6, 2.0, 2.4}
	as := []float64{1.5, 1.1, 1.6, 1.4, 1.8, 1.2, 1.5, 1.0}
	for _, topic := range catalogTopics {
		for i := range bs {
			item, err := models.NewItem(
				fmt.Sprintf("%s-%02d", topic, i),
				topic,
				models.ItemSingleChoice,
				models.TierMedium,
				models.IRTParameters{DifficultyB: bs[i], DiscriminationA: as[i], GuessingC: 0.25},
			)
			if err != nil {
				t.Fatalf("NewItem: %v", err)
			}
			if err := repo.PutItem(ctx, item); err != nil {
				t.Fatalf("PutItem: %v", err)
			}
		}
	}
}

func newTestHarness(t *testing.T) (*Engine, *repository.Memory, FixedClock) {
	t.Helper()
	repo := repository.NewMemory()
	seedCatalog(t, repo)
	clock := FixedClock{At: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	e, err := New(DefaultConfig(), repo, clock, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, repo, clock
}

func assessLearner(t *testing.T, e *Engine, learnerID string) *models.LearnerProfile {
	t.Helper()
	var answers []AssessmentAnswer
	// Mixed results across three subjects: strong math, middling physics,
	// weak chemistry.
	for i := 0; i < 4; i++ {
		answers = append(answers,
			AssessmentAnswer{Topic: "physics_mechanics_kinematics", Correct: i < 2},
			AssessmentAnswer{Topic: "chemistry_physical_mole_concept", Correct: i < 1},
			AssessmentAnswer{Topic: "mathematics_calculus_limits", Correct: i < 3},
		)
	}
	profile, err := e.ProcessAssessment(context.Background(), learnerID, answers)
	if err != nil {
		t.Fatalf("ProcessAssessment: %v", err)
	}
	return profile
}

func TestProcessAssessment(t *testing.T) {
	e, _, _ := newTestHarness(t)
	ctx := context.Background()

	profile := assessLearner(t, e, "learner-1")

	if got := profile.ThetaByTopic["physics_mechanics_kinematics"].Theta; got != -0.5 {
		t.Errorf("physics theta = %f, want -0.5 (accuracy 0.5)", got)
	}
	if got := profile.ThetaByTopic["chemistry_physical_mole_concept"].Theta; got != -1.5 {
		t.Errorf("chemistry theta = %f, want -1.5 (accuracy 0.25)", got)
	}
	if got := profile.ThetaByTopic["mathematics_calculus_limits"].Theta; got != 1.5 {
		t.Errorf("math theta = %f, want 1.5 (accuracy 0.75)", got)
	}
	if profile.LearningPhase != models.PhaseExploration {
		t.Errorf("phase = %s, want exploration", profile.LearningPhase)
	}

	// Re-assessment conflicts.
	_, err := e.ProcessAssessment(ctx, "learner-1", []AssessmentAnswer{{Topic: "physics_optics_ray", Correct: true}})
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("second assessment err = %v, want ErrConflict", err)
	}

	// Empty input rejected.
	if _, err := e.ProcessAssessment(ctx, "learner-2", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty assessment err = %v, want ErrInvalidInput", err)
	}
}

func TestRecordResponse(t *testing.T) {
	e, repo, clock := newTestHarness(t)
	ctx := context.Background()
	assessLearner(t, e, "learner-1")

	got, err := e.RecordResponse(ctx, "learner-1", "physics_mechanics_kinematics-02", true, 45)
	if err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	if got.Response.ThetaDelta <= 0 {
		t.Errorf("theta delta = %f, want > 0 for a correct answer", got.Response.ThetaDelta)
	}
	if got.Ability.Attempts != 5 { // 4 assessment attempts + 1
		t.Errorf("attempts = %d, want 5", got.Ability.Attempts)
	}

	logged, err := repo.RecentResponses(ctx, "learner-1", clock.At.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("RecentResponses: %v", err)
	}
	if len(logged) != 1 || logged[0].ItemID != "physics_mechanics_kinematics-02" {
		t.Errorf("response log = %+v, want the recorded response", logged)
	}

	// Unknown item is a precondition failure, not a storage error.
	if _, err := e.RecordResponse(ctx, "learner-1", "no-such-item", true, 10); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown item err = %v, want ErrInvalidInput", err)
	}
	// Unknown learner surfaces not-found from the profile update.
	if _, err := e.RecordResponse(ctx, "ghost", "physics_mechanics_kinematics-02", true, 10); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown learner err = %v, want ErrNotFound", err)
	}
}

func assertQuizInvariants(t *testing.T, quiz *models.Quiz, maxLen int) {
	t.Helper()
	if len(quiz.Questions) == 0 || len(quiz.Questions) > maxLen {
		t.Fatalf("quiz has %d questions, want 1..%d", len(quiz.Questions), maxLen)
	}
	if err := quiz.Validate(); err != nil {
		t.Fatalf("quiz invariant: %v", err)
	}
	topicSet := make(map[string]struct{})
	for i, q := range quiz.Questions {
		if q.Position != i+1 {
			t.Errorf("question %d has position %d", i, q.Position)
		}
		topicSet[q.Topic] = struct{}{}
	}
	if len(topicSet) >= 2 {
		for i := 1; i < len(quiz.Questions); i++ {
			if quiz.Questions[i].Topic == quiz.Questions[i-1].Topic {
				t.Errorf("adjacent questions %d and %d share topic %s", i-1, i, quiz.Questions[i].Topic)
			}
		}
	}
}

func TestGenerateQuiz_Exploration(t *testing.T) {
	e, repo, _ := newTestHarness(t)
	ctx := context.Background()
	assessLearner(t, e, "learner-1")

	got, err := e.GenerateQuiz(ctx, "learner-1", 42)
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if got.Quiz.Phase != models.PhaseExploration {
		t.Errorf("phase = %s, want exploration", got.Quiz.Phase)
	}
	if got.Quiz.Number != 1 {
		t.Errorf("quiz number = %d, want 1", got.Quiz.Number)
	}
	assertQuizInvariants(t, got.Quiz, e.cfg.QuizLength)

	profile, err := repo.GetProfile(ctx, "learner-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.CompletedQuizCount != 1 {
		t.Errorf("completed quiz count = %d, want 1", profile.CompletedQuizCount)
	}
	if stored := repo.Quizzes("learner-1"); len(stored) != 1 || stored[0].ID != got.Quiz.ID {
		t.Errorf("quiz metadata not persisted")
	}
}

func TestGenerateQuiz_DeterministicWithSeed(t *testing.T) {
	build := func() *models.Quiz {
		e, _, _ := newTestHarness(t)
		assessLearner(t, e, "learner-1")
		got, err := e.GenerateQuiz(context.Background(), "learner-1", 42)
		if err != nil {
			t.Fatalf("GenerateQuiz: %v", err)
		}
		return got.Quiz
	}

	first, second := build(), build()
	if len(first.Questions) != len(second.Questions) {
		t.Fatalf("quiz lengths diverged: %d vs %d", len(first.Questions), len(second.Questions))
	}
	for i := range first.Questions {
		if first.Questions[i].ItemID != second.Questions[i].ItemID {
			t.Fatalf("same seed diverged at position %d: %s vs %s",
				i, first.Questions[i].ItemID, second.Questions[i].ItemID)
		}
	}
}

func TestGenerateQuiz_PhaseTransition(t *testing.T) {
	e, repo, _ := newTestHarness(t)
	ctx := context.Background()
	assessLearner(t, e, "learner-1")

	err := repo.UpdateProfile(ctx, "learner-1", func(p *models.LearnerProfile) error {
		p.CompletedQuizCount = 13
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	// Quiz at count 13 is still exploration.
	got, err := e.GenerateQuiz(ctx, "learner-1", 42)
	if err != nil {
		t.Fatalf("GenerateQuiz at 13: %v", err)
	}
	if got.Quiz.Phase != models.PhaseExploration {
		t.Errorf("phase at count 13 = %s, want exploration", got.Quiz.Phase)
	}

	// Quiz at count 14 switches to exploitation exactly once.
	got, err = e.GenerateQuiz(ctx, "learner-1", 43)
	if err != nil {
		t.Fatalf("GenerateQuiz at 14: %v", err)
	}
	if got.Quiz.Phase != models.PhaseExploitation {
		t.Errorf("phase at count 14 = %s, want exploitation", got.Quiz.Phase)
	}
	assertQuizInvariants(t, got.Quiz, e.cfg.QuizLength)

	profile, err := repo.GetProfile(ctx, "learner-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.PhaseSwitchedAtQuiz == nil || *profile.PhaseSwitchedAtQuiz != 14 {
		t.Errorf("phase_switched_at_quiz = %v, want 14", profile.PhaseSwitchedAtQuiz)
	}
	if profile.LearningPhase != models.PhaseExploitation {
		t.Errorf("profile phase = %s, want exploitation", profile.LearningPhase)
	}

	// The marker is set exactly once.
	if _, err := e.GenerateQuiz(ctx, "learner-1", 44); err != nil {
		t.Fatalf("GenerateQuiz at 15: %v", err)
	}
	profile, _ = repo.GetProfile(ctx, "learner-1")
	if *profile.PhaseSwitchedAtQuiz != 14 {
		t.Errorf("phase_switched_at_quiz moved to %d", *profile.PhaseSwitchedAtQuiz)
	}
}

func TestGenerateQuiz_CircuitBreaker(t *testing.T) {
	e, repo, _ := newTestHarness(t)
	ctx := context.Background()
	assessLearner(t, e, "learner-1")

	// Five straight failures on catalog items.
	for i := 0; i < 5; i++ {
		itemID := fmt.Sprintf("physics_mechanics_kinematics-%02d", i)
		if _, err := e.RecordResponse(ctx, "learner-1", itemID, false, 30); err != nil {
			t.Fatalf("RecordResponse: %v", err)
		}
	}

	got, err := e.GenerateQuiz(ctx, "learner-1", 42)
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if got.Quiz.Phase != models.PhaseRecovery {
		t.Fatalf("phase = %s, want recovery", got.Quiz.Phase)
	}
	assertQuizInvariants(t, got.Quiz, e.cfg.QuizLength)

	// Recovery never re-serves the just-failed items.
	failed := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		failed[fmt.Sprintf("physics_mechanics_kinematics-%02d", i)] = struct{}{}
	}
	for _, q := range got.Quiz.Questions {
		if _, hit := failed[q.ItemID]; hit {
			t.Errorf("recovery quiz re-serves recently failed item %s", q.ItemID)
		}
	}

	profile, err := repo.GetProfile(ctx, "learner-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.LearningPhase != models.PhaseRecovery {
		t.Errorf("profile phase = %s, want recovery", profile.LearningPhase)
	}
	if profile.CompletedQuizCount != 1 {
		t.Errorf("completed quiz count = %d, want 1 (recovery still counts)", profile.CompletedQuizCount)
	}
}

func TestGenerateQuiz_AvoidsRecentItems(t *testing.T) {
	e, _, _ := newTestHarness(t)
	ctx := context.Background()
	assessLearner(t, e, "learner-1")

	first, err := e.GenerateQuiz(ctx, "learner-1", 42)
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	// Answer everything correctly.
	for _, q := range first.Quiz.Questions {
		if _, err := e.RecordResponse(ctx, "learner-1", q.ItemID, true, 30); err != nil {
			t.Fatalf("RecordResponse: %v", err)
		}
	}

	second, err := e.GenerateQuiz(ctx, "learner-1", 43)
	if err != nil {
		t.Fatalf("GenerateQuiz again: %v", err)
	}
	answered := make(map[string]struct{})
	for _, q := range first.Quiz.Questions {
		answered[q.ItemID] = struct{}{}
	}
	for _, q := range second.Quiz.Questions {
		if _, hit := answered[q.ItemID]; hit {
			t.Errorf("second quiz repeats recently answered item %s", q.ItemID)
		}
	}
}

func TestGenerateQuiz_SparseCatalog(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	// Three items in a single topic: nowhere near enough to fill ten
	// slots.
	bs := []float64{0.6, 0.9, 1.3}
	as := []float64{1.5, 1.4, 1.6}
	for i := range bs {
		item, err := models.NewItem(
			fmt.Sprintf("physics_mechanics_kinematics-%02d", i),
			"physics_mechanics_kinematics",
			models.ItemSingleChoice,
			models.TierMedium,
			models.IRTParameters{DifficultyB: bs[i], DiscriminationA: as[i], GuessingC: 0.25},
		)
		if err != nil {
			t.Fatalf("NewItem: %v", err)
		}
		if err := repo.PutItem(ctx, item); err != nil {
			t.Fatalf("PutItem: %v", err)
		}
	}

	clock := FixedClock{At: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	e, err := New(DefaultConfig(), repo, clock, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var answers []AssessmentAnswer
	for i := 0; i < 4; i++ {
		answers = append(answers, AssessmentAnswer{Topic: "physics_mechanics_kinematics", Correct: i < 2})
	}
	if _, err := e.ProcessAssessment(ctx, "learner-1", answers); err != nil {
		t.Fatalf("ProcessAssessment: %v", err)
	}

	got, err := e.GenerateQuiz(ctx, "learner-1", 7)
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if !got.ShortQuiz {
		t.Error("short_quiz = false, want true with a three-item catalog")
	}
	if n := len(got.Quiz.Questions); n != 3 {
		t.Errorf("quiz has %d questions, want all 3 available items", n)
	}
	if got.Quiz.Phase != models.PhaseExploration {
		t.Errorf("phase = %s, want exploration", got.Quiz.Phase)
	}
	assertQuizInvariants(t, got.Quiz, e.cfg.QuizLength)
}

func TestGenerateQuiz_RecoveryComposition(t *testing.T) {
	e, repo, clock := newTestHarness(t)
	ctx := context.Background()
	now := clock.At

	// Four tested topics so the weak set covers the full 2/2/2/1 easy
	// spread: chemistry and kinematics weakest, then electricity, then
	// math.
	var answers []AssessmentAnswer
	for i := 0; i < 4; i++ {
		answers = append(answers,
			AssessmentAnswer{Topic: "chemistry_physical_mole_concept", Correct: i < 1},
			AssessmentAnswer{Topic: "physics_mechanics_kinematics", Correct: i < 1},
			AssessmentAnswer{Topic: "physics_current_electricity", Correct: i < 2},
			AssessmentAnswer{Topic: "mathematics_calculus_limits", Correct: i < 3},
		)
	}
	if _, err := e.ProcessAssessment(ctx, "learner-1", answers); err != nil {
		t.Fatalf("ProcessAssessment: %v", err)
	}

	// One correct answer ten days back, feeding the recovery review slot.
	reviewItemID := "chemistry_physical_mole_concept-04"
	err := repo.AppendResponse(ctx, &models.Response{
		ID:         "resp-review",
		LearnerID:  "learner-1",
		ItemID:     reviewItemID,
		Topic:      "chemistry_physical_mole_concept",
		Correct:    true,
		AnsweredAt: now.AddDate(0, 0, -10),
	})
	if err != nil {
		t.Fatalf("AppendResponse: %v", err)
	}

	// Five straight failures, newest first.
	for i := 0; i < 5; i++ {
		err := repo.AppendResponse(ctx, &models.Response{
			ID:         fmt.Sprintf("resp-fail-%d", i),
			LearnerID:  "learner-1",
			ItemID:     fmt.Sprintf("drill-%d", i),
			Topic:      "physics_mechanics_kinematics",
			Correct:    false,
			AnsweredAt: now.Add(-time.Duration(i+1) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendResponse: %v", err)
		}
	}

	got, err := e.GenerateQuiz(ctx, "learner-1", 42)
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if got.Quiz.Phase != models.PhaseRecovery {
		t.Fatalf("phase = %s, want recovery", got.Quiz.Phase)
	}
	if got.ShortQuiz {
		t.Error("short_quiz = true, want a full recovery quiz from this catalog")
	}
	if n := len(got.Quiz.Questions); n != e.cfg.QuizLength {
		t.Fatalf("quiz has %d questions, want %d", n, e.cfg.QuizLength)
	}
	assertQuizInvariants(t, got.Quiz, e.cfg.QuizLength)

	// Composition: seven easy, two medium, one review item outside both
	// bands.
	var easy, medium int
	var other []string
	for _, q := range got.Quiz.Questions {
		switch {
		case q.DifficultyB >= e.cfg.RecoveryEasyBMin && q.DifficultyB <= e.cfg.RecoveryEasyBMax:
			easy++
		case q.DifficultyB >= e.cfg.RecoveryMediumBMin && q.DifficultyB <= e.cfg.RecoveryMediumBMax:
			medium++
		default:
			other = append(other, q.ItemID)
		}
	}
	if easy != 7 {
		t.Errorf("easy-band questions = %d, want 7", easy)
	}
	if medium != 2 {
		t.Errorf("medium-band questions = %d, want 2", medium)
	}
	if len(other) != 1 || other[0] != reviewItemID {
		t.Errorf("review slot = %v, want exactly [%s]", other, reviewItemID)
	}
}

func TestFillFromTopics_DiscriminationFloor(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	const topic = "mathematics_algebra_complex"

	// Both items sit inside the difficulty window around theta 0.8. The
	// on-target item carries more Fisher information but its a = 1.35
	// misses the strict 1.4 floor; the off-target item just clears it.
	put := func(id string, b, a float64) {
		t.Helper()
		item, err := models.NewItem(id, topic, models.ItemSingleChoice, models.TierMedium,
			models.IRTParameters{DifficultyB: b, DiscriminationA: a, GuessingC: 0.25})
		if err != nil {
			t.Fatalf("NewItem: %v", err)
		}
		if err := repo.PutItem(ctx, item); err != nil {
			t.Fatalf("PutItem: %v", err)
		}
	}
	put("complex-on-target", 0.8, 1.35)
	put("complex-off-target", 1.3, 1.4)

	e, err := New(DefaultConfig(), repo, FixedClock{At: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	target := func(string) float64 { return 0.8 }

	strict, err := e.fillFromTopics(ctx, &topicCatalog{repo: repo, cache: map[string][]models.Item{}},
		[]string{topic}, 1, target, map[string]struct{}{}, e.cfg.DiscriminationMin)
	if err != nil {
		t.Fatalf("fillFromTopics strict: %v", err)
	}
	if len(strict) != 1 || strict[0].ID != "complex-off-target" {
		t.Errorf("strict floor pick = %+v, want complex-off-target", strict)
	}

	relaxed, err := e.fillFromTopics(ctx, &topicCatalog{repo: repo, cache: map[string][]models.Item{}},
		[]string{topic}, 1, target, map[string]struct{}{}, e.cfg.DiscriminationMinMaintenance)
	if err != nil {
		t.Fatalf("fillFromTopics relaxed: %v", err)
	}
	if len(relaxed) != 1 || relaxed[0].ID != "complex-on-target" {
		t.Errorf("relaxed floor pick = %+v, want complex-on-target", relaxed)
	}
}

func TestGenerateQuiz_UnknownLearner(t *testing.T) {
	e, _, _ := newTestHarness(t)
	if _, err := e.GenerateQuiz(context.Background(), "ghost", 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
