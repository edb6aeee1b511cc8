// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package engine implements the adaptive item-delivery pipeline: per-topic
// ability tracking over the 3PL model, the exploration/exploitation
// scheduler, priority ranking, Fisher-information item selection, the
// failure-streak circuit breaker, and quiz composition.
//
// The engine is pure over its injected ports (Repository, Clock, events);
// all I/O happens through them. Operations on different learners run in
// parallel; operations on one learner are serialized by a per-key lock.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adaptix-learn/adaptix/internal/metrics"
	"github.com/adaptix-learn/adaptix/internal/models"
	"github.com/adaptix-learn/adaptix/internal/repository"
)

// ErrNoCandidates is returned when quiz generation cannot source a single
// item even after every filter relaxation.
var ErrNoCandidates = errors.New("engine: no candidate items")

// ErrInvalidInput flags malformed requests (empty assessment, unknown
// learner fields). Precondition failures, not storage errors.
var ErrInvalidInput = errors.New("engine: invalid input")

// EventPublisher is the fire-and-forget event port. Publish must never
// block quiz generation; implementations drop events on overflow.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// NopEvents discards all events.
type NopEvents struct{}

// Publish implements EventPublisher.
func (NopEvents) Publish(context.Context, string, map[string]any) {}

// keyedMutex serializes operations per learner id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Engine is the adaptive assessment facade.
type Engine struct {
	cfg    Config
	repo   repository.Repository
	clock  Clock
	events EventPublisher
	log    zerolog.Logger
	locks  keyedMutex
}

// New constructs an Engine. A nil events publisher is replaced with
// NopEvents.
func New(cfg Config, repo repository.Repository, clock Clock, events EventPublisher, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Engine{
		cfg:    cfg,
		repo:   repo,
		clock:  clock,
		events: events,
		log:    log,
	}, nil
}

// ProcessAssessment creates a learner profile from the initial diagnostic
// assessment, seeding per-topic theta from accuracy. Returns ErrConflict
// when the learner already has a profile.
func (e *Engine) ProcessAssessment(ctx context.Context, learnerID string, answers []AssessmentAnswer) (*models.LearnerProfile, error) {
	if learnerID == "" || len(answers) == 0 {
		return nil, fmt.Errorf("%w: learner id and answers are required", ErrInvalidInput)
	}

	unlock := e.locks.lock(learnerID)
	defer unlock()

	if _, err := e.repo.GetProfile(ctx, learnerID); err == nil {
		return nil, fmt.Errorf("learner %s already assessed: %w", learnerID, repository.ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	now := e.clock.Now()
	profile := models.NewLearnerProfile(learnerID)
	initAbilities(profile, answers, now)

	if err := e.repo.PutProfile(ctx, profile); err != nil {
		return nil, err
	}

	metrics.AssessmentsProcessed.Inc()
	e.events.Publish(ctx, "assessment_initialized", map[string]any{
		"learner_id":    learnerID,
		"topics":        len(profile.ThetaByTopic),
		"overall_theta": profile.OverallTheta,
	})
	e.log.Info().
		Str("learner_id", learnerID).
		Int("topics", len(profile.ThetaByTopic)).
		Float64("overall_theta", profile.OverallTheta).
		Msg("assessment processed")

	return profile, nil
}

// UpdateResult is the outcome of recording one response.
type UpdateResult struct {
	Response *models.Response    `json:"response"`
	Ability  models.TopicAbility `json:"ability"`
}

// RecordResponse scores one answered item against the learner's ability
// estimate and persists the updated profile and the response record.
func (e *Engine) RecordResponse(ctx context.Context, learnerID, itemID string, correct bool, elapsedSeconds int) (*UpdateResult, error) {
	if learnerID == "" || itemID == "" {
		return nil, fmt.Errorf("%w: learner id and item id are required", ErrInvalidInput)
	}

	unlock := e.locks.lock(learnerID)
	defer unlock()

	item, err := e.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown item %s", ErrInvalidInput, itemID)
		}
		return nil, err
	}

	now := e.clock.Now()
	var update abilityUpdate
	err = e.repo.UpdateProfile(ctx, learnerID, func(p *models.LearnerProfile) error {
		update = e.applyResponse(p, item, correct, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &models.Response{
		ID:             uuid.NewString(),
		LearnerID:      learnerID,
		ItemID:         item.ID,
		Topic:          item.Topic,
		Correct:        correct,
		ElapsedSeconds: elapsedSeconds,
		ThetaBefore:    update.Before.Theta,
		ThetaAfter:     update.After.Theta,
		ThetaDelta:     update.Delta,
		SEBefore:       update.Before.SE,
		SEAfter:        update.After.SE,
		AnsweredAt:     now,
	}
	if err := e.repo.AppendResponse(ctx, resp); err != nil {
		return nil, err
	}

	metrics.ThetaUpdates.Inc()
	e.events.Publish(ctx, "theta_updated", map[string]any{
		"learner_id":  learnerID,
		"topic":       item.Topic,
		"correct":     correct,
		"theta_delta": update.Delta,
	})

	return &UpdateResult{Response: resp, Ability: update.After}, nil
}

// QuizResult is the outcome of one quiz generation.
type QuizResult struct {
	Quiz *models.Quiz `json:"quiz"`

	// ShortQuiz is set when the catalog could not fill every slot even
	// after relaxation. The quiz is still valid, just shorter.
	ShortQuiz bool `json:"short_quiz"`
}

// GenerateQuiz assembles the learner's next quiz. seed = 0 derives the RNG
// seed from the clock; any other value makes composition reproducible.
func (e *Engine) GenerateQuiz(ctx context.Context, learnerID string, seed int64) (*QuizResult, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("%w: learner id is required", ErrInvalidInput)
	}

	unlock := e.locks.lock(learnerID)
	defer unlock()

	profile, err := e.repo.GetProfile(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	if seed == 0 {
		seed = now.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // pedagogical shuffling, not security

	recentSince := now.AddDate(0, 0, -e.cfg.RecencyWindowDays)
	recent, err := e.repo.RecentResponses(ctx, learnerID, recentSince, 0)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]struct{}, len(recent))
	for i := range recent {
		excluded[recent[i].ItemID] = struct{}{}
	}

	tail, err := e.repo.RecentResponses(ctx, learnerID, time.Time{}, e.cfg.BreakerWindow)
	if err != nil {
		return nil, err
	}

	var (
		items []models.Item
		phase models.LearningPhase
	)
	if failureStreakTriggered(tail, e.cfg.BreakerThreshold, e.cfg.BreakerWindow) {
		phase = models.PhaseRecovery
		metrics.BreakerTriggers.Inc()
		e.events.Publish(ctx, "circuit_breaker_triggered", map[string]any{
			"learner_id": learnerID,
			"quiz_count": profile.CompletedQuizCount,
		})
		e.log.Warn().Str("learner_id", learnerID).Msg("failure streak detected, composing recovery quiz")

		items, err = e.composeRecovery(ctx, profile, excluded, now)
	} else {
		plan := e.planFor(profile.CompletedQuizCount)
		phase = plan.Phase
		items, err = e.composeScheduled(ctx, profile, plan, excluded, now, rng)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("learner %s: %w", learnerID, ErrNoCandidates)
	}

	ordered := interleaveByTopic(items, rng, e.cfg.QuizLength)

	quiz := &models.Quiz{
		ID:          uuid.NewString(),
		LearnerID:   learnerID,
		Number:      profile.CompletedQuizCount + 1,
		Phase:       phase,
		GeneratedAt: now,
	}
	topicSet := make(map[string]struct{})
	for i, it := range ordered {
		quiz.Questions = append(quiz.Questions, models.QuizQuestion{
			ItemID:      it.ID,
			Topic:       it.Topic,
			DifficultyB: it.IRT.DifficultyB,
			Position:    i + 1,
		})
		topicSet[it.Topic] = struct{}{}
	}
	for topic := range topicSet {
		quiz.TopicsCovered = append(quiz.TopicsCovered, topic)
	}
	sort.Strings(quiz.TopicsCovered)

	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if err := e.repo.PutQuiz(ctx, quiz); err != nil {
		return nil, err
	}

	switchedAt := profile.CompletedQuizCount
	err = e.repo.UpdateProfile(ctx, learnerID, func(p *models.LearnerProfile) error {
		p.CompletedQuizCount++
		p.LearningPhase = phase
		p.LastQuizGeneratedAt = now
		if phase == models.PhaseExploitation && p.PhaseSwitchedAtQuiz == nil {
			at := switchedAt
			p.PhaseSwitchedAtQuiz = &at
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	short := len(ordered) < e.cfg.QuizLength
	metrics.QuizzesGenerated.WithLabelValues(string(phase)).Inc()
	if short {
		metrics.ShortQuizzes.Inc()
		e.log.Warn().
			Str("learner_id", learnerID).
			Int("items", len(ordered)).
			Msg("catalog exhausted, emitting short quiz")
	}
	e.events.Publish(ctx, "quiz_generated", map[string]any{
		"learner_id": learnerID,
		"quiz_id":    quiz.ID,
		"number":     quiz.Number,
		"phase":      string(phase),
		"items":      len(ordered),
	})

	return &QuizResult{Quiz: quiz, ShortQuiz: short}, nil
}

// topicCatalog memoizes per-topic item queries within one generation.
type topicCatalog struct {
	repo  repository.Repository
	cache map[string][]models.Item
}

func (c *topicCatalog) items(ctx context.Context, topic string) ([]models.Item, error) {
	if cached, ok := c.cache[topic]; ok {
		return cached, nil
	}
	items, err := c.repo.QueryItems(ctx, repository.ItemQuery{Topic: topic})
	if err != nil {
		return nil, err
	}
	c.cache[topic] = items
	return items, nil
}

// fillFromTopics walks the ranked topic list round-robin, selecting one
// item per visit until the slot budget is met or a full pass adds nothing.
func (e *Engine) fillFromTopics(ctx context.Context, catalog *topicCatalog, ranked []string, slots int, target func(topic string) float64, excluded map[string]struct{}, aMin float64) ([]models.Item, error) {
	var out []models.Item
	if slots <= 0 || len(ranked) == 0 {
		return out, nil
	}

	for len(out) < slots {
		progressed := false
		for _, topic := range ranked {
			if len(out) >= slots {
				break
			}
			candidates, err := catalog.items(ctx, topic)
			if err != nil {
				return nil, err
			}
			pick := selectItem(candidates, target(topic), excluded, aMin, e.cfg.DifficultyWindow)
			if pick == nil {
				continue
			}
			out = append(out, *pick)
			excluded[pick.ID] = struct{}{}
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out, nil
}

// targetFor returns the selection target theta for a topic: the neutral
// low-medium difficulty for never-attempted topics, the current estimate
// otherwise.
func (e *Engine) targetFor(profile *models.LearnerProfile) func(topic string) float64 {
	return func(topic string) float64 {
		if ability, ok := profile.ThetaByTopic[topic]; ok && ability.Attempts > 0 {
			return ability.Theta
		}
		return e.cfg.ExplorationTargetDifficulty
	}
}

// composeScheduled fills the exploration or exploitation slot plan.
func (e *Engine) composeScheduled(ctx context.Context, profile *models.LearnerProfile, plan slotPlan, excluded map[string]struct{}, now time.Time, rng *rand.Rand) ([]models.Item, error) {
	catalog := &topicCatalog{repo: e.repo, cache: make(map[string][]models.Item)}
	target := e.targetFor(profile)

	var items []models.Item
	appendItems := func(batch []models.Item) {
		items = append(items, batch...)
	}

	if plan.Phase == models.PhaseExploration {
		exp, err := e.fillFromTopics(ctx, catalog, e.rankExploration(profile), plan.Exploration, target, excluded, e.cfg.DiscriminationMin)
		if err != nil {
			return nil, err
		}
		appendItems(exp)

		// Deliberate practice on the weakest tested topics; a learner
		// fresh off assessment always has tested topics here.
		deliberateTopics := e.rankWeakness(profile, now)
		if len(deliberateTopics) == 0 {
			deliberateTopics = e.rankExploration(profile)
		}
		deliberate, err := e.fillFromTopics(ctx, catalog, deliberateTopics, plan.Deliberate, target, excluded, e.cfg.DiscriminationMin)
		if err != nil {
			return nil, err
		}
		appendItems(deliberate)
	} else {
		weak, err := e.fillFromTopics(ctx, catalog, e.rankWeakness(profile, now), plan.Weak, target, excluded, e.cfg.DiscriminationMin)
		if err != nil {
			return nil, err
		}
		appendItems(weak)

		pool := strongestTopics(profile, e.cfg.MaintenancePoolSize)
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		if len(pool) > plan.Maintenance {
			pool = pool[:plan.Maintenance]
		}
		// Strong topics tolerate lower-discrimination items; the point of
		// maintenance is retention, not measurement precision.
		maintenance, err := e.fillFromTopics(ctx, catalog, pool, plan.Maintenance, target, excluded, e.cfg.DiscriminationMinMaintenance)
		if err != nil {
			return nil, err
		}
		appendItems(maintenance)
	}

	review, err := e.fillReview(ctx, profile.LearnerID, plan.Review, excluded, now)
	if err != nil {
		return nil, err
	}
	appendItems(review)

	return items, nil
}

// fillReview sources the spaced-repetition slots from the learner's
// correctly answered history.
func (e *Engine) fillReview(ctx context.Context, learnerID string, slots int, excluded map[string]struct{}, now time.Time) ([]models.Item, error) {
	var out []models.Item
	if slots <= 0 {
		return out, nil
	}

	correct, err := e.repo.CorrectResponses(ctx, learnerID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	for len(out) < slots {
		candidate := selectReview(correct, excluded, now)
		if candidate == nil {
			break
		}
		item, err := e.repo.GetItem(ctx, candidate.ItemID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Item retired from the catalog since it was answered.
				excluded[candidate.ItemID] = struct{}{}
				continue
			}
			return nil, err
		}
		out = append(out, *item)
		excluded[item.ID] = struct{}{}
	}
	return out, nil
}

// recoverySlotCounts spreads n easy slots over the weak topics, front-
// loading the weakest (2/2/2/1 for four topics and seven slots).
func recoverySlotCounts(topics []string, n int) map[string]int {
	counts := make(map[string]int, len(topics))
	for i := 0; n > 0 && len(topics) > 0; i = (i + 1) % len(topics) {
		counts[topics[i]]++
		n--
	}
	return counts
}

// composeRecovery builds the circuit-breaker quiz: seven easy items from
// the four weakest topics, two medium items from the two weakest, and one
// item answered correctly within the review lookback window.
func (e *Engine) composeRecovery(ctx context.Context, profile *models.LearnerProfile, excluded map[string]struct{}, now time.Time) ([]models.Item, error) {
	catalog := &topicCatalog{repo: e.repo, cache: make(map[string][]models.Item)}

	weak := weakestTopics(profile, 4)
	if len(weak) == 0 {
		return nil, fmt.Errorf("learner %s has no tested topics: %w", profile.LearnerID, ErrNoCandidates)
	}
	weakSet := make(map[string]struct{}, len(weak))
	for _, topic := range weak {
		weakSet[topic] = struct{}{}
	}

	thetaFor := func(topic string) float64 {
		return profile.ThetaByTopic[topic].Theta
	}

	// The review slot re-serves an item answered 7-14 days ago, which by
	// construction sits inside the recency window; track quiz-local picks
	// separately so only genuine duplicates are blocked there.
	chosen := make(map[string]struct{})

	var items []models.Item
	pickBand := func(topic string, bMin, bMax float64) error {
		banded, err := e.repo.QueryItems(ctx, repository.ItemQuery{
			Topic: topic,
			BMin:  bMin,
			BMax:  bMax,
			AMin:  e.cfg.DiscriminationMinRecovery,
		})
		if err != nil {
			return err
		}
		pick := bestByInformation(banded, thetaFor(topic), excluded, func(*models.Item) bool { return true })
		if pick == nil {
			// Band empty; fall back to the regular cascade over the
			// whole topic, still never touching recent items.
			all, err := catalog.items(ctx, topic)
			if err != nil {
				return err
			}
			pick = selectItem(all, thetaFor(topic), excluded, e.cfg.DiscriminationMinRecovery, e.cfg.DifficultyWindow)
		}
		if pick != nil {
			items = append(items, *pick)
			excluded[pick.ID] = struct{}{}
			chosen[pick.ID] = struct{}{}
		}
		return nil
	}

	easyCounts := recoverySlotCounts(weak, e.cfg.WeakSlots)
	for _, topic := range weak {
		for i := 0; i < easyCounts[topic]; i++ {
			if err := pickBand(topic, e.cfg.RecoveryEasyBMin, e.cfg.RecoveryEasyBMax); err != nil {
				return nil, err
			}
		}
	}

	mediumTopics := weak
	if len(mediumTopics) > 2 {
		mediumTopics = mediumTopics[:2]
	}
	for _, topic := range mediumTopics {
		if err := pickBand(topic, e.cfg.RecoveryMediumBMin, e.cfg.RecoveryMediumBMax); err != nil {
			return nil, err
		}
	}

	reviewSince := now.AddDate(0, 0, -e.cfg.RecoveryReviewMaxDays)
	reviewUntil := now.AddDate(0, 0, -e.cfg.RecoveryReviewMinDays)
	correct, err := e.repo.CorrectResponses(ctx, profile.LearnerID, reviewSince, reviewUntil)
	if err != nil {
		return nil, err
	}
	if candidate := selectRecoveryReview(correct, weakSet, chosen, now, e.cfg.RecoveryReviewMinDays, e.cfg.RecoveryReviewMaxDays); candidate != nil {
		item, err := e.repo.GetItem(ctx, candidate.ItemID)
		if err == nil {
			items = append(items, *item)
			excluded[item.ID] = struct{}{}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	return items, nil
}
