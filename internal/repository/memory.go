// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// Memory is an in-memory Repository for tests and embedded use. Safe for
// concurrent use. Values are deep-copied through JSON so callers can never
// alias stored state.
type Memory struct {
	mu        sync.RWMutex
	items     map[string]*models.Item
	profiles  map[string]*models.LearnerProfile
	responses map[string][]models.Response // newest first
	quizzes   map[string][]*models.Quiz
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		items:     make(map[string]*models.Item),
		profiles:  make(map[string]*models.LearnerProfile),
		responses: make(map[string][]models.Response),
		quizzes:   make(map[string][]*models.Quiz),
	}
}

func deepCopy[T any](src *T) (*T, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("copy marshal: %w", err)
	}
	dst := new(T)
	if err := json.Unmarshal(data, dst); err != nil {
		return nil, fmt.Errorf("copy unmarshal: %w", err)
	}
	return dst, nil
}

// GetItem implements Repository.
func (m *Memory) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return deepCopy(item)
}

// PutItem implements Repository.
func (m *Memory) PutItem(ctx context.Context, item *models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := deepCopy(item)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = stored
	return nil
}

// QueryItems implements Repository.
func (m *Memory) QueryItems(ctx context.Context, q ItemQuery) ([]models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Item
	for _, item := range m.items {
		if q.Matches(item) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProfile implements Repository.
func (m *Memory) GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[learnerID]
	if !ok {
		return nil, fmt.Errorf("learner %s: %w", learnerID, ErrNotFound)
	}
	return deepCopy(profile)
}

// PutProfile implements Repository.
func (m *Memory) PutProfile(ctx context.Context, profile *models.LearnerProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := deepCopy(profile)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.LearnerID] = stored
	return nil
}

// UpdateProfile implements Repository. The whole read-modify-write runs
// under the store lock, so updates are serialized per store.
func (m *Memory) UpdateProfile(ctx context.Context, learnerID string, mutate func(*models.LearnerProfile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[learnerID]
	if !ok {
		return fmt.Errorf("learner %s: %w", learnerID, ErrNotFound)
	}

	working, err := deepCopy(profile)
	if err != nil {
		return err
	}
	if err := mutate(working); err != nil {
		return err
	}

	m.profiles[learnerID] = working
	return nil
}

// AppendResponse implements Repository.
func (m *Memory) AppendResponse(ctx context.Context, resp *models.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := deepCopy(resp)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.responses[resp.LearnerID]
	// Insert keeping newest-first order; appends are almost always the
	// newest entry, so this is a single prepend in practice.
	idx := sort.Search(len(log), func(i int) bool {
		return !log[i].AnsweredAt.After(stored.AnsweredAt)
	})
	log = append(log, models.Response{})
	copy(log[idx+1:], log[idx:])
	log[idx] = *stored
	m.responses[resp.LearnerID] = log
	return nil
}

// RecentResponses implements Repository.
func (m *Memory) RecentResponses(ctx context.Context, learnerID string, since time.Time, limit int) ([]models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Response
	for _, resp := range m.responses[learnerID] {
		if resp.AnsweredAt.Before(since) {
			break // log is newest first
		}
		out = append(out, resp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CorrectResponses implements Repository.
func (m *Memory) CorrectResponses(ctx context.Context, learnerID string, since, until time.Time) ([]models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Response
	for _, resp := range m.responses[learnerID] {
		if !resp.Correct {
			continue
		}
		if !until.IsZero() && resp.AnsweredAt.After(until) {
			continue
		}
		if !since.IsZero() && resp.AnsweredAt.Before(since) {
			break
		}
		out = append(out, resp)
	}
	return out, nil
}

// PutQuiz implements Repository.
func (m *Memory) PutQuiz(ctx context.Context, quiz *models.Quiz) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored, err := deepCopy(quiz)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[quiz.LearnerID] = append(m.quizzes[quiz.LearnerID], stored)
	return nil
}

// Quizzes returns stored quiz metadata for a learner, oldest first.
// Test helper; not part of the Repository port.
func (m *Memory) Quizzes(learnerID string) []*models.Quiz {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quizzes[learnerID]
}

var _ Repository = (*Memory)(nil)
