// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/adaptix-learn/adaptix/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	itemKeyPrefix      = "item:"
	itemTopicKeyPrefix = "item_topic:"
	profileKeyPrefix   = "profile:"
	responseKeyPrefix  = "resp:"
	quizKeyPrefix      = "quiz:"
)

// Badger implements Repository on BadgerDB. Profiles are updated inside a
// single transaction, so concurrent writers to one learner surface as
// ErrConflict and can be retried by the resilient decorator.
type Badger struct {
	db *badger.DB
}

// NewBadger wraps an open BadgerDB handle. The caller owns the handle's
// lifecycle.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// responseKey orders the response log newest-first under forward
// iteration by storing an inverted timestamp.
func responseKey(learnerID string, answeredAt time.Time, responseID string) []byte {
	inverted := uint64(math.MaxInt64 - answeredAt.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", responseKeyPrefix, learnerID, inverted, responseID))
}

func wrapBadgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, badger.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (b *Badger) getJSON(key []byte, dst any) error {
	return b.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(key)
		if err != nil {
			return err
		}
		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
}

func (b *Badger) setJSON(key []byte, src any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// GetItem implements Repository.
func (b *Badger) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var item models.Item
	if err := b.getJSON([]byte(itemKeyPrefix+itemID), &item); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}
		return nil, wrapBadgerErr(err)
	}
	return &item, nil
}

// PutItem implements Repository. The topic index entry is written in the
// same transaction as the item.
func (b *Badger) PutItem(ctx context.Context, item *models.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", item.ID, err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(itemKeyPrefix+item.ID), data); err != nil {
			return err
		}
		indexKey := []byte(itemTopicKeyPrefix + item.Topic + ":" + item.ID)
		return txn.Set(indexKey, []byte(item.ID))
	})
	return wrapBadgerErr(err)
}

// QueryItems implements Repository. Scans the topic index, then filters
// on IRT parameter bounds. Index order is item-id order, so results are
// deterministic.
func (b *Badger) QueryItems(ctx context.Context, q ItemQuery) ([]models.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.Item
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemTopicKeyPrefix + q.Topic + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			itemID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))

			entry, err := txn.Get([]byte(itemKeyPrefix + itemID))
			if err != nil {
				return err
			}
			var item models.Item
			if err := entry.Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}

			if q.Matches(&item) {
				out = append(out, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapBadgerErr(err)
	}
	return out, nil
}

// GetProfile implements Repository.
func (b *Badger) GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var profile models.LearnerProfile
	if err := b.getJSON([]byte(profileKeyPrefix+learnerID), &profile); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("learner %s: %w", learnerID, ErrNotFound)
		}
		return nil, wrapBadgerErr(err)
	}
	return &profile, nil
}

// PutProfile implements Repository.
func (b *Badger) PutProfile(ctx context.Context, profile *models.LearnerProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrapBadgerErr(b.setJSON([]byte(profileKeyPrefix+profile.LearnerID), profile))
}

// UpdateProfile implements Repository. Read and write happen in one
// transaction; Badger's SSI turns a lost race into ErrConflict.
func (b *Badger) UpdateProfile(ctx context.Context, learnerID string, mutate func(*models.LearnerProfile) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(profileKeyPrefix + learnerID)
	err := b.db.Update(func(txn *badger.Txn) error {
		entry, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("learner %s: %w", learnerID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var profile models.LearnerProfile
		if err := entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		}); err != nil {
			return err
		}

		if err := mutate(&profile); err != nil {
			return err
		}

		data, err := json.Marshal(&profile)
		if err != nil {
			return fmt.Errorf("marshal profile %s: %w", learnerID, err)
		}
		return txn.Set(key, data)
	})

	if err != nil && (errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)) {
		return err
	}
	return wrapBadgerErr(err)
}

// AppendResponse implements Repository.
func (b *Badger) AppendResponse(ctx context.Context, resp *models.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := responseKey(resp.LearnerID, resp.AnsweredAt, resp.ID)
	return wrapBadgerErr(b.setJSON(key, resp))
}

func (b *Badger) scanResponses(learnerID string, visit func(*models.Response) (bool, error)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(responseKeyPrefix + learnerID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var resp models.Response
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &resp)
			}); err != nil {
				return err
			}
			cont, err := visit(&resp)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// RecentResponses implements Repository. The inverted-timestamp key makes
// the forward scan newest-first.
func (b *Badger) RecentResponses(ctx context.Context, learnerID string, since time.Time, limit int) ([]models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.Response
	err := b.scanResponses(learnerID, func(resp *models.Response) (bool, error) {
		if resp.AnsweredAt.Before(since) {
			return false, nil
		}
		out = append(out, *resp)
		if limit > 0 && len(out) >= limit {
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, wrapBadgerErr(err)
	}
	return out, nil
}

// CorrectResponses implements Repository.
func (b *Badger) CorrectResponses(ctx context.Context, learnerID string, since, until time.Time) ([]models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []models.Response
	err := b.scanResponses(learnerID, func(resp *models.Response) (bool, error) {
		if !since.IsZero() && resp.AnsweredAt.Before(since) {
			return false, nil
		}
		if !resp.Correct {
			return true, nil
		}
		if !until.IsZero() && resp.AnsweredAt.After(until) {
			return true, nil
		}
		out = append(out, *resp)
		return true, nil
	})
	if err != nil {
		return nil, wrapBadgerErr(err)
	}
	return out, nil
}

// PutQuiz implements Repository.
func (b *Badger) PutQuiz(ctx context.Context, quiz *models.Quiz) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(quizKeyPrefix + quiz.LearnerID + ":" + quiz.ID)
	return wrapBadgerErr(b.setJSON(key, quiz))
}

var _ Repository = (*Badger)(nil)
