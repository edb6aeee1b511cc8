// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/adaptix-learn/adaptix/internal/engine"
	"github.com/adaptix-learn/adaptix/internal/models"
	"github.com/adaptix-learn/adaptix/internal/repository"
)

// maxBodyBytes caps request bodies; assessment payloads are the largest
// legitimate input at a few hundred answers.
const maxBodyBytes = 1 << 20

var validate = validator.New()

type handlers struct {
	engine *engine.Engine
	repo   repository.Repository
	log    zerolog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the engine/repository error taxonomy onto HTTP statuses:
// not-found 404, precondition 400, conflict and exhausted catalog 409,
// transient storage 503, deadline 504.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, repository.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, engine.ErrNoCandidates):
		status, code = http.StatusConflict, "no_candidates"
	case errors.Is(err, repository.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "deadline_exceeded"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type assessmentRequest struct {
	LearnerID string                    `json:"learner_id" validate:"required"`
	Answers   []engine.AssessmentAnswer `json:"answers" validate:"required,min=1,dive"`
}

func (h *handlers) processAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	profile, err := h.engine.ProcessAssessment(r.Context(), req.LearnerID, req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

type responseRequest struct {
	LearnerID      string `json:"learner_id" validate:"required"`
	ItemID         string `json:"item_id" validate:"required"`
	Correct        bool   `json:"correct"`
	ElapsedSeconds int    `json:"elapsed_seconds" validate:"gte=0"`
}

func (h *handlers) recordResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	result, err := h.engine.RecordResponse(r.Context(), req.LearnerID, req.ItemID, req.Correct, req.ElapsedSeconds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type quizRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`

	// Seed pins the composition RNG; 0 lets the server choose.
	Seed int64 `json:"seed"`
}

type quizResponse struct {
	Quiz      *models.Quiz `json:"quiz"`
	ShortQuiz bool         `json:"short_quiz"`
	Warning   string       `json:"warning,omitempty"`
}

func (h *handlers) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	result, err := h.engine.GenerateQuiz(r.Context(), req.LearnerID, req.Seed)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := quizResponse{Quiz: result.Quiz, ShortQuiz: result.ShortQuiz}
	if result.ShortQuiz {
		resp.Warning = "short_quiz: item catalog could not fill every slot"
	}
	writeJSON(w, http.StatusOK, resp)
}

type itemRequest struct {
	ID    string                `json:"id" validate:"required"`
	Topic string                `json:"topic" validate:"required"`
	Type  models.ItemType       `json:"type" validate:"required,oneof=single_choice numeric"`
	Tier  models.DifficultyTier `json:"tier" validate:"required,oneof=easy medium hard"`
	IRT   models.IRTParameters  `json:"irt"`
}

func (h *handlers) putItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	item, err := models.NewItem(req.ID, req.Topic, req.Type, req.Tier, req.IRT)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}
	if err := h.repo.PutItem(r.Context(), item); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	learnerID := chi.URLParam(r, "learnerID")
	profile, err := h.repo.GetProfile(r.Context(), learnerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
