// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/adaptix-learn/adaptix/internal/logging"
	"github.com/adaptix-learn/adaptix/internal/metrics"
)

// correlationMiddleware copies chi's request id onto the logging context
// so engine log lines can be joined to the originating request.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(logging.WithCorrelationID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one structured line per request and feeds the HTTP
// metrics.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := r.Method + " " + r.URL.Path
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(ww.Status()/100*100)).Inc()
			metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", elapsed).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
