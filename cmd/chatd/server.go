package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/stupiduntilnot/docchat/internal/handler"
	"github.com/stupiduntilnot/docchat/internal/metrics"
)

// invoker is the request handler seen by the HTTP layer.
type invoker interface {
	Handle(ctx context.Context, req handler.Request) (handler.Response, error)
}

// sessionResetter forgets a user's conversation history.
type sessionResetter interface {
	Reset(ctx context.Context, userID string) error
}

type server struct {
	handler  invoker
	sessions sessionResetter
	limiter  *limiter.Limiter
	logger   logrus.FieldLogger
}

func newRouter(s *server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/invoke", s.invoke).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{user}", s.resetSession).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (s *server) invoke(w http.ResponseWriter, r *http.Request) {
	var req handler.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user-id is required")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	if s.limiter != nil {
		lctx, err := s.limiter.Get(r.Context(), req.UserID)
		if err != nil {
			s.logger.WithError(err).Warn("rate limiter unavailable")
		} else {
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				metrics.RateLimited.Inc()
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
	}

	resp, err := s.handler.Handle(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("X-Request-Id", req.RequestID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) resetSession(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, "sessions are not managed by this server")
		return
	}
	if err := s.sessions.Reset(r.Context(), userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("session reset failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.WithField("user_id", userID).Info("session reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
