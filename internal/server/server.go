// Package server exposes the tracker over HTTP and keeps the badge summary
// warm with a periodic refresh loop.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/leetgoal/internal/goals"
	"example.com/leetgoal/internal/leetcode"
	"example.com/leetgoal/internal/tracker"
)

// The two canned user-facing failure messages. Which one a caller sees is a
// total mapping over the typed upstream errors, not a guess from error text.
const (
	loginErrorMessage   = "Please log in to LeetCode and refresh the configured session cookies, then retry."
	genericErrorMessage = "Could not fetch submissions. Try again in a moment."
)

// statsBuilder is the slice of the tracker the server needs.
type statsBuilder interface {
	Build(ctx context.Context, username string) (*tracker.Result, error)
}

// usernameResolver resolves the logged-in upstream identity.
type usernameResolver interface {
	CurrentUsername(ctx context.Context) (string, error)
}

// KV is the record store slice the server needs for goal and badge records.
type KV interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// Server wires the HTTP surface around the build engine.
type Server struct {
	builder  statsBuilder
	resolver usernameResolver
	kv       KV
	logger   *slog.Logger

	// Configured username; when empty the upstream session decides.
	defaultUsername string
}

// NewServer creates a server with the required collaborators wired in.
func NewServer(builder statsBuilder, resolver usernameResolver, kv KV, defaultUsername string, logger *slog.Logger) *Server {
	return &Server{
		builder:         builder,
		resolver:        resolver,
		kv:              kv,
		defaultUsername: defaultUsername,
		logger:          logger,
	}
}

// Router configures all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/stats/{username}", s.handleStats)
		r.Get("/goals", s.handleGetGoals)
		r.Put("/goals", s.handlePutGoals)
		r.Get("/progress", s.handleProgress)
		r.Get("/badge", s.handleBadge)
	})

	return r
}

type loginInfo struct {
	LoggedIn bool   `json:"loggedIn"`
	Username string `json:"username"`
}

type statsResponse struct {
	OK bool `json:"ok"`
	*tracker.Result
	Login loginInfo `json:"login"`
}

type errorResponse struct {
	OK      bool      `json:"ok"`
	Error   string    `json:"error"`
	Details string    `json:"details,omitempty"`
	Login   loginInfo `json:"login"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	username, login, err := s.resolveUsername(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   loginErrorMessage,
			Details: err.Error(),
			Login:   login,
		})
		return
	}

	result, err := s.builder.Build(r.Context(), username)
	if err != nil {
		status, message := classifyBuildError(err)
		writeJSON(w, status, errorResponse{
			Error:   message,
			Details: err.Error(),
			Login:   login,
		})
		return
	}

	s.saveBadgeRecord(r.Context(), result)
	writeJSON(w, http.StatusOK, statsResponse{OK: true, Result: result, Login: login})
}

// resolveUsername takes the URL parameter, then the configured username,
// then the upstream session identity.
func (s *Server) resolveUsername(r *http.Request) (string, loginInfo, error) {
	if username := chi.URLParam(r, "username"); username != "" {
		return username, loginInfo{LoggedIn: true, Username: username}, nil
	}
	if s.defaultUsername != "" {
		return s.defaultUsername, loginInfo{LoggedIn: true, Username: s.defaultUsername}, nil
	}
	username, err := s.resolver.CurrentUsername(r.Context())
	if err != nil {
		return "", loginInfo{}, err
	}
	return username, loginInfo{LoggedIn: true, Username: username}, nil
}

// classifyBuildError maps a build failure onto one of the two canned user
// messages plus an HTTP status.
func classifyBuildError(err error) (int, string) {
	if leetcode.IsAuthError(err) {
		return http.StatusUnauthorized, loginErrorMessage
	}
	return http.StatusBadGateway, genericErrorMessage
}

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	stored, err := goals.Load(r.Context(), s.kv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load goals: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handlePutGoals(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Daily   json.RawMessage `json:"daily"`
		Weekly  json.RawMessage `json:"weekly"`
		Monthly json.RawMessage `json:"monthly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: %v", err)
		return
	}

	daily, err := goals.ParseField("daily", "Daily goal", rawText(payload.Daily), goals.MaxDaily)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}
	weekly, err := goals.ParseField("weekly", "Weekly goal", rawText(payload.Weekly), goals.MaxWeekly)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}
	monthly, err := goals.ParseField("monthly", "Monthly goal", rawText(payload.Monthly), goals.MaxMonthly)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%s", err)
		return
	}

	updated := goals.Goals{Daily: daily, Weekly: weekly, Monthly: monthly}
	if err := goals.Save(r.Context(), s.kv, updated); err != nil {
		var validationErr *goals.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, "%s", validationErr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "save goals: %v", err)
		return
	}

	s.logger.Info("goals updated", "daily", updated.Daily, "weekly", updated.Weekly, "monthly", updated.Monthly)
	writeJSON(w, http.StatusOK, updated)
}

// rawText renders a JSON scalar as goal input text: numbers and quoted
// strings both come through as their digits, null/absent as blank.
func rawText(raw json.RawMessage) string {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "null" {
		return ""
	}
	return text
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	username, login, err := s.resolveUsername(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   loginErrorMessage,
			Details: err.Error(),
			Login:   login,
		})
		return
	}
	result, err := s.builder.Build(r.Context(), username)
	if err != nil {
		status, message := classifyBuildError(err)
		writeJSON(w, status, errorResponse{Error: message, Details: err.Error(), Login: login})
		return
	}
	s.saveBadgeRecord(r.Context(), result)

	stored, err := goals.Load(r.Context(), s.kv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load goals: %v", err)
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"login":   login,
		"goals":   stored,
		"warning": result.Warning,
		"today":   goals.ProgressFor(goals.PeriodDaily, result.Today.Count, stored.Daily, now),
		"week":    goals.ProgressFor(goals.PeriodWeekly, result.Week.Count, stored.Weekly, now),
		"month":   goals.ProgressFor(goals.PeriodMonthly, result.Month.Count, stored.Monthly, now),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": strings.TrimSpace(fmt.Sprintf(format, args...)),
			"status":  status,
		},
	})
}

// StartAutoRefresh begins a ticker-driven loop that rebuilds stats every
// interval so the badge summary stays warm between popup opens.
func (s *Server) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("auto refresh loop started", "interval", interval)
		s.refreshOnce(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("auto refresh loop stopped", "reason", ctx.Err())
				return
			case <-ticker.C:
				s.refreshOnce(ctx)
			}
		}
	}()
}

func (s *Server) refreshOnce(ctx context.Context) {
	username := s.defaultUsername
	if username == "" {
		resolved, err := s.resolver.CurrentUsername(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("auto refresh could not resolve username", "error", err)
			}
			return
		}
		username = resolved
	}

	result, err := s.builder.Build(ctx, username)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("auto refresh build failed", "username", username, "error", err)
		}
		return
	}
	s.saveBadgeRecord(ctx, result)
	s.logger.Info("auto refresh completed",
		"username", username,
		"today", result.Today.Count,
		"week", result.Week.Count,
		"month", result.Month.Count,
	)
}
