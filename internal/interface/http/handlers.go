package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tabletop-league/ranking-bot/internal/application/command"
	"github.com/tabletop-league/ranking-bot/internal/application/query"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Ranking Bot API",
		"version": apiVersion,
		"endpoints": map[string]string{
			"health":   "/health",
			"matches":  "/api/v1/matches",
			"rankings": "/api/v1/rankings",
			"standing": "/api/v1/players/{id}/standing",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// matchRequest is the body of POST /matches and PUT /matches/{id}.
type matchRequest struct {
	Game     string `json:"game"`
	Duration string `json:"duration"`
	// Participants в порядке мест, первый - победитель.
	Participants []string `json:"participants"`
	// Mentions - альтернатива Participants: текст с <@id>.
	Mentions   string    `json:"mentions"`
	PlayedAt   time.Time `json:"played_at"`
	RecordedBy string    `json:"recorded_by"`
}

// handleRegisterMatch handles POST /api/v1/matches
func (s *Server) handleRegisterMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterMatchHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Match registration not configured")
		return
	}

	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.RegisterMatchHandler.Handle(r.Context(), command.RegisterMatchCommand{
		Game:          req.Game,
		Duration:      req.Duration,
		Participants:  req.Participants,
		Mentions:      req.Mentions,
		PlayedAt:      req.PlayedAt,
		RecordedBy:    req.RecordedBy,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/matches/"+result.Match.ID)
	writeJSON(w, r, http.StatusCreated, result)
}

// handleListMatches handles GET /api/v1/matches
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListMatchesHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Match listing not configured")
		return
	}

	limit, err := getQueryParamInt(r, "limit", query.DefaultLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	q := query.ListMatchesQuery{Game: r.URL.Query().Get("game"), Limit: limit}
	result, err := s.deps.ListMatchesHandler.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result.Matches, &ResponseMeta{
		TotalCount: result.Total,
		Limit:      q.Limit,
	})
}

// handleGetMatch handles GET /api/v1/matches/{id}
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListMatchesHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Match listing not configured")
		return
	}

	dto, err := s.deps.ListMatchesHandler.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleCorrectMatch handles PUT /api/v1/matches/{id}
func (s *Server) handleCorrectMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.CorrectMatchHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Match correction not configured")
		return
	}

	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.CorrectMatchHandler.Handle(r.Context(), command.CorrectMatchCommand{
		MatchID:       chi.URLParam(r, "id"),
		Game:          req.Game,
		Duration:      req.Duration,
		Participants:  req.Participants,
		Mentions:      req.Mentions,
		CorrectedBy:   req.RecordedBy,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/matches/"+result.Match.ID)
	writeJSON(w, r, http.StatusOK, result)
}

// handleDeleteMatch handles DELETE /api/v1/matches/{id}
func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.DeleteMatchHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Match deletion not configured")
		return
	}

	snapshot, err := s.deps.DeleteMatchHandler.Handle(r.Context(), command.DeleteMatchCommand{
		MatchID:       chi.URLParam(r, "id"),
		DeletedBy:     r.URL.Query().Get("by"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snapshot)
}

// handleResetHistory handles DELETE /api/v1/matches?game=&confirm=true
func (s *Server) handleResetHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.ResetHistoryHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "History reset not configured")
		return
	}

	result, err := s.deps.ResetHistoryHandler.Handle(r.Context(), command.ResetHistoryCommand{
		Game:          r.URL.Query().Get("game"),
		Confirm:       getQueryParamBool(r, "confirm"),
		RequestedBy:   r.URL.Query().Get("by"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Warn("history reset via api",
		logger.Game(result.Game),
		logger.Int("removed", result.Removed),
	)
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRankings handles GET /api/v1/rankings
func (s *Server) handleGetRankings(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	limit, err := getQueryParamInt(r, "limit", query.DefaultLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{
		Window: r.URL.Query().Get("window"),
		Game:   strings.TrimSpace(r.URL.Query().Get("game")),
		Limit:  limit,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		TotalCount: result.TotalPlayers,
		Limit:      len(result.Entries),
		FromCache:  result.FromCache,
	})
}

// handleGetPlayerStanding handles GET /api/v1/players/{id}/standing
func (s *Server) handleGetPlayerStanding(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetPlayerStandingHandler == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Standing handler not configured")
		return
	}

	result, err := s.deps.GetPlayerStandingHandler.Handle(r.Context(), query.GetPlayerStandingQuery{
		PlayerID: chi.URLParam(r, "id"),
		Window:   r.URL.Query().Get("window"),
		Game:     strings.TrimSpace(r.URL.Query().Get("game")),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
