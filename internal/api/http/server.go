// Package httpapi exposes the administrative panel: session inspection
// and the moderation verbs (duration edits, forced resolution, lobby
// reset, role re-delivery, deletion). Gameplay never flows through HTTP;
// this surface exists for operators.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mafia-engine/mafia-engine/internal/application/phase"
	"github.com/mafia-engine/mafia-engine/internal/application/registry"
	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	phaseSvc  *phase.Service
	tokenHash string
}

func NewServer(phaseSvc *phase.Service, tokenHash string) *Server {
	return &Server{phaseSvc: phaseSvc, tokenHash: tokenHash}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Get("/{sessionId}", s.getSession)
			r.Patch("/{sessionId}/durations", s.setDurations)
			r.Post("/{sessionId}/resolve-night", s.resolveNight)
			r.Post("/{sessionId}/reset", s.resetSession)
			r.Post("/{sessionId}/players/{playerId}/resend-role", s.resendRole)
			r.Delete("/{sessionId}", s.deleteSession)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseInt64Param(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

// Response shapes

type playerView struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Alive    bool   `json:"alive"`
	DM       bool   `json:"dm_reachable"`
}

type sessionView struct {
	SessionID       int64        `json:"session_id"`
	HostID          int64        `json:"host_id"`
	Phase           string       `json:"phase"`
	NightSeconds    int          `json:"night_seconds"`
	DaySeconds      int          `json:"day_seconds"`
	ReminderSeconds int          `json:"reminder_seconds"`
	PhaseDeadline   *time.Time   `json:"phase_deadline,omitempty"`
	Players         []playerView `json:"players"`
	PendingActions  int          `json:"pending_actions"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func viewOf(g *game.Session) sessionView {
	v := sessionView{
		SessionID:       g.ID,
		HostID:          g.HostID,
		Phase:           string(g.Phase),
		NightSeconds:    g.NightSeconds,
		DaySeconds:      g.DaySeconds,
		ReminderSeconds: g.ReminderSeconds,
		PhaseDeadline:   g.PhaseDeadline,
		PendingActions:  len(g.Pending),
		UpdatedAt:       g.UpdatedAt,
	}
	for _, p := range g.Players {
		v.Players = append(v.Players, playerView{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     string(p.Role),
			Alive:    p.Alive,
			DM:       p.DMReachable,
		})
	}
	return v
}

// Handlers

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.phaseSvc.SessionIDs()
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	g, err := s.phaseSvc.Status(r.Context(), id)
	if err != nil {
		if registry.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, viewOf(g))
}

func (s *Server) setDurations(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	var req struct {
		NightMinutes *int `json:"night_minutes,omitempty"`
		DayMinutes   *int `json:"day_minutes,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.NightMinutes == nil && req.DayMinutes == nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "night_minutes or day_minutes required")
		return
	}
	var night, day *int
	if req.NightMinutes != nil {
		sec := *req.NightMinutes * 60
		night = &sec
	}
	if req.DayMinutes != nil {
		sec := *req.DayMinutes * 60
		day = &sec
	}
	if err := s.phaseSvc.SetDurations(r.Context(), id, night, day); err != nil {
		if registry.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "status": "UPDATED"})
}

func (s *Server) resolveNight(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	if err := s.phaseSvc.EndNight(r.Context(), id); err != nil {
		if registry.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "status": "RESOLVED"})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	if err := s.phaseSvc.ResetToLobby(r.Context(), id); err != nil {
		if registry.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "status": "LOBBY"})
}

func (s *Server) resendRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	playerID, err := parseInt64Param(r, "playerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid playerId")
		return
	}
	if err := s.phaseSvc.ResendRole(r.Context(), id, playerID); err != nil {
		if registry.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "player_id": playerID, "status": "SENT"})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "sessionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid sessionId")
		return
	}
	if err := s.phaseSvc.AdminRemoveSession(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "status": "DELETED"})
}
