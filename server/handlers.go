package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/dispatch"
	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
)

// Handlers bundles the dependencies shared by every HTTP handler.
type Handlers struct {
	cfg        *config.Config
	store      store.Store
	dispatcher *dispatch.Dispatcher
	sink       notify.Sink
}

func NewHandlers(cfg *config.Config, st store.Store, d *dispatch.Dispatcher, sink notify.Sink) *Handlers {
	return &Handlers{cfg: cfg, store: st, dispatcher: d, sink: sink}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("err", err))
	}
}

// HandleStreamersList returns every streamer profile summary, optionally
// filtered by ?status=.
func (h *Handlers) HandleStreamersList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	members, err := h.store.GetAllMembers(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list streamers", slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	status := r.URL.Query().Get("status")
	summaries := make([]any, 0, len(members))
	for _, m := range members {
		if status != "" && m.Status != status {
			continue
		}
		summaries = append(summaries, m.Summarize())
	}
	writeJSON(w, http.StatusOK, map[string]any{"streamers": summaries, "count": len(summaries)})
}

// HandleStreamersDispatcher routes /api/streamers/{id} and
// /api/streamers/{id}/stats.
func (h *Handlers) HandleStreamersDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/streamers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleStreamerGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "stats":
		h.handleStreamerStats(w, r, parts[0])
	default:
		http.Error(w, "Not Found", http.StatusNotFound)
	}
}

func (h *Handlers) handleStreamerGet(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	m, err := h.store.GetMember(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("get streamer", slog.String("user_id", userID), slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type statsRequest struct {
	Platform    string  `json:"platform"`
	Videos      int     `json:"videos"`
	StreamHours float64 `json:"stream_hours"`
	Views       int64   `json:"views"`
	Engagement  int64   `json:"engagement"`
}

// handleStreamerStats records manual activity stats against a profile, for
// backfills and platforms without webhook delivery.
func (h *Handlers) handleStreamerStats(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req statsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Platform == "" {
		http.Error(w, "platform is required", http.StatusBadRequest)
		return
	}
	if _, ok := h.cfg.PlatformRules[req.Platform]; !ok {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return
	}

	m, err := h.store.GetMember(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("get streamer", slog.String("user_id", userID), slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	for i := 0; i < req.Videos; i++ {
		m.RecordVideo(req.Platform)
	}
	if req.StreamHours > 0 || req.Views > 0 {
		m.RecordStreamTime(req.Platform, req.StreamHours, req.Views)
	}
	if req.Engagement > 0 {
		m.RecordEngagement(req.Platform, req.Engagement)
	}
	if err := h.store.SaveMember(r.Context(), m); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("save streamer", slog.String("user_id", userID), slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, m.Summarize())
}

// HandleTicketsList returns tickets filtered by ?status= or ?user=.
func (h *Handlers) HandleTicketsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		tickets any
		err     error
	)
	switch {
	case r.URL.Query().Get("status") != "":
		tickets, err = h.store.TicketsByStatus(r.Context(), r.URL.Query().Get("status"))
	case r.URL.Query().Get("user") != "":
		tickets, err = h.store.TicketsByUser(r.Context(), r.URL.Query().Get("user"))
	default:
		tickets, err = h.store.GetAllTickets(r.Context())
	}
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list tickets", slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

type commandRequest struct {
	Name        string            `json:"name"`
	Sub         string            `json:"sub"`
	Args        map[string]string `json:"args"`
	CallerID    string            `json:"caller_id"`
	CallerRoles []string          `json:"caller_roles"`
}

// HandleCommand executes a parsed command on behalf of the chat gateway and
// returns the user-visible response.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.CallerID == "" {
		http.Error(w, "name and caller_id are required", http.StatusBadRequest)
		return
	}

	resp := h.dispatcher.Dispatch(r.Context(), dispatch.Command{
		Name:        req.Name,
		Sub:         req.Sub,
		Args:        req.Args,
		CallerID:    req.CallerID,
		CallerRoles: req.CallerRoles,
	})
	writeJSON(w, http.StatusOK, map[string]any{"text": resp.Text, "ephemeral": resp.Ephemeral})
}
