package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
)

type platformEvent struct {
	Event           string  `json:"event"`
	UserID          string  `json:"user_id"`
	Platform        string  `json:"platform"`
	Title           string  `json:"title"`
	DurationMinutes float64 `json:"duration_minutes"`
	ViewerCount     int64   `json:"viewer_count"`
}

// HandlePlatformEvent ingests activity events pushed by the platform
// integrations. Once the secret check passes the endpoint always answers 200:
// a failed event is logged and retried by the sender on its own schedule, and
// a non-2xx would only make providers disable the subscription.
func (h *Handlers) HandlePlatformEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.cfg.WebhookSecret != "" {
		secret := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.cfg.WebhookSecret)) != 1 {
			slog.Warn("webhook auth failed", slog.String("remote_addr", r.RemoteAddr))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var ev platformEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if ev.Event == "" || ev.UserID == "" {
		http.Error(w, "event and user_id are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)
	telemetry.CountWebhookEvent(ev.Event)

	m, err := h.store.GetMember(ctx, ev.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("webhook event for unknown member",
			slog.String("event", ev.Event), slog.String("user_id", ev.UserID))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		log.Error("webhook member lookup failed", slog.String("user_id", ev.UserID), slog.Any("err", err))
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}

	switch ev.Event {
	case "video_uploaded":
		err = h.processVideoUpload(ctx, m, ev)
	case "stream_started":
		err = h.processStreamStarted(ctx, m, ev)
	case "stream_ended":
		err = h.processStreamEnded(ctx, m, ev)
	default:
		log.Warn("unknown webhook event", slog.String("event", ev.Event))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		log.Error("webhook event processing failed",
			slog.String("event", ev.Event), slog.String("user_id", ev.UserID), slog.Any("err", err))
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) processVideoUpload(ctx context.Context, m *member.Member, ev platformEvent) error {
	m.RecordVideo(ev.Platform)
	award := h.cfg.Credits.VideoUpload
	balance := m.AddCredits(award)
	if err := h.store.SaveMember(ctx, m); err != nil {
		return err
	}
	if award > 0 {
		if err := h.store.AppendCreditEntry(ctx, store.CreditEntry{
			UserID:      m.UserID,
			Amount:      award,
			Type:        "add",
			Reason:      fmt.Sprintf("video upload on %s", ev.Platform),
			PerformedBy: "system",
			NewBalance:  balance,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) processStreamStarted(ctx context.Context, m *member.Member, ev platformEvent) error {
	if h.cfg.AlertsChannel == "" {
		return nil
	}
	msg := fmt.Sprintf("%s is live on %s.", m.Username, ev.Platform)
	if ev.Title != "" {
		msg += "\n" + ev.Title
	}
	return h.sink.Post(ctx, h.cfg.AlertsChannel, msg)
}

func (h *Handlers) processStreamEnded(ctx context.Context, m *member.Member, ev platformEvent) error {
	hours := ev.DurationMinutes / 60
	m.RecordStreamTime(ev.Platform, hours, ev.ViewerCount)
	award := int(hours * float64(h.cfg.Credits.StreamHour))
	balance := m.Credits
	if award > 0 {
		balance = m.AddCredits(award)
	}
	if err := h.store.SaveMember(ctx, m); err != nil {
		return err
	}
	if award > 0 {
		if err := h.store.AppendCreditEntry(ctx, store.CreditEntry{
			UserID:      m.UserID,
			Amount:      award,
			Type:        "add",
			Reason:      fmt.Sprintf("%.1f stream hours on %s", hours, ev.Platform),
			PerformedBy: "system",
			NewBalance:  balance,
		}); err != nil {
			return err
		}
	}
	return nil
}
