package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/notify"
	"offer-config-engine/internal/storage"
)

type Notifier interface {
	Send(ctx context.Context, m notify.Message, client storage.Client) (notify.Result, error)
	SendBulk(ctx context.Context, req notify.BulkRequest, client storage.Client) (notify.BulkResult, error)
	Stats(ctx context.Context) (notify.Stats, error)
}

type NotificationHandler struct {
	notifier Notifier
}

func NewNotificationHandler(n Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: n}
}

type sendResponse struct {
	OK             bool   `json:"ok"`
	Message        string `json:"message"`
	NotificationID string `json:"notification_id"`
}

type bulkResponse struct {
	OK      bool                 `json:"ok"`
	Message string               `json:"message"`
	Results []notify.TokenResult `json:"results"`
	Summary notify.BulkSummary   `json:"summary"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidPayload, err, "Invalid JSON payload")
	}
	return nil
}

// Send handles POST /api/v1/notifications/send.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var m notify.Message
	if err := decodeJSON(w, r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.notifier.Send(r.Context(), m, clientOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !res.Delivered {
		reason := res.Reason
		if reason == "" {
			reason = "Failed to send notification"
		}
		writeMessage(w, http.StatusBadGateway, reason)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{
		OK:             true,
		Message:        "Notification sent successfully",
		NotificationID: res.RelayID,
	})
}

// Bulk handles POST /api/v1/notifications/bulk.
func (h *NotificationHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req notify.BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.notifier.SendBulk(r.Context(), req, clientOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{
		OK:      true,
		Message: fmt.Sprintf("Notifications sent: %d successful, %d failed", out.Summary.Successful, out.Summary.Failed),
		Results: out.Results,
		Summary: out.Summary,
	})
}

// Stats handles GET /api/v1/notifications/stats.
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.notifier.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
