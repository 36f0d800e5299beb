package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/event-catalog/internal/application"
)

type trackerService interface {
	ToggleInterest(ctx context.Context, eventID string) (bool, error)
	SetStatus(ctx context.Context, eventID string, status application.Status) (application.TrackedEvent, error)
	ListByStatus(ctx context.Context, status *application.Status) ([]application.TrackedEvent, error)
}

type TrackerHandler struct {
	service   trackerService
	responder responder
	logger    *slog.Logger
}

func NewTrackerHandler(service trackerService, logger *slog.Logger) *TrackerHandler {
	base := defaultLogger(logger)
	return &TrackerHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TrackerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TrackerHandler", operation, attrs...)
}

func (h *TrackerHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var filter *application.Status
	if value := r.URL.Query().Get("status"); value != "" && !strings.EqualFold(value, "all") {
		status, err := application.ParseStatus(value)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, fieldError("status", err))
			return
		}
		filter = &status
	}

	logger := h.log(r.Context(), "List")
	entries, err := h.service.ListByStatus(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "tracked list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(entries)).InfoContext(r.Context(), "tracked events listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listTrackedResponse{Tracked: nonNil(entries), Count: len(entries)})
}

func (h *TrackerHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Toggle", "event_id", eventID)
	tracked, err := h.service.ToggleInterest(r.Context(), eventID)
	if err != nil {
		logger.ErrorContext(r.Context(), "toggle failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("tracked", tracked).InfoContext(r.Context(), "interest toggled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toggleResponse{EventID: eventID, Tracked: tracked})
}

func (h *TrackerHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetStatus", "event_id", eventID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode status request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	status, err := application.ParseStatus(req.Status)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, fieldError("status", err))
		return
	}

	logger := h.log(r.Context(), "SetStatus", "event_id", eventID, "status", status)
	entry, err := h.service.SetStatus(r.Context(), eventID, status)
	if err != nil {
		logger.ErrorContext(r.Context(), "status change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "status changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, trackedResponse{Tracked: entry})
}

type statusRequest struct {
	Status string `json:"status"`
}

type toggleResponse struct {
	EventID string `json:"eventId"`
	Tracked bool   `json:"tracked"`
}

type trackedResponse struct {
	Tracked application.TrackedEvent `json:"tracked"`
}

type listTrackedResponse struct {
	Tracked []application.TrackedEvent `json:"tracked"`
	Count   int                        `json:"count"`
}
