package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/event-catalog/internal/application"
)

type insightsService interface {
	Summary(ctx context.Context) (application.Insights, error)
}

type InsightsHandler struct {
	service   insightsService
	responder responder
	logger    *slog.Logger
}

func NewInsightsHandler(service insightsService, logger *slog.Logger) *InsightsHandler {
	base := defaultLogger(logger)
	return &InsightsHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *InsightsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "InsightsHandler", "Summary")
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "insights failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, summary)
}
