package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/event-catalog/internal/application"
	"github.com/example/event-catalog/internal/transfer"
)

type catalogService interface {
	ListEvents(ctx context.Context, criteria application.Criteria) ([]application.Event, error)
	Get(ctx context.Context, eventID string) (application.Event, error)
	Delete(ctx context.Context, eventID string) error
	EvictPast(ctx context.Context, reference time.Time) (int, error)
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) ([]application.Event, []application.TrackedEvent, error)
	ExportJSON(ctx context.Context) (application.CatalogDocument, error)
	ImportJSON(ctx context.Context, payload []byte) (application.ImportResult, error)
}

type ingestionService interface {
	SubmitManual(ctx context.Context, raw application.RawEvent) (application.Event, error)
	SearchAndIngest(ctx context.Context, region application.Region) (application.SearchResult, error)
	ImportRows(ctx context.Context, rows []application.RawEvent) (application.ImportResult, error)
}

// EventHandler serves the catalog, search and catalog transfer endpoints.
type EventHandler struct {
	catalog   catalogService
	ingestion ingestionService
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(catalog catalogService, ingestion ingestionService, now func() time.Time, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &EventHandler{catalog: catalog, ingestion: ingestion, now: now, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.catalog == nil || h.ingestion == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	criteria, vErr := criteriaFromQuery(r)
	if vErr.HasErrors() {
		h.log(r.Context(), "List", "error_kind", "validation").ErrorContext(r.Context(), "invalid list query", "error", vErr)
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "List", "region", criteria.Region, "sort", criteria.Sort)
	events, err := h.catalog.ListEvents(r.Context(), criteria)
	if err != nil {
		logger.ErrorContext(r.Context(), "event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(events)).InfoContext(r.Context(), "events listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: nonNil(events), Count: len(events)})
}

func criteriaFromQuery(r *http.Request) (application.Criteria, *application.ValidationError) {
	q := r.URL.Query()
	vErr := &application.ValidationError{}
	criteria := application.Criteria{
		Search:   strings.TrimSpace(q.Get("q")),
		Industry: strings.TrimSpace(q.Get("industry")),
	}

	var err error
	if criteria.Region, err = application.ParseRegion(q.Get("region")); err != nil {
		vErr.FieldErrors = addField(vErr.FieldErrors, "region", err)
	}
	if criteria.Benefit, err = application.ParseBenefit(q.Get("benefit")); err != nil {
		vErr.FieldErrors = addField(vErr.FieldErrors, "benefit", err)
	}
	if criteria.HorizonMonths, err = application.ParseHorizon(q.Get("horizon")); err != nil {
		vErr.FieldErrors = addField(vErr.FieldErrors, "horizon", err)
	}
	if criteria.Sort, err = application.ParseSortKey(q.Get("sort")); err != nil {
		vErr.FieldErrors = addField(vErr.FieldErrors, "sort", err)
	}
	return criteria, vErr
}

func addField(fields map[string]string, field string, err error) map[string]string {
	if fields == nil {
		fields = make(map[string]string)
	}
	fields[field] = err.Error()
	return fields
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	eventID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Get", "event_id", eventID)

	event, err := h.catalog.Get(r.Context(), eventID)
	if err != nil {
		logger.ErrorContext(r.Context(), "event lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: event})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req application.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	req.ID = ""

	logger := h.log(r.Context(), "Create")
	event, err := h.ingestion.SubmitManual(r.Context(), req)
	if err != nil {
		logger.ErrorContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: event})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req application.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "event_id", eventID)
	// Updates must target a stored event; SubmitManual would otherwise insert.
	if _, err := h.catalog.Get(r.Context(), eventID); err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	req.ID = eventID
	event, err := h.ingestion.SubmitManual(r.Context(), req)
	if err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: event})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	eventID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Delete", "event_id", eventID)
	if err := h.catalog.Delete(r.Context(), eventID); err != nil {
		logger.ErrorContext(r.Context(), "event delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Clear")
	if err := h.catalog.Clear(r.Context()); err != nil {
		logger.ErrorContext(r.Context(), "catalog clear failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "catalog cleared")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EventHandler) Evict(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Evict")
	removed, err := h.catalog.EvictPast(r.Context(), h.now())
	if err != nil {
		logger.ErrorContext(r.Context(), "eviction failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("removed", removed).InfoContext(r.Context(), "past events evicted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, evictResponse{Removed: removed})
}

func (h *EventHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req searchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.log(r.Context(), "Search", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode search request", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	region, err := application.ParseRegion(req.Region)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, fieldError("region", err))
		return
	}

	logger := h.log(r.Context(), "Search", "region", region)
	result, err := h.ingestion.SearchAndIngest(r.Context(), region)
	if err != nil {
		logger.ErrorContext(r.Context(), "search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("found", result.Found, "added", result.Added).InfoContext(r.Context(), "search ingested")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, result)
}

func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	format, err := transfer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, fieldError("format", err))
		return
	}

	logger := h.log(r.Context(), "Export", "format", format)
	var body *bytes.Buffer
	if format == transfer.FormatJSON {
		var doc application.CatalogDocument
		if doc, err = h.catalog.ExportJSON(r.Context()); err == nil {
			body, err = encodeJSONDocument(doc)
		}
	} else {
		var (
			events  []application.Event
			tracked []application.TrackedEvent
		)
		if events, tracked, err = h.catalog.Snapshot(r.Context()); err == nil {
			body, err = encodeTable(format, transfer.CatalogTable(events, tracked))
		}
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "catalog export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("bytes", body.Len()).InfoContext(r.Context(), "catalog exported")
	h.responder.writeFile(r.Context(), w, format.ContentType(), exportFilename("hosted-buyer-events", format, h.now()), body)
}

func (h *EventHandler) Import(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	format, err := requestFormat(r)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, fieldError("format", err))
		return
	}
	logger := h.log(r.Context(), "Import", "format", format)

	body, err := readImportBody(w, r)
	if err != nil {
		logger.ErrorContext(r.Context(), "catalog import failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var result application.ImportResult
	if format == transfer.FormatJSON {
		result, err = h.catalog.ImportJSON(r.Context(), body)
	} else {
		var (
			table transfer.Table
			rows  []application.RawEvent
		)
		if table, err = transfer.ReadTable(bytes.NewReader(body), format); err == nil {
			if rows, err = transfer.CatalogRows(table, format); err == nil {
				result, err = h.ingestion.ImportRows(r.Context(), rows)
			}
		}
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "catalog import failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("accepted", result.Accepted, "skipped", result.Skipped).InfoContext(r.Context(), "catalog imported")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, result)
}

type searchRequest struct {
	Region string `json:"region"`
}

type eventResponse struct {
	Event application.Event `json:"event"`
}

type listEventsResponse struct {
	Events []application.Event `json:"events"`
	Count  int                 `json:"count"`
}

type evictResponse struct {
	Removed int `json:"removed"`
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
