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

type ledgerService interface {
	AddIfAbsent(ctx context.Context, event application.Event) (application.SavedRecord, bool, error)
	BulkAdd(ctx context.Context, events []application.Event) (int, int, error)
	SubmitCustomEvent(ctx context.Context, raw application.RawEvent) (application.SavedRecord, bool, error)
	CustomEvents(ctx context.Context) ([]application.CustomEvent, error)
	Get(ctx context.Context, recordID string) (application.SavedRecord, error)
	Sorted(ctx context.Context, key application.LedgerSortKey) ([]application.SavedRecord, error)
	UpdateNotes(ctx context.Context, recordID, notes string) (application.SavedRecord, error)
	UpdateRecord(ctx context.Context, recordID string, patch application.RecordPatch) (application.SavedRecord, error)
	Delete(ctx context.Context, recordID string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (application.LedgerStats, error)
	ExportJSON(ctx context.Context) (application.LedgerDocument, error)
	ImportJSON(ctx context.Context, payload []byte) (application.ImportResult, error)
	ImportRows(ctx context.Context, rows []application.RawEvent) (application.ImportResult, error)
	Today() application.Date
}

type eventLookup interface {
	Get(ctx context.Context, eventID string) (application.Event, error)
	ListEvents(ctx context.Context, criteria application.Criteria) ([]application.Event, error)
}

// SavedHandler serves the saved records ledger.
type SavedHandler struct {
	ledger    ledgerService
	events    eventLookup
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewSavedHandler(ledger ledgerService, events eventLookup, now func() time.Time, logger *slog.Logger) *SavedHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &SavedHandler{ledger: ledger, events: events, now: now, responder: newResponder(base), logger: base}
}

func (h *SavedHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SavedHandler", operation, attrs...)
}

func (h *SavedHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.ledger == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *SavedHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	key, err := application.ParseLedgerSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, fieldError("sort", err))
		return
	}

	logger := h.log(r.Context(), "List", "sort", key)
	records, err := h.ledger.Sorted(r.Context(), key)
	if err != nil {
		logger.ErrorContext(r.Context(), "saved list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(records)).InfoContext(r.Context(), "saved records listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSavedResponse{Records: toSavedDTOs(records, h.ledger.Today()), Count: len(records)})
}

func (h *SavedHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	recordID := strings.TrimSpace(r.PathValue("id"))
	record, err := h.ledger.Get(r.Context(), recordID)
	if err != nil {
		h.log(r.Context(), "Get", "record_id", recordID).ErrorContext(r.Context(), "saved record lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, savedResponse{Record: toSavedDTO(record, h.ledger.Today())})
}

// Save copies a catalog event into the ledger. Saving an event that is
// already archived returns the existing record with 200.
func (h *SavedHandler) Save(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Save", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode save request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		h.responder.handleServiceError(r.Context(), w, fieldError("eventId", errMissingID))
		return
	}

	logger := h.log(r.Context(), "Save", "event_id", req.EventID)
	event, err := h.events.Get(r.Context(), req.EventID)
	if err != nil {
		logger.ErrorContext(r.Context(), "save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	record, inserted, err := h.ledger.AddIfAbsent(r.Context(), event)
	if err != nil {
		logger.ErrorContext(r.Context(), "save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	logger.With("record_id", record.ID, "inserted", inserted).InfoContext(r.Context(), "event saved to ledger")
	h.responder.writeJSON(r.Context(), w, status, savedResponse{Record: toSavedDTO(record, h.ledger.Today()), Inserted: inserted})
}

// SaveAll copies every catalog event matching the list query into the
// ledger, skipping ones already saved.
func (h *SavedHandler) SaveAll(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	criteria, vErr := criteriaFromQuery(r)
	if vErr.HasErrors() {
		h.log(r.Context(), "SaveAll", "error_kind", "validation").ErrorContext(r.Context(), "invalid bulk save query", "error", vErr)
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "SaveAll", "region", criteria.Region)
	events, err := h.events.ListEvents(r.Context(), criteria)
	if err != nil {
		logger.ErrorContext(r.Context(), "bulk save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	inserted, duplicates, err := h.ledger.BulkAdd(r.Context(), events)
	if err != nil {
		logger.ErrorContext(r.Context(), "bulk save failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("inserted", inserted, "duplicates", duplicates).InfoContext(r.Context(), "events saved to ledger")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bulkSaveResponse{Inserted: inserted, Duplicates: duplicates})
}

func (h *SavedHandler) SubmitCustom(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req application.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SubmitCustom", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode custom event", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SubmitCustom")
	record, inserted, err := h.ledger.SubmitCustomEvent(r.Context(), req)
	if err != nil {
		logger.ErrorContext(r.Context(), "custom event failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	logger.With("record_id", record.ID, "inserted", inserted).InfoContext(r.Context(), "custom event submitted")
	h.responder.writeJSON(r.Context(), w, status, savedResponse{Record: toSavedDTO(record, h.ledger.Today()), Inserted: inserted})
}

func (h *SavedHandler) ListCustom(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	custom, err := h.ledger.CustomEvents(r.Context())
	if err != nil {
		h.log(r.Context(), "ListCustom").ErrorContext(r.Context(), "custom event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCustomResponse{CustomEvents: nonNil(custom)})
}

func (h *SavedHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	recordID := strings.TrimSpace(r.PathValue("id"))
	var req recordPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "record_id", recordID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode record update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "record_id", recordID)
	record, err := h.ledger.UpdateRecord(r.Context(), recordID, req.toPatch())
	if err != nil {
		logger.ErrorContext(r.Context(), "record update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "record updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, savedResponse{Record: toSavedDTO(record, h.ledger.Today())})
}

func (h *SavedHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	recordID := strings.TrimSpace(r.PathValue("id"))
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateNotes", "record_id", recordID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode notes", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateNotes", "record_id", recordID)
	record, err := h.ledger.UpdateNotes(r.Context(), recordID, req.Notes)
	if err != nil {
		logger.ErrorContext(r.Context(), "notes update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "notes updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, savedResponse{Record: toSavedDTO(record, h.ledger.Today())})
}

func (h *SavedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	recordID := strings.TrimSpace(r.PathValue("id"))
	logger := h.log(r.Context(), "Delete", "record_id", recordID)
	if err := h.ledger.Delete(r.Context(), recordID); err != nil {
		logger.ErrorContext(r.Context(), "record delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "record deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SavedHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Clear")
	if err := h.ledger.Clear(r.Context()); err != nil {
		logger.ErrorContext(r.Context(), "ledger clear failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "ledger cleared")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SavedHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.log(r.Context(), "Stats").ErrorContext(r.Context(), "ledger stats failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (h *SavedHandler) Export(w http.ResponseWriter, r *http.Request) {
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
		var doc application.LedgerDocument
		if doc, err = h.ledger.ExportJSON(r.Context()); err == nil {
			body, err = encodeJSONDocument(doc)
		}
	} else {
		var records []application.SavedRecord
		if records, err = h.ledger.Sorted(r.Context(), application.LedgerSortDate); err == nil {
			body, err = encodeTable(format, transfer.LedgerTable(records, h.ledger.Today()))
		}
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "ledger export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("bytes", body.Len()).InfoContext(r.Context(), "ledger exported")
	h.responder.writeFile(r.Context(), w, format.ContentType(), exportFilename("saved-events", format, h.now()), body)
}

func (h *SavedHandler) Import(w http.ResponseWriter, r *http.Request) {
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
		logger.ErrorContext(r.Context(), "ledger import failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var result application.ImportResult
	if format == transfer.FormatJSON {
		result, err = h.ledger.ImportJSON(r.Context(), body)
	} else {
		var (
			table transfer.Table
			rows  []application.RawEvent
		)
		if table, err = transfer.ReadTable(bytes.NewReader(body), format); err == nil {
			if rows, err = transfer.LedgerRows(table, format); err == nil {
				result, err = h.ledger.ImportRows(r.Context(), rows)
			}
		}
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "ledger import failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("accepted", result.Accepted, "skipped", result.Skipped).InfoContext(r.Context(), "ledger imported")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, result)
}

type saveRequest struct {
	EventID string `json:"eventId"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type recordPatchRequest struct {
	Name            *string `json:"name"`
	Country         *string `json:"country"`
	City            *string `json:"city"`
	Date            *string `json:"date"`
	Deadline        *string `json:"deadline"`
	Industry        *string `json:"industry"`
	Organizer       *string `json:"organizer"`
	Website         *string `json:"website"`
	RegistrationURL *string `json:"registrationUrl"`
	Email           *string `json:"email"`
	Documents       *string `json:"documents"`
	Notes           *string `json:"notes"`
	Hotel           *bool   `json:"hotel"`
	Airfare         *bool   `json:"airfare"`
}

func (r recordPatchRequest) toPatch() application.RecordPatch {
	return application.RecordPatch{
		Name:            r.Name,
		Country:         r.Country,
		City:            r.City,
		Date:            r.Date,
		Deadline:        r.Deadline,
		Industry:        r.Industry,
		Organizer:       r.Organizer,
		Website:         r.Website,
		RegistrationURL: r.RegistrationURL,
		Email:           r.Email,
		Documents:       r.Documents,
		Notes:           r.Notes,
		Hotel:           r.Hotel,
		Airfare:         r.Airfare,
	}
}

// savedDTO decorates a record with values derived from today's date.
type savedDTO struct {
	application.SavedRecord
	DaysUntilEvent    int                 `json:"daysUntilEvent"`
	DaysUntilDeadline *int                `json:"daysUntilDeadline,omitempty"`
	Urgency           application.Urgency `json:"urgency,omitempty"`
}

func toSavedDTO(record application.SavedRecord, today application.Date) savedDTO {
	dto := savedDTO{
		SavedRecord:    record,
		DaysUntilEvent: today.DaysUntil(record.Date),
		Urgency:        application.DeadlineUrgency(record, today),
	}
	if record.Deadline != nil {
		days := today.DaysUntil(*record.Deadline)
		dto.DaysUntilDeadline = &days
	}
	return dto
}

func toSavedDTOs(records []application.SavedRecord, today application.Date) []savedDTO {
	out := make([]savedDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toSavedDTO(record, today))
	}
	return out
}

type savedResponse struct {
	Record   savedDTO `json:"record"`
	Inserted bool     `json:"inserted,omitempty"`
}

type listSavedResponse struct {
	Records []savedDTO `json:"records"`
	Count   int        `json:"count"`
}

type bulkSaveResponse struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

type listCustomResponse struct {
	CustomEvents []application.CustomEvent `json:"customEvents"`
}
