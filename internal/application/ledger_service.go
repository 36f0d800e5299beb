package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const missingOrganizer = "N/A"

// LedgerSortKey selects the ordering of saved records.
type LedgerSortKey string

const (
	LedgerSortName      LedgerSortKey = "name"
	LedgerSortDate      LedgerSortKey = "date"
	LedgerSortDeadline  LedgerSortKey = "deadline"
	LedgerSortOrganizer LedgerSortKey = "organizer"
)

// ParseLedgerSortKey converts user input to a LedgerSortKey, defaulting to date.
func ParseLedgerSortKey(value string) (LedgerSortKey, error) {
	switch LedgerSortKey(strings.ToLower(strings.TrimSpace(value))) {
	case "", LedgerSortDate:
		return LedgerSortDate, nil
	case LedgerSortName:
		return LedgerSortName, nil
	case LedgerSortDeadline:
		return LedgerSortDeadline, nil
	case LedgerSortOrganizer:
		return LedgerSortOrganizer, nil
	}
	return "", fmt.Errorf("unknown sort key %q", value)
}

// Urgency buckets the time left before a saved record's deadline.
type Urgency string

const (
	UrgencyNone     Urgency = ""
	UrgencyExpired  Urgency = "expired"
	UrgencyCritical Urgency = "critical"
	UrgencySoon     Urgency = "soon"
	UrgencyUpcoming Urgency = "upcoming"
)

// DeadlineUrgency classifies a record's deadline relative to today.
func DeadlineUrgency(record SavedRecord, today Date) Urgency {
	if record.Deadline == nil {
		return UrgencyNone
	}
	days := today.DaysUntil(*record.Deadline)
	switch {
	case days < 0:
		return UrgencyExpired
	case days <= 3:
		return UrgencyCritical
	case days <= 7:
		return UrgencySoon
	case days <= 30:
		return UrgencyUpcoming
	default:
		return UrgencyNone
	}
}

// LedgerStats summarises the ledger for dashboards.
type LedgerStats struct {
	Total           int `json:"total"`
	UrgentDeadlines int `json:"urgentDeadlines"`
	UpcomingEvents  int `json:"upcomingEvents"`
}

// LedgerService is the saved records ledger: a deduplicated archive of
// events with its own lifecycle, independent of the live catalog.
type LedgerService struct {
	mu          sync.RWMutex
	state       *blobState
	loaded      bool
	records     []SavedRecord
	custom      []CustomEvent
	validator   *eventValidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	metrics     MetricsRecorder
	exportedBy  string
}

// NewLedgerService constructs a ledger service with the provided dependencies.
func NewLedgerService(repo StateRepository, idGenerator func() string, now func() time.Time) *LedgerService {
	return NewLedgerServiceWithLogger(repo, idGenerator, now, nil)
}

// NewLedgerServiceWithLogger constructs a ledger service with a specified logger.
func NewLedgerServiceWithLogger(repo StateRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LedgerService {
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		state:       newBlobState(repo),
		validator:   newEventValidator(),
		idGenerator: defaultIDGenerator(idGenerator),
		now:         now,
		logger:      defaultLogger(logger),
		metrics:     noopMetrics{},
		exportedBy:  "event-catalog",
	}
}

// SetMetrics installs the recorder that receives ledger measurements.
func (s *LedgerService) SetMetrics(recorder MetricsRecorder) {
	s.mu.Lock()
	s.metrics = defaultMetrics(recorder)
	s.mu.Unlock()
}

// SetExportedBy sets the exportedBy label written into JSON exports.
func (s *LedgerService) SetExportedBy(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	s.mu.Lock()
	s.exportedBy = name
	s.mu.Unlock()
}

func (s *LedgerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LedgerService", operation, attrs...)
}

func (s *LedgerService) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	values, err := s.state.load(ctx, KeySavedRecords, KeyCustomEvents, KeySavedRecordsLastUpdate)
	if err != nil {
		return err
	}
	var records []SavedRecord
	if err := decodeBlob(KeySavedRecords, values[KeySavedRecords], &records); err != nil {
		return err
	}
	var custom []CustomEvent
	if err := decodeBlob(KeyCustomEvents, values[KeyCustomEvents], &custom); err != nil {
		return err
	}
	for i := range records {
		records[i].Event = tidyEvent(records[i].Event)
	}
	s.records = records
	s.custom = custom
	s.loaded = true
	s.metrics.LedgerChanged(len(s.records))
	return nil
}

type ledgerChange func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error)

func (s *LedgerService) update(ctx context.Context, change ledgerChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	records, custom, err := change(cloneRecords(s.records), cloneCustom(s.custom))
	if err != nil {
		return err
	}
	if records == nil {
		records = []SavedRecord{}
	}
	if custom == nil {
		custom = []CustomEvent{}
	}
	recordsBlob, err := encodeBlob(records)
	if err != nil {
		return err
	}
	customBlob, err := encodeBlob(custom)
	if err != nil {
		return err
	}
	if err := s.state.save(ctx, map[string][]byte{
		KeySavedRecords:           recordsBlob,
		KeyCustomEvents:           customBlob,
		KeySavedRecordsLastUpdate: timestampBlob(s.now()),
	}); err != nil {
		return err
	}
	s.records = records
	s.custom = custom
	s.metrics.LedgerChanged(len(s.records))
	return nil
}

func (s *LedgerService) read(ctx context.Context, fn func(records []SavedRecord, custom []CustomEvent)) error {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		fn(s.records, s.custom)
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	fn(s.records, s.custom)
	return nil
}

// newRecord copies an event into a saved record with a fresh ledger id.
func (s *LedgerService) newRecord(event Event, notes string) SavedRecord {
	record := SavedRecord{
		Event:   tidyEvent(event),
		Notes:   strings.TrimSpace(notes),
		SavedAt: s.now(),
	}
	record.ID = savedIDPrefix + s.idGenerator()
	if strings.TrimSpace(record.Organizer) == "" {
		record.Organizer = missingOrganizer
	}
	return record
}

// appendIfAbsent adds candidates whose name and date are not yet saved.
// A candidate whose id is already taken counts as a duplicate.
func appendIfAbsent(records []SavedRecord, candidates []SavedRecord) ([]SavedRecord, int, int) {
	keys := make(map[string]struct{}, len(records)+len(candidates))
	ids := make(map[string]struct{}, len(records)+len(candidates))
	for _, record := range records {
		keys[record.DedupKey()] = struct{}{}
		ids[record.ID] = struct{}{}
	}
	inserted, duplicates := 0, 0
	for _, candidate := range candidates {
		key := candidate.DedupKey()
		if _, dup := keys[key]; dup {
			duplicates++
			continue
		}
		if _, taken := ids[candidate.ID]; taken {
			duplicates++
			continue
		}
		keys[key] = struct{}{}
		ids[candidate.ID] = struct{}{}
		records = append(records, candidate)
		inserted++
	}
	return records, inserted, duplicates
}

// AddIfAbsent saves a copy of the event unless a record with the same name
// and date exists. It reports whether a record was inserted.
func (s *LedgerService) AddIfAbsent(ctx context.Context, event Event) (record SavedRecord, inserted bool, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AddIfAbsent", "event_id", event.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("record_id", record.ID, "inserted", inserted).InfoContext(ctx, "record saved")
	}()

	if vErr := validateEvent(tidyEvent(event)); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		candidate := s.newRecord(event, "")
		for _, existing := range records {
			if existing.DedupKey() == candidate.DedupKey() {
				record = cloneRecord(existing)
				inserted = false
				return records, custom, nil
			}
		}
		record = candidate
		inserted = true
		return append(records, candidate), custom, nil
	})
	return
}

// BulkAdd applies AddIfAbsent to every event in one write.
func (s *LedgerService) BulkAdd(ctx context.Context, events []Event) (inserted, duplicates int, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "BulkAdd", "candidate_count", len(events))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to bulk add records", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("inserted", inserted, "duplicates", duplicates).InfoContext(ctx, "records added")
	}()

	vErr := &ValidationError{}
	for i, event := range events {
		vErr.merge(fmt.Sprintf("events[%d]", i), validateEvent(tidyEvent(event)))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		candidates := make([]SavedRecord, len(events))
		for i, event := range events {
			candidates[i] = s.newRecord(event, "")
		}
		records, inserted, duplicates = appendIfAbsent(records, candidates)
		return records, custom, nil
	})
	if err != nil {
		inserted, duplicates = 0, 0
	}
	return
}

// ImportRecords adds previously exported records, keeping their ids and
// notes when possible. The import is applied in one write or not at all.
func (s *LedgerService) ImportRecords(ctx context.Context, imported []SavedRecord) (result ImportResult, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ImportRecords", "candidate_count", len(imported))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to import records", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("accepted", result.Accepted, "skipped", result.Skipped).InfoContext(ctx, "records imported")
	}()

	vErr := &ValidationError{}
	prepared := make([]SavedRecord, len(imported))
	for i, record := range imported {
		record.Event = tidyEvent(record.Event)
		vErr.merge(fmt.Sprintf("savedRecords[%d]", i), validateEvent(record.Event))
		prepared[i] = record
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		now := s.now()
		ids := make(map[string]struct{}, len(records))
		for _, record := range records {
			ids[record.ID] = struct{}{}
		}
		candidates := make([]SavedRecord, len(prepared))
		for i, record := range prepared {
			if _, taken := ids[record.ID]; taken || record.ID == "" {
				record.ID = savedIDPrefix + s.idGenerator()
			}
			ids[record.ID] = struct{}{}
			if record.SavedAt.IsZero() {
				record.SavedAt = now
			}
			if strings.TrimSpace(record.Organizer) == "" {
				record.Organizer = missingOrganizer
			}
			candidates[i] = record
		}
		var accepted, skipped int
		records, accepted, skipped = appendIfAbsent(records, candidates)
		result = ImportResult{Accepted: accepted, Skipped: skipped}
		return records, custom, nil
	})
	if err != nil {
		result = ImportResult{}
	}
	return
}

// ImportRows normalises spreadsheet rows and imports them as saved records.
// Any invalid row rejects the whole import.
func (s *LedgerService) ImportRows(ctx context.Context, rows []RawEvent) (result ImportResult, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	vErr := &ValidationError{}
	records := make([]SavedRecord, 0, len(rows))
	now := s.now()
	for i, row := range rows {
		event, rowErr := s.validator.normalizeRaw(row, SourceImport, func() string { return "" }, now)
		if rowErr.HasErrors() {
			vErr.merge(fmt.Sprintf("rows[%d]", i), rowErr)
			continue
		}
		event.ID = ""
		records = append(records, SavedRecord{Event: event, Notes: strings.TrimSpace(row.Notes)})
	}
	if vErr.HasErrors() {
		s.loggerWith(ctx, "ImportRows", "row_count", len(rows)).ErrorContext(ctx, "failed to import rows", "error", vErr, "error_kind", ErrorKind(vErr))
		err = vErr
		return
	}
	return s.ImportRecords(ctx, records)
}

// SubmitCustomEvent validates a manually entered event, keeps the draft in
// the custom events collection and saves it to the ledger.
func (s *LedgerService) SubmitCustomEvent(ctx context.Context, raw RawEvent) (record SavedRecord, inserted bool, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SubmitCustomEvent")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit custom event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("record_id", record.ID, "inserted", inserted).InfoContext(ctx, "custom event submitted")
	}()

	now := s.now()
	event, vErr := s.validator.normalizeRaw(raw, SourceManual, func() string { return eventIDPrefix + s.idGenerator() }, now)
	if vErr == nil {
		vErr = &ValidationError{}
	}
	vErr.merge("", s.validator.checkContact(trimRaw(raw)))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		custom = append(custom, CustomEvent{Event: cloneEvent(event), SubmittedAt: now})
		candidate := s.newRecord(event, raw.Notes)
		for _, existing := range records {
			if existing.DedupKey() == candidate.DedupKey() {
				record = cloneRecord(existing)
				inserted = false
				return records, custom, nil
			}
		}
		record = candidate
		inserted = true
		return append(records, candidate), custom, nil
	})
	return
}

// UpdateNotes replaces the notes of a saved record.
func (s *LedgerService) UpdateNotes(ctx context.Context, recordID, notes string) (record SavedRecord, err error) {
	text := notes
	return s.UpdateRecord(ctx, recordID, RecordPatch{Notes: &text})
}

// UpdateRecord merges the patch into a saved record.
func (s *LedgerService) UpdateRecord(ctx context.Context, recordID string, patch RecordPatch) (record SavedRecord, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRecord", "record_id", recordID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "record updated")
	}()

	err = s.update(ctx, func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		idx := indexOfRecord(records, recordID)
		if idx < 0 {
			return nil, nil, ErrNotFound
		}
		updated, vErr := applyPatch(records[idx], patch)
		if vErr.HasErrors() {
			return nil, nil, vErr
		}
		for i, other := range records {
			if i != idx && other.DedupKey() == updated.DedupKey() {
				return nil, nil, fmt.Errorf("%w: %s on %s", ErrAlreadyExists, updated.Name, updated.Date)
			}
		}
		updated.UpdatedAt = s.now()
		records[idx] = updated
		record = cloneRecord(updated)
		return records, custom, nil
	})
	return
}

func applyPatch(record SavedRecord, patch RecordPatch) (SavedRecord, *ValidationError) {
	vErr := &ValidationError{}
	setText := func(target *string, value *string) {
		if value != nil {
			*target = strings.TrimSpace(*value)
		}
	}
	setText(&record.Name, patch.Name)
	setText(&record.Country, patch.Country)
	setText(&record.City, patch.City)
	setText(&record.Industry, patch.Industry)
	setText(&record.Organizer, patch.Organizer)
	setText(&record.Website, patch.Website)
	setText(&record.RegistrationURL, patch.RegistrationURL)
	setText(&record.Email, patch.Email)
	setText(&record.Documents, patch.Documents)
	setText(&record.Notes, patch.Notes)
	if patch.Hotel != nil {
		record.Benefits.Hotel = *patch.Hotel
	}
	if patch.Airfare != nil {
		record.Benefits.Airfare = *patch.Airfare
	}
	if patch.Date != nil {
		date, err := ParseDate(*patch.Date)
		if err != nil {
			vErr.add("date", "date is invalid")
		} else {
			record.Date = date
		}
	}
	if patch.Deadline != nil {
		deadline, err := parseOptionalDate(*patch.Deadline)
		if err != nil {
			vErr.add("deadline", "deadline is invalid")
		} else {
			record.Deadline = deadline
		}
	}
	if record.Organizer == "" {
		record.Organizer = missingOrganizer
	}
	vErr.merge("", validateEvent(record.Event))
	return record, vErr
}

// Delete removes a saved record.
func (s *LedgerService) Delete(ctx context.Context, recordID string) error {
	if s == nil {
		return fmt.Errorf("LedgerService is nil")
	}

	logger := s.loggerWith(ctx, "Delete", "record_id", recordID)
	err := s.update(ctx, func(records []SavedRecord, custom []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		idx := indexOfRecord(records, recordID)
		if idx < 0 {
			return nil, nil, ErrNotFound
		}
		return append(records[:idx], records[idx+1:]...), custom, nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete record", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "record deleted")
	return nil
}

// Clear removes every saved record and custom event.
func (s *LedgerService) Clear(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("LedgerService is nil")
	}
	logger := s.loggerWith(ctx, "Clear")
	err := s.update(ctx, func([]SavedRecord, []CustomEvent) ([]SavedRecord, []CustomEvent, error) {
		return []SavedRecord{}, []CustomEvent{}, nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to clear ledger", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "ledger cleared")
	return nil
}

// Get returns a copy of one saved record.
func (s *LedgerService) Get(ctx context.Context, recordID string) (record SavedRecord, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}
	found := false
	err = s.read(ctx, func(records []SavedRecord, _ []CustomEvent) {
		if idx := indexOfRecord(records, recordID); idx >= 0 {
			record = cloneRecord(records[idx])
			found = true
		}
	})
	if err == nil && !found {
		err = ErrNotFound
	}
	return
}

// List returns the saved records in insertion order.
func (s *LedgerService) List(ctx context.Context) (records []SavedRecord, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}
	err = s.read(ctx, func(stored []SavedRecord, _ []CustomEvent) {
		records = cloneRecords(stored)
	})
	return
}

// CustomEvents returns the retained user drafts.
func (s *LedgerService) CustomEvents(ctx context.Context) (custom []CustomEvent, err error) {
	if s == nil {
		err = fmt.Errorf("LedgerService is nil")
		return
	}
	err = s.read(ctx, func(_ []SavedRecord, stored []CustomEvent) {
		custom = cloneCustom(stored)
	})
	return
}

// Sorted returns the saved records ordered by key. Missing deadlines sort last.
func (s *LedgerService) Sorted(ctx context.Context, key LedgerSortKey) ([]SavedRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	SortRecords(records, key)
	return records, nil
}

// SortRecords orders records in place with a stable sort.
func SortRecords(records []SavedRecord, key LedgerSortKey) {
	switch key {
	case LedgerSortName:
		names := newNameCollator()
		sort.SliceStable(records, func(i, j int) bool {
			return names.CompareString(records[i].Name, records[j].Name) < 0
		})
	case LedgerSortOrganizer:
		names := newNameCollator()
		sort.SliceStable(records, func(i, j int) bool {
			return names.CompareString(records[i].Organizer, records[j].Organizer) < 0
		})
	case LedgerSortDeadline:
		sort.SliceStable(records, func(i, j int) bool {
			return deadlineLess(records[i].Deadline, records[j].Deadline)
		})
	default:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Date.Before(records[j].Date)
		})
	}
}

// Stats counts urgent deadlines (within 7 days) and upcoming events (within 30 days).
func (s *LedgerService) Stats(ctx context.Context) (stats LedgerStats, err error) {
	records, err := s.List(ctx)
	if err != nil {
		return LedgerStats{}, err
	}
	today := DateOf(s.now())
	stats.Total = len(records)
	for _, record := range records {
		if record.Deadline != nil {
			if days := today.DaysUntil(*record.Deadline); days >= 0 && days <= 7 {
				stats.UrgentDeadlines++
			}
		}
		if days := today.DaysUntil(record.Date); days >= 0 && days <= 30 {
			stats.UpcomingEvents++
		}
	}
	return stats, nil
}

// Today returns the ledger's current calendar day.
func (s *LedgerService) Today() Date {
	return DateOf(s.now())
}

func indexOfRecord(records []SavedRecord, id string) int {
	for i, record := range records {
		if record.ID == id {
			return i
		}
	}
	return -1
}

func cloneRecord(record SavedRecord) SavedRecord {
	record.Event = cloneEvent(record.Event)
	return record
}

func cloneRecords(records []SavedRecord) []SavedRecord {
	if records == nil {
		return nil
	}
	out := make([]SavedRecord, len(records))
	for i, record := range records {
		out[i] = cloneRecord(record)
	}
	return out
}

func cloneCustom(custom []CustomEvent) []CustomEvent {
	if custom == nil {
		return nil
	}
	out := make([]CustomEvent, len(custom))
	for i, entry := range custom {
		entry.Event = cloneEvent(entry.Event)
		out[i] = entry
	}
	return out
}
