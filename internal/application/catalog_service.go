package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// CatalogService is the event store. It owns the event collection and the
// tracked event collection and persists both on every mutation.
type CatalogService struct {
	mu          sync.RWMutex
	state       *blobState
	loaded      bool
	events      []Event
	tracked     []TrackedEvent
	cache       *viewCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	metrics     MetricsRecorder
	exportedBy  string
}

// NewCatalogService constructs a catalog service with the provided dependencies.
func NewCatalogService(repo StateRepository, idGenerator func() string, now func() time.Time) *CatalogService {
	return NewCatalogServiceWithLogger(repo, idGenerator, now, nil)
}

// NewCatalogServiceWithLogger constructs a catalog service with a specified logger.
func NewCatalogServiceWithLogger(repo StateRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CatalogService {
	if now == nil {
		now = time.Now
	}
	return &CatalogService{
		state:       newBlobState(repo),
		cache:       newViewCache(time.Minute, 64, now),
		idGenerator: defaultIDGenerator(idGenerator),
		now:         now,
		logger:      defaultLogger(logger),
		metrics:     noopMetrics{},
		exportedBy:  "event-catalog",
	}
}

// SetMetrics installs the recorder that receives catalog measurements.
func (s *CatalogService) SetMetrics(recorder MetricsRecorder) {
	s.mu.Lock()
	s.metrics = defaultMetrics(recorder)
	s.mu.Unlock()
}

// SetExportedBy sets the exportedBy label written into JSON exports.
func (s *CatalogService) SetExportedBy(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	s.mu.Lock()
	s.exportedBy = name
	s.mu.Unlock()
}

func (s *CatalogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CatalogService", operation, attrs...)
}

// Load reads the persisted collections. Other operations load lazily, so
// calling Load is only needed to surface storage errors early.
func (s *CatalogService) Load(ctx context.Context) (err error) {
	if s == nil {
		return fmt.Errorf("CatalogService is nil")
	}
	logger := s.loggerWith(ctx, "Load")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load catalog", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	if err = s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	logger.With("event_count", len(s.events), "tracked_count", len(s.tracked)).InfoContext(ctx, "catalog loaded")
	return nil
}

func (s *CatalogService) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	values, err := s.state.load(ctx, KeyEvents, KeyMyEvents, KeyLastUpdated)
	if err != nil {
		return err
	}
	var events []Event
	if err := decodeBlob(KeyEvents, values[KeyEvents], &events); err != nil {
		return err
	}
	var tracked []TrackedEvent
	if err := decodeBlob(KeyMyEvents, values[KeyMyEvents], &tracked); err != nil {
		return err
	}
	for i := range events {
		events[i] = tidyEvent(events[i])
	}
	for i := range tracked {
		tracked[i].Event = tidyEvent(tracked[i].Event)
	}
	s.events = events
	s.tracked = tracked
	s.loaded = true
	s.cache.Invalidate()
	s.publishLocked()
	return nil
}

// catalogChange computes the next collections from copies of the current ones.
type catalogChange func(events []Event, tracked []TrackedEvent) ([]Event, []TrackedEvent, error)

func (s *CatalogService) update(ctx context.Context, change catalogChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	return s.mutateLocked(ctx, change)
}

// mutateLocked applies change to copies and swaps them in only after the
// write succeeded, so readers never see a half-applied mutation.
func (s *CatalogService) mutateLocked(ctx context.Context, change catalogChange) error {
	events, tracked, err := change(cloneEvents(s.events), cloneTracked(s.tracked))
	if err != nil {
		return err
	}
	if events == nil {
		events = []Event{}
	}
	if tracked == nil {
		tracked = []TrackedEvent{}
	}
	if err := s.persistLocked(ctx, events, tracked); err != nil {
		return err
	}
	s.events = events
	s.tracked = tracked
	s.cache.Invalidate()
	s.publishLocked()
	return nil
}

func (s *CatalogService) persistLocked(ctx context.Context, events []Event, tracked []TrackedEvent) error {
	eventsBlob, err := encodeBlob(events)
	if err != nil {
		return err
	}
	trackedBlob, err := encodeBlob(tracked)
	if err != nil {
		return err
	}
	return s.state.save(ctx, map[string][]byte{
		KeyEvents:      eventsBlob,
		KeyMyEvents:    trackedBlob,
		KeyLastUpdated: timestampBlob(s.now()),
	})
}

func (s *CatalogService) publishLocked() {
	today := DateOf(s.now())
	s.metrics.CatalogChanged(regionCounts(s.events, today), statusCounts(s.tracked, today))
}

func (s *CatalogService) read(ctx context.Context, fn func(events []Event, tracked []TrackedEvent)) error {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		fn(s.events, s.tracked)
		return nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	fn(s.events, s.tracked)
	return nil
}

// AddOrUpdate inserts the event when its id is unknown and replaces it in
// place otherwise, keeping the original creation time.
func (s *CatalogService) AddOrUpdate(ctx context.Context, event Event) (saved Event, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AddOrUpdate", "event_id", event.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", saved.ID).InfoContext(ctx, "event saved")
	}()

	event = tidyEvent(event)
	if vErr := validateEvent(event); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(events []Event, tracked []TrackedEvent) ([]Event, []TrackedEvent, error) {
		now := s.now()
		if event.ID == "" {
			event.ID = eventIDPrefix + s.idGenerator()
		}
		key := event.DedupKey()
		idx := -1
		for i, existing := range events {
			if existing.ID == event.ID {
				idx = i
				continue
			}
			if existing.DedupKey() == key {
				return nil, nil, fmt.Errorf("%w: %s on %s", ErrAlreadyExists, event.Name, event.Date)
			}
		}

		event.UpdatedAt = now
		if idx >= 0 {
			event.CreatedAt = events[idx].CreatedAt
			events[idx] = event
		} else {
			if event.CreatedAt.IsZero() {
				event.CreatedAt = now
			}
			events = append(events, event)
		}
		saved = cloneEvent(event)
		return events, tracked, nil
	})
	return
}

// Delete removes the event and any tracked snapshot with the same id.
func (s *CatalogService) Delete(ctx context.Context, eventID string) error {
	if s == nil {
		return fmt.Errorf("CatalogService is nil")
	}

	logger := s.loggerWith(ctx, "Delete", "event_id", eventID)

	err := s.update(ctx, func(events []Event, tracked []TrackedEvent) ([]Event, []TrackedEvent, error) {
		idx := indexOfEvent(events, eventID)
		if idx < 0 {
			return nil, nil, ErrNotFound
		}
		events = append(events[:idx], events[idx+1:]...)
		return events, removeTracked(tracked, eventID), nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "event deleted")
	return nil
}

// EvictPast removes events dated before the reference day and returns how
// many were removed. A second call with the same reference removes nothing.
func (s *CatalogService) EvictPast(ctx context.Context, reference time.Time) (removed int, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "EvictPast", "reference", DateOf(reference).String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to evict past events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("removed", removed).InfoContext(ctx, "past events evicted")
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.ensureLoadedLocked(ctx); err != nil {
		return
	}
	if countPast(s.events, DateOf(reference)) == 0 {
		return 0, nil
	}

	err = s.mutateLocked(ctx, func(events []Event, tracked []TrackedEvent) ([]Event, []TrackedEvent, error) {
		events, removed = evictBefore(events, DateOf(reference))
		return events, tracked, nil
	})
	if err != nil {
		removed = 0
		return
	}
	s.metrics.EventsEvicted(removed)
	return
}

// BulkIngest inserts every candidate whose name and date are not already
// present and returns the number inserted. The batch is rejected as a whole
// when any candidate is invalid.
func (s *CatalogService) BulkIngest(ctx context.Context, candidates []Event) (inserted int, err error) {
	inserted, _, err = s.ingest(ctx, candidates, nil)
	return
}

// ingest runs a bulk insert and, when evictBefore is set, the past-event
// eviction in the same write.
func (s *CatalogService) ingest(ctx context.Context, candidates []Event, evictBeforeTime *time.Time) (inserted, evicted int, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "BulkIngest", "candidate_count", len(candidates))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to ingest events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("inserted", inserted, "evicted", evicted).InfoContext(ctx, "events ingested")
	}()

	vErr := &ValidationError{}
	prepared := make([]Event, len(candidates))
	for i, candidate := range candidates {
		prepared[i] = tidyEvent(candidate)
		vErr.merge(fmt.Sprintf("events[%d]", i), validateEvent(prepared[i]))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(events []Event, tracked []TrackedEvent) ([]Event, []TrackedEvent, error) {
		now := s.now()
		keys := make(map[string]struct{}, len(events)+len(prepared))
		ids := make(map[string]struct{}, len(events)+len(prepared))
		for _, existing := range events {
			keys[existing.DedupKey()] = struct{}{}
			ids[existing.ID] = struct{}{}
		}
		count := 0
		for _, candidate := range prepared {
			key := candidate.DedupKey()
			if _, dup := keys[key]; dup {
				continue
			}
			if _, taken := ids[candidate.ID]; taken || candidate.ID == "" {
				candidate.ID = eventIDPrefix + s.idGenerator()
			}
			if candidate.CreatedAt.IsZero() {
				candidate.CreatedAt = now
			}
			if candidate.UpdatedAt.IsZero() {
				candidate.UpdatedAt = now
			}
			keys[key] = struct{}{}
			ids[candidate.ID] = struct{}{}
			events = append(events, candidate)
			count++
		}
		removed := 0
		if evictBeforeTime != nil {
			events, removed = evictBefore(events, DateOf(*evictBeforeTime))
		}
		inserted, evicted = count, removed
		return events, tracked, nil
	})
	if err != nil {
		inserted, evicted = 0, 0
		return
	}
	if evicted > 0 {
		s.metrics.EventsEvicted(evicted)
	}
	return
}

// Get returns a copy of the event with the given id.
func (s *CatalogService) Get(ctx context.Context, eventID string) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}
	found := false
	err = s.read(ctx, func(events []Event, _ []TrackedEvent) {
		if idx := indexOfEvent(events, eventID); idx >= 0 {
			event = cloneEvent(events[idx])
			found = true
		}
	})
	if err == nil && !found {
		err = ErrNotFound
	}
	return
}

// List returns every stored event in insertion order, past ones included.
func (s *CatalogService) List(ctx context.Context) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}
	err = s.read(ctx, func(stored []Event, _ []TrackedEvent) {
		events = cloneEvents(stored)
	})
	return
}

// Snapshot returns copies of both owned collections.
func (s *CatalogService) Snapshot(ctx context.Context) (events []Event, tracked []TrackedEvent, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}
	err = s.read(ctx, func(storedEvents []Event, storedTracked []TrackedEvent) {
		events = cloneEvents(storedEvents)
		tracked = cloneTracked(storedTracked)
	})
	return
}

// ListEvents runs the query engine over the current catalog.
func (s *CatalogService) ListEvents(ctx context.Context, criteria Criteria) (events []Event, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListEvents",
		"region", string(criteria.Region),
		"sort", string(criteria.Sort),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "events listed")
	}()

	start := time.Now()
	now := s.now()
	key := criteria.cacheKey(DateOf(now))
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.QueryObserved(time.Since(start), true)
		return cached, nil
	}

	err = s.read(ctx, func(stored []Event, _ []TrackedEvent) {
		events = QueryEvents(stored, now, criteria)
		s.cache.Store(key, events)
	})
	if err == nil {
		s.metrics.QueryObserved(time.Since(start), false)
	}
	return
}

// Clear removes every event and tracked event.
func (s *CatalogService) Clear(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("CatalogService is nil")
	}
	logger := s.loggerWith(ctx, "Clear")
	err := s.update(ctx, func([]Event, []TrackedEvent) ([]Event, []TrackedEvent, error) {
		return []Event{}, []TrackedEvent{}, nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to clear catalog", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "catalog cleared")
	return nil
}

// Restore replaces both collections with imported ones and evicts past
// events in the same write. Duplicate names and dates keep the first event.
func (s *CatalogService) Restore(ctx context.Context, events []Event, tracked []TrackedEvent) (ImportResult, error) {
	return s.restore(ctx, &events, &tracked)
}

// restore is Restore where a nil collection keeps the current one, read
// under the same lock as the write.
func (s *CatalogService) restore(ctx context.Context, events *[]Event, tracked *[]TrackedEvent) (result ImportResult, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	var incomingEvents []Event
	if events != nil {
		incomingEvents = *events
	}
	var incomingTracked []TrackedEvent
	if tracked != nil {
		incomingTracked = *tracked
	}

	logger := s.loggerWith(ctx, "Restore", "event_count", len(incomingEvents), "tracked_count", len(incomingTracked))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to restore catalog", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("accepted", result.Accepted, "skipped", result.Skipped, "evicted", result.Evicted).InfoContext(ctx, "catalog restored")
	}()

	vErr := &ValidationError{}
	preparedEvents := make([]Event, len(incomingEvents))
	for i, event := range incomingEvents {
		preparedEvents[i] = tidyEvent(event)
		vErr.merge(fmt.Sprintf("events[%d]", i), validateEvent(preparedEvents[i]))
	}
	preparedTracked := make([]TrackedEvent, len(incomingTracked))
	for i, entry := range incomingTracked {
		entry.Event = tidyEvent(entry.Event)
		if entry.Status == "" {
			entry.Status = StatusInterested
		}
		if !entry.Status.Valid() {
			vErr.add(fmt.Sprintf("myEvents[%d].status", i), "status is invalid")
		}
		preparedTracked[i] = entry
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.update(ctx, func(currentEvents []Event, currentTracked []TrackedEvent) ([]Event, []TrackedEvent, error) {
		if events == nil {
			preparedEvents = currentEvents
		}
		if tracked == nil {
			preparedTracked = currentTracked
		}
		now := s.now()
		next := make([]Event, 0, len(preparedEvents))
		keys := make(map[string]struct{}, len(preparedEvents))
		ids := make(map[string]struct{}, len(preparedEvents))
		res := ImportResult{}
		for _, event := range preparedEvents {
			key := event.DedupKey()
			if _, dup := keys[key]; dup {
				res.Skipped++
				continue
			}
			if _, taken := ids[event.ID]; taken || event.ID == "" {
				event.ID = eventIDPrefix + s.idGenerator()
			}
			if event.CreatedAt.IsZero() {
				event.CreatedAt = now
			}
			if event.UpdatedAt.IsZero() {
				event.UpdatedAt = now
			}
			keys[key] = struct{}{}
			ids[event.ID] = struct{}{}
			next = append(next, event)
			res.Accepted++
		}
		next, res.Evicted = evictBefore(next, DateOf(now))

		nextTracked := make([]TrackedEvent, 0, len(preparedTracked))
		seen := make(map[string]struct{}, len(preparedTracked))
		for _, entry := range preparedTracked {
			if _, dup := seen[entry.ID]; dup || entry.ID == "" {
				continue
			}
			seen[entry.ID] = struct{}{}
			nextTracked = append(nextTracked, entry)
		}
		result = res
		return next, nextTracked, nil
	})
	if err != nil {
		result = ImportResult{}
	}
	return
}

func indexOfEvent(events []Event, id string) int {
	for i, event := range events {
		if event.ID == id {
			return i
		}
	}
	return -1
}

func countPast(events []Event, today Date) int {
	count := 0
	for _, event := range events {
		if event.Date.Before(today) {
			count++
		}
	}
	return count
}

func evictBefore(events []Event, today Date) ([]Event, int) {
	kept := events[:0]
	removed := 0
	for _, event := range events {
		if event.Date.Before(today) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	return kept, removed
}

func regionCounts(events []Event, today Date) map[Region]int {
	counts := map[Region]int{RegionAll: 0}
	for _, region := range Regions {
		counts[region] = 0
	}
	for _, event := range events {
		if event.Date.Before(today) {
			continue
		}
		counts[RegionAll]++
		counts[Classify(event.Country)]++
	}
	return counts
}

func statusCounts(tracked []TrackedEvent, today Date) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, status := range Statuses {
		counts[status] = 0
	}
	for _, entry := range tracked {
		if entry.Date.Before(today) {
			continue
		}
		counts[entry.Status]++
	}
	return counts
}
