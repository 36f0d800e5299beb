package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSearchTimeout bounds a single provider call.
const DefaultSearchTimeout = 30 * time.Second

// IngestionService turns loosely typed input from manual entry, online
// search and bulk import into canonical events in the catalog.
type IngestionService struct {
	catalog     *CatalogService
	provider    SearchProvider
	probe       ConnectivityProbe
	validator   *eventValidator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	mu      sync.RWMutex
	timeout time.Duration
	metrics MetricsRecorder
}

// NewIngestionService constructs an ingestion pipeline feeding the catalog.
func NewIngestionService(catalog *CatalogService, provider SearchProvider, probe ConnectivityProbe, idGenerator func() string, now func() time.Time) *IngestionService {
	return NewIngestionServiceWithLogger(catalog, provider, probe, idGenerator, now, nil)
}

// NewIngestionServiceWithLogger constructs an ingestion pipeline with a specified logger.
func NewIngestionServiceWithLogger(catalog *CatalogService, provider SearchProvider, probe ConnectivityProbe, idGenerator func() string, now func() time.Time, logger *slog.Logger) *IngestionService {
	if now == nil {
		now = time.Now
	}
	return &IngestionService{
		catalog:     catalog,
		provider:    provider,
		probe:       probe,
		validator:   newEventValidator(),
		idGenerator: defaultIDGenerator(idGenerator),
		now:         now,
		logger:      defaultLogger(logger),
		timeout:     DefaultSearchTimeout,
		metrics:     noopMetrics{},
	}
}

// SetSearchTimeout changes the provider timeout. Non-positive values restore the default.
func (s *IngestionService) SetSearchTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	s.mu.Lock()
	s.timeout = timeout
	s.mu.Unlock()
}

// SetMetrics installs the recorder that receives ingestion measurements.
func (s *IngestionService) SetMetrics(recorder MetricsRecorder) {
	s.mu.Lock()
	s.metrics = defaultMetrics(recorder)
	s.mu.Unlock()
}

func (s *IngestionService) settings() (time.Duration, MetricsRecorder) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeout, s.metrics
}

func (s *IngestionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "IngestionService", operation, attrs...)
}

func (s *IngestionService) newEventID() string {
	return eventIDPrefix + s.idGenerator()
}

// SubmitManual validates a form submission and saves it to the catalog.
// A submission carrying an existing id updates that event.
func (s *IngestionService) SubmitManual(ctx context.Context, raw RawEvent) (event Event, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("IngestionService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "SubmitManual", "event_name", raw.Name)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event submitted")
	}()

	normalized, vErr := s.validator.normalizeRaw(raw, SourceManual, s.newEventID, s.now())
	if vErr == nil {
		vErr = &ValidationError{}
	}
	vErr.merge("", s.validator.checkContact(trimRaw(raw)))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	event, err = s.catalog.AddOrUpdate(ctx, normalized)
	if err == nil {
		_, metrics := s.settings()
		metrics.EventsIngested(SourceManual, 1, 0)
	}
	return
}

// SearchAndIngest asks the search provider for events in the region and
// adds the new, upcoming ones to the catalog. Past events are evicted in the
// same write.
func (s *IngestionService) SearchAndIngest(ctx context.Context, region Region) (result SearchResult, err error) {
	if s == nil || s.catalog == nil || s.provider == nil {
		err = fmt.Errorf("IngestionService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "SearchAndIngest", "region", string(region))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to search events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("found", result.Found, "added", result.Added, "evicted", result.Evicted).InfoContext(ctx, "search ingested")
	}()

	if _, parseErr := ParseRegion(string(region)); parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("region", "region is invalid")
		err = vErr
		return
	}
	if s.probe != nil && !s.probe.Online(ctx) {
		err = &ConnectivityError{}
		return
	}

	timeout, metrics := s.settings()
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	raws, searchErr := s.provider.Search(searchCtx, region)
	if searchErr != nil {
		if errors.Is(searchErr, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("search timed out after %s: %w", timeout, searchErr)
			return
		}
		err = fmt.Errorf("search provider: %w", searchErr)
		return
	}

	now := s.now()
	today := DateOf(now)
	candidates := make([]Event, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		event, vErr := s.validator.normalizeRaw(raw, SourceOnlineSearch, s.newEventID, now)
		if vErr.HasErrors() {
			logger.With("index", i, "error", vErr).WarnContext(ctx, "search result skipped")
			continue
		}
		if event.Date.Before(today) {
			continue
		}
		key := event.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, event)
	}
	result.Found = len(candidates)

	inserted, evicted, ingestErr := s.catalog.ingest(ctx, candidates, &now)
	if ingestErr != nil {
		err = ingestErr
		result = SearchResult{}
		return
	}
	result.Added = inserted
	result.Evicted = evicted
	metrics.EventsIngested(SourceOnlineSearch, inserted, len(candidates)-inserted)
	return
}

// ImportRows normalises spreadsheet rows and bulk ingests them. Any invalid
// row rejects the whole import.
func (s *IngestionService) ImportRows(ctx context.Context, rows []RawEvent) (result ImportResult, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("IngestionService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "ImportRows", "row_count", len(rows))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to import rows", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("accepted", result.Accepted, "skipped", result.Skipped, "evicted", result.Evicted).InfoContext(ctx, "rows imported")
	}()

	now := s.now()
	vErr := &ValidationError{}
	candidates := make([]Event, 0, len(rows))
	for i, row := range rows {
		event, rowErr := s.validator.normalizeRaw(row, SourceImport, s.newEventID, now)
		if rowErr.HasErrors() {
			vErr.merge(fmt.Sprintf("rows[%d]", i), rowErr)
			continue
		}
		candidates = append(candidates, event)
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	inserted, evicted, ingestErr := s.catalog.ingest(ctx, candidates, &now)
	if ingestErr != nil {
		err = ingestErr
		return
	}
	result = ImportResult{Accepted: inserted, Skipped: len(candidates) - inserted, Evicted: evicted}
	_, metrics := s.settings()
	metrics.EventsIngested(SourceImport, inserted, result.Skipped)
	return
}
