package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// TrackerService manages the user's interest in catalog events. Tracked
// events live in the catalog's state so that toggles and cascade deletes are
// persisted together with the events.
type TrackerService struct {
	catalog *CatalogService
	now     func() time.Time
	logger  *slog.Logger
}

// NewTrackerService constructs a tracker bound to the catalog.
func NewTrackerService(catalog *CatalogService, now func() time.Time) *TrackerService {
	return NewTrackerServiceWithLogger(catalog, now, nil)
}

// NewTrackerServiceWithLogger constructs a tracker with a specified logger.
func NewTrackerServiceWithLogger(catalog *CatalogService, now func() time.Time, logger *slog.Logger) *TrackerService {
	if now == nil {
		now = time.Now
	}
	return &TrackerService{catalog: catalog, now: now, logger: defaultLogger(logger)}
}

func (s *TrackerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TrackerService", operation, attrs...)
}

// ToggleInterest untracks a tracked event, or snapshots an untracked one
// with the interested status. It reports whether the event is tracked afterwards.
func (s *TrackerService) ToggleInterest(ctx context.Context, eventID string) (tracked bool, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("TrackerService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "ToggleInterest", "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle interest", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("tracked", tracked).InfoContext(ctx, "interest toggled")
	}()

	err = s.catalog.update(ctx, func(events []Event, entries []TrackedEvent) ([]Event, []TrackedEvent, error) {
		if indexOfTracked(entries, eventID) >= 0 {
			tracked = false
			return events, removeTracked(entries, eventID), nil
		}
		idx := indexOfEvent(events, eventID)
		if idx < 0 {
			return nil, nil, ErrNotFound
		}
		entries = append(entries, TrackedEvent{
			Event:     cloneEvent(events[idx]),
			Status:    StatusInterested,
			AddedDate: s.now(),
		})
		tracked = true
		return events, entries, nil
	})
	return
}

// SetStatus changes the status of an already tracked event.
func (s *TrackerService) SetStatus(ctx context.Context, eventID string, status Status) (entry TrackedEvent, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("TrackerService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetStatus", "event_id", eventID, "status", string(status))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "status updated")
	}()

	if !status.Valid() {
		vErr := &ValidationError{}
		vErr.add("status", "status is invalid")
		err = vErr
		return
	}

	err = s.catalog.update(ctx, func(events []Event, entries []TrackedEvent) ([]Event, []TrackedEvent, error) {
		idx := indexOfTracked(entries, eventID)
		if idx < 0 {
			return nil, nil, ErrNotTracked
		}
		entries[idx].Status = status
		entry = cloneTrackedEvent(entries[idx])
		return events, entries, nil
	})
	return
}

// IsTracked reports whether the event is currently tracked.
func (s *TrackerService) IsTracked(ctx context.Context, eventID string) (tracked bool, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("TrackerService is not configured")
		return
	}
	err = s.catalog.read(ctx, func(_ []Event, entries []TrackedEvent) {
		tracked = indexOfTracked(entries, eventID) >= 0
	})
	return
}

// ListByStatus returns tracked events dated today or later, ordered by date.
// A nil status returns every status.
func (s *TrackerService) ListByStatus(ctx context.Context, status *Status) (entries []TrackedEvent, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("TrackerService is not configured")
		return
	}

	attrs := []any{}
	if status != nil {
		attrs = append(attrs, "status", string(*status))
	}
	logger := s.loggerWith(ctx, "ListByStatus", attrs...)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list tracked events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(entries)).DebugContext(ctx, "tracked events listed")
	}()

	today := DateOf(s.now())
	err = s.catalog.read(ctx, func(_ []Event, stored []TrackedEvent) {
		entries = make([]TrackedEvent, 0, len(stored))
		for _, entry := range stored {
			if entry.Date.Before(today) {
				continue
			}
			if status != nil && entry.Status != *status {
				continue
			}
			entries = append(entries, cloneTrackedEvent(entry))
		}
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return
}

func indexOfTracked(entries []TrackedEvent, id string) int {
	for i, entry := range entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}

func removeTracked(entries []TrackedEvent, id string) []TrackedEvent {
	kept := entries[:0]
	for _, entry := range entries {
		if entry.ID == id {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

func cloneTrackedEvent(entry TrackedEvent) TrackedEvent {
	entry.Event = cloneEvent(entry.Event)
	return entry
}

func cloneTracked(entries []TrackedEvent) []TrackedEvent {
	if entries == nil {
		return nil
	}
	out := make([]TrackedEvent, len(entries))
	for i, entry := range entries {
		out[i] = cloneTrackedEvent(entry)
	}
	return out
}
