package application

import (
	"context"
	"time"
)

// SearchProvider returns raw candidate events for a region.
type SearchProvider interface {
	Search(ctx context.Context, region Region) ([]RawEvent, error)
}

// ConnectivityProbe reports whether online search is currently possible.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}

// NotificationKind distinguishes deadline alerts from event reminders.
type NotificationKind string

const (
	NotificationDeadline NotificationKind = "deadline"
	NotificationEvent    NotificationKind = "event"
)

// Notification is a user alert requested by the deadline notifier.
type Notification struct {
	Kind     NotificationKind
	Record   SavedRecord
	DaysLeft int
	Message  string
}

// NotificationSink delivers alerts to the user.
type NotificationSink interface {
	Notify(ctx context.Context, notification Notification) error
}

// MetricsRecorder receives catalog measurements.
type MetricsRecorder interface {
	CatalogChanged(byRegion map[Region]int, byStatus map[Status]int)
	LedgerChanged(total int)
	EventsIngested(source Source, inserted, duplicates int)
	EventsEvicted(count int)
	NotificationSent(kind NotificationKind)
	QueryObserved(duration time.Duration, cached bool)
}

type noopMetrics struct{}

func (noopMetrics) CatalogChanged(map[Region]int, map[Status]int) {}
func (noopMetrics) LedgerChanged(int)                             {}
func (noopMetrics) EventsIngested(Source, int, int)               {}
func (noopMetrics) EventsEvicted(int)                             {}
func (noopMetrics) NotificationSent(NotificationKind)             {}
func (noopMetrics) QueryObserved(time.Duration, bool)             {}

func defaultMetrics(recorder MetricsRecorder) MetricsRecorder {
	if recorder != nil {
		return recorder
	}
	return noopMetrics{}
}
