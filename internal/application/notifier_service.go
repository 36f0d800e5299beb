package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DeadlineAlertDays are the days before a deadline on which an alert is sent.
var DeadlineAlertDays = []int{7, 3, 1}

// EventReminderDays is how many days before an event the reminder is sent.
const EventReminderDays = 3

// NotifierService sends deadline alerts and event reminders for saved
// records. Each alert is sent at most once; a persisted marker records it.
type NotifierService struct {
	ledger  *LedgerService
	repo    StateRepository
	sink    NotificationSink
	now     func() time.Time
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewNotifierService constructs a notifier over the ledger.
func NewNotifierService(ledger *LedgerService, repo StateRepository, sink NotificationSink, now func() time.Time) *NotifierService {
	return NewNotifierServiceWithLogger(ledger, repo, sink, now, nil)
}

// NewNotifierServiceWithLogger constructs a notifier with a specified logger.
func NewNotifierServiceWithLogger(ledger *LedgerService, repo StateRepository, sink NotificationSink, now func() time.Time, logger *slog.Logger) *NotifierService {
	if now == nil {
		now = time.Now
	}
	return &NotifierService{
		ledger:  ledger,
		repo:    repo,
		sink:    sink,
		now:     now,
		logger:  defaultLogger(logger),
		metrics: noopMetrics{},
	}
}

// SetMetrics installs the recorder that counts sent notifications.
func (s *NotifierService) SetMetrics(recorder MetricsRecorder) {
	s.metrics = defaultMetrics(recorder)
}

// DeadlineMarkerKey is the marker stored after a deadline alert.
func DeadlineMarkerKey(recordID string, days int) string {
	return fmt.Sprintf("notified-%s-%d", recordID, days)
}

// EventMarkerKey is the marker stored after an event reminder.
func EventMarkerKey(recordID string) string {
	return eventMarkerPrefix + recordID
}

const (
	deadlineMarkerPrefix = "notified-"
	eventMarkerPrefix    = "event-notified-"
)

// markerRecordID extracts the saved record id from a marker key.
func markerRecordID(key string) (string, bool) {
	if id, ok := strings.CutPrefix(key, eventMarkerPrefix); ok {
		return id, id != ""
	}
	rest, ok := strings.CutPrefix(key, deadlineMarkerPrefix)
	if !ok {
		return "", false
	}
	idx := strings.LastIndex(rest, "-")
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}

// PruneMarkers deletes the markers of saved records that no longer exist.
func (s *NotifierService) PruneMarkers(ctx context.Context) (removed int, err error) {
	if s == nil || s.repo == nil {
		return 0, nil
	}
	logger := serviceLogger(ctx, s.logger, "NotifierService", "PruneMarkers")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to prune markers", "error", err, "error_kind", ErrorKind(err))
		} else if removed > 0 {
			logger.InfoContext(ctx, "markers pruned", "removed", removed)
		}
	}()

	records, err := s.ledger.List(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool, len(records))
	for _, record := range records {
		live[record.ID] = true
	}

	var stale []string
	for _, prefix := range []string{deadlineMarkerPrefix, eventMarkerPrefix} {
		keys, keysErr := s.repo.Keys(ctx, prefix)
		if keysErr != nil {
			return 0, mapStateRepoError(keysErr)
		}
		for _, key := range keys {
			if id, ok := markerRecordID(key); ok && !live[id] {
				stale = append(stale, key)
			}
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err = s.repo.Delete(ctx, stale...); err != nil {
		return 0, mapStateRepoError(err)
	}
	return len(stale), nil
}

type pendingNotification struct {
	marker       string
	notification Notification
}

// CheckDeadlines sends every alert due today that has not been sent yet and
// returns the number sent. A failed delivery leaves its marker unset so the
// next check retries it.
func (s *NotifierService) CheckDeadlines(ctx context.Context) (sent int, err error) {
	if s == nil || s.ledger == nil || s.sink == nil {
		err = fmt.Errorf("NotifierService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "NotifierService", "CheckDeadlines")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check deadlines", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if sent > 0 {
			logger.With("sent", sent).InfoContext(ctx, "notifications sent")
		}
	}()

	records, err := s.ledger.List(ctx)
	if err != nil {
		return 0, err
	}
	pending := dueNotifications(records, DateOf(s.now()))
	if len(pending) == 0 {
		return 0, nil
	}

	markers := make([]string, len(pending))
	for i, p := range pending {
		markers[i] = p.marker
	}
	existing := map[string]StoredBlob{}
	if s.repo != nil {
		existing, err = s.repo.Load(ctx, markers...)
		if err != nil {
			return 0, mapStateRepoError(err)
		}
	}

	var errs []error
	for _, p := range pending {
		if _, done := existing[p.marker]; done {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = append(errs, ctxErr)
			break
		}
		if notifyErr := s.sink.Notify(ctx, p.notification); notifyErr != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", p.marker, notifyErr))
			continue
		}
		if s.repo != nil {
			_, saveErr := s.repo.Save(ctx, []StoredBlob{{Key: p.marker, Value: []byte("true")}})
			if saveErr != nil && !errors.Is(mapStateRepoError(saveErr), ErrConflict) {
				errs = append(errs, fmt.Errorf("store marker %s: %w", p.marker, mapStateRepoError(saveErr)))
			}
		}
		s.metrics.NotificationSent(p.notification.Kind)
		sent++
	}
	err = errors.Join(errs...)
	return
}

func dueNotifications(records []SavedRecord, today Date) []pendingNotification {
	var pending []pendingNotification
	for _, record := range records {
		if record.Deadline != nil {
			days := today.DaysUntil(*record.Deadline)
			for _, alertDay := range DeadlineAlertDays {
				if days != alertDay {
					continue
				}
				pending = append(pending, pendingNotification{
					marker: DeadlineMarkerKey(record.ID, days),
					notification: Notification{
						Kind:     NotificationDeadline,
						Record:   cloneRecord(record),
						DaysLeft: days,
						Message:  fmt.Sprintf("%s registration closes in %s!", record.Name, pluralDays(days)),
					},
				})
			}
		}
		if days := today.DaysUntil(record.Date); days == EventReminderDays {
			pending = append(pending, pendingNotification{
				marker: EventMarkerKey(record.ID),
				notification: Notification{
					Kind:     NotificationEvent,
					Record:   cloneRecord(record),
					DaysLeft: days,
					Message:  fmt.Sprintf("%s starts in %s! %s, %s", record.Name, pluralDays(days), record.City, record.Country),
				},
			})
		}
	}
	return pending
}

func pluralDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
