package application

import (
	"fmt"
	"strings"
	"time"
)

// Source records how an event entered the catalog.
type Source string

const (
	SourceManual       Source = "manual"
	SourceOnlineSearch Source = "online_search"
	SourceImport       Source = "import"
)

// Benefits lists the hosted buyer perks offered by an event.
type Benefits struct {
	Hotel   bool `json:"hotel"`
	Airfare bool `json:"airfare"`
}

// Both reports whether hotel and airfare are both covered.
func (b Benefits) Both() bool {
	return b.Hotel && b.Airfare
}

// Event is a hosted buyer trade event in the catalog.
type Event struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Country         string    `json:"country"`
	City            string    `json:"city"`
	Date            Date      `json:"date"`
	Deadline        *Date     `json:"deadline,omitempty"`
	Industry        string    `json:"industry"`
	Organizer       string    `json:"organizer"`
	OrganizerURL    string    `json:"organizerUrl"`
	Website         string    `json:"website"`
	RegistrationURL string    `json:"registrationUrl"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Documents       string    `json:"documents"`
	Description     string    `json:"description"`
	Benefits        Benefits  `json:"benefits"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Source          Source    `json:"source"`
}

// DedupKey returns the lowercase name and exact date used to detect duplicates.
func (e Event) DedupKey() string {
	return dedupKey(e.Name, e.Date)
}

func dedupKey(name string, date Date) string {
	return strings.ToLower(strings.TrimSpace(name)) + "-" + date.String()
}

func cloneEvent(e Event) Event {
	e.Deadline = cloneDate(e.Deadline)
	return e
}

// Status is the lifecycle state of a tracked event.
type Status string

const (
	StatusInterested Status = "interested"
	StatusApplied    Status = "applied"
	StatusConfirmed  Status = "confirmed"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusInterested, StatusApplied, StatusConfirmed, StatusCompleted, StatusRejected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts user input to a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return status, nil
}

// TrackedEvent is a snapshot of an event the user marked as interesting.
type TrackedEvent struct {
	Event
	Status    Status    `json:"status"`
	AddedDate time.Time `json:"addedDate"`
}

// SavedRecord is an archived, annotated copy of an event kept in the ledger.
type SavedRecord struct {
	Event
	Notes   string    `json:"notes"`
	SavedAt time.Time `json:"savedAt"`
}

// CustomEvent is a user submitted draft retained alongside the ledger.
type CustomEvent struct {
	Event
	SubmittedAt time.Time `json:"submittedAt"`
}

// RawEvent is loosely typed event input from forms, search results and
// spreadsheet rows before normalisation.
type RawEvent struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name" validate:"required"`
	Country         string `json:"country" validate:"required"`
	City            string `json:"city" validate:"required"`
	Date            string `json:"date" validate:"required"`
	Deadline        string `json:"deadline,omitempty"`
	Industry        string `json:"industry,omitempty"`
	Organizer       string `json:"organizer,omitempty"`
	OrganizerURL    string `json:"organizerUrl,omitempty"`
	Website         string `json:"website,omitempty"`
	RegistrationURL string `json:"registrationUrl,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Documents       string `json:"documents,omitempty"`
	Description     string `json:"description,omitempty"`
	Hotel           bool   `json:"hotel,omitempty"`
	Airfare         bool   `json:"airfare,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// RawFromEvent converts an event back into raw input, used when a stored
// event is re-submitted into another collection.
func RawFromEvent(e Event) RawEvent {
	raw := RawEvent{
		ID:              e.ID,
		Name:            e.Name,
		Country:         e.Country,
		City:            e.City,
		Date:            e.Date.String(),
		Industry:        e.Industry,
		Organizer:       e.Organizer,
		OrganizerURL:    e.OrganizerURL,
		Website:         e.Website,
		RegistrationURL: e.RegistrationURL,
		Email:           e.Email,
		Phone:           e.Phone,
		Documents:       e.Documents,
		Description:     e.Description,
		Hotel:           e.Benefits.Hotel,
		Airfare:         e.Benefits.Airfare,
	}
	if e.Deadline != nil {
		raw.Deadline = e.Deadline.String()
	}
	return raw
}

// RecordPatch carries the editable fields of a saved record. Nil fields are left unchanged.
type RecordPatch struct {
	Name            *string
	Country         *string
	City            *string
	Date            *string
	Deadline        *string
	Industry        *string
	Organizer       *string
	Website         *string
	RegistrationURL *string
	Email           *string
	Documents       *string
	Notes           *string
	Hotel           *bool
	Airfare         *bool
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
	Evicted  int `json:"evicted"`
}

// SearchResult summarises an online search ingestion.
type SearchResult struct {
	Found   int `json:"found"`
	Added   int `json:"added"`
	Evicted int `json:"evicted"`
}
