package testfixtures

import (
	"time"

	"github.com/example/event-catalog/internal/application"
)

var referenceTime = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

// ReferenceTime is the baseline instant of every fixture: Monday 2025-03-10.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate is the calendar day of ReferenceTime.
func ReferenceDate() application.Date {
	return application.DateOf(referenceTime)
}

// EventFixture describes a catalog event with dates relative to ReferenceDate.
type EventFixture struct {
	Name         string
	Country      string
	City         string
	DaysAhead    int
	DeadlineDays *int
	Industry     string
	Organizer    string
	Website      string
	Email        string
	Hotel        bool
	Airfare      bool
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns an event in New Delhi thirty days after the reference date.
func NewEventFixture(name string, opts ...EventOption) EventFixture {
	fixture := EventFixture{
		Name:      name,
		Country:   "India",
		City:      "New Delhi",
		DaysAhead: 30,
		Industry:  "Trade",
		Organizer: "Trade Promotion Council",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// InCountry places the event in the given city and country.
func InCountry(country, city string) EventOption {
	return func(f *EventFixture) {
		f.Country = country
		f.City = city
	}
}

// DaysAhead dates the event n days after the reference date. Negative values are in the past.
func DaysAhead(n int) EventOption {
	return func(f *EventFixture) {
		f.DaysAhead = n
	}
}

// DeadlineIn sets the registration deadline n days after the reference date.
func DeadlineIn(n int) EventOption {
	return func(f *EventFixture) {
		f.DeadlineDays = &n
	}
}

// WithBenefits sets the hosted buyer perks.
func WithBenefits(hotel, airfare bool) EventOption {
	return func(f *EventFixture) {
		f.Hotel = hotel
		f.Airfare = airfare
	}
}

// WithContact sets website and email.
func WithContact(website, email string) EventOption {
	return func(f *EventFixture) {
		f.Website = website
		f.Email = email
	}
}

// Raw returns the fixture as ingestion input.
func (f EventFixture) Raw() application.RawEvent {
	raw := application.RawEvent{
		Name:      f.Name,
		Country:   f.Country,
		City:      f.City,
		Date:      ReferenceDate().AddDays(f.DaysAhead).String(),
		Industry:  f.Industry,
		Organizer: f.Organizer,
		Website:   f.Website,
		Email:     f.Email,
		Hotel:     f.Hotel,
		Airfare:   f.Airfare,
	}
	if f.DeadlineDays != nil {
		raw.Deadline = ReferenceDate().AddDays(*f.DeadlineDays).String()
	}
	return raw
}

// Event returns the fixture as a stored event without an id.
func (f EventFixture) Event() application.Event {
	event := application.Event{
		Name:      f.Name,
		Country:   f.Country,
		City:      f.City,
		Date:      ReferenceDate().AddDays(f.DaysAhead),
		Industry:  f.Industry,
		Organizer: f.Organizer,
		Website:   f.Website,
		Email:     f.Email,
		Benefits:  application.Benefits{Hotel: f.Hotel, Airfare: f.Airfare},
		Source:    application.SourceManual,
	}
	if f.DeadlineDays != nil {
		deadline := ReferenceDate().AddDays(*f.DeadlineDays)
		event.Deadline = &deadline
	}
	return event
}
