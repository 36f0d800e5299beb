package application

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	eventIDPrefix = "event_"
	savedIDPrefix = "saved_"
)

func defaultIDGenerator(idGenerator func() string) func() string {
	if idGenerator != nil {
		return idGenerator
	}
	return uuid.NewString
}

// eventValidator checks raw input with struct tags, reporting fields by
// their JSON names.
type eventValidator struct {
	validate *validator.Validate
}

func newEventValidator() *eventValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &eventValidator{validate: v}
}

func (v *eventValidator) checkRaw(raw RawEvent) *ValidationError {
	vErr := &ValidationError{}
	if err := v.validate.Struct(raw); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			vErr.add("event", err.Error())
			return vErr
		}
		for _, fe := range fieldErrs {
			vErr.add(fe.Field(), validationMessage(fe))
		}
	}
	return vErr
}

func (v *eventValidator) checkContact(raw RawEvent) *ValidationError {
	vErr := &ValidationError{}
	if err := v.validate.Var(raw.Email, "omitempty,email"); err != nil {
		vErr.add("email", "email is invalid")
	}
	for field, value := range map[string]string{
		"website":         raw.Website,
		"registrationUrl": raw.RegistrationURL,
		"organizerUrl":    raw.OrganizerURL,
	} {
		if err := v.validate.Var(value, "omitempty,url"); err != nil {
			vErr.add(field, "must be a valid URL")
		}
	}
	return vErr
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "email is invalid"
	case "url":
		return "must be a valid URL"
	default:
		return fe.Field() + " is invalid"
	}
}

func trimRaw(raw RawEvent) RawEvent {
	raw.ID = strings.TrimSpace(raw.ID)
	raw.Name = strings.TrimSpace(raw.Name)
	raw.Country = strings.TrimSpace(raw.Country)
	raw.City = strings.TrimSpace(raw.City)
	raw.Date = strings.TrimSpace(raw.Date)
	raw.Deadline = strings.TrimSpace(raw.Deadline)
	raw.Industry = strings.TrimSpace(raw.Industry)
	raw.Organizer = strings.TrimSpace(raw.Organizer)
	raw.OrganizerURL = strings.TrimSpace(raw.OrganizerURL)
	raw.Website = strings.TrimSpace(raw.Website)
	raw.RegistrationURL = strings.TrimSpace(raw.RegistrationURL)
	raw.Email = strings.TrimSpace(raw.Email)
	raw.Phone = strings.TrimSpace(raw.Phone)
	raw.Documents = strings.TrimSpace(raw.Documents)
	raw.Description = strings.TrimSpace(raw.Description)
	raw.Notes = strings.TrimSpace(raw.Notes)
	return raw
}

// normalizeRaw coerces raw input into the canonical event shape. The id is
// kept when present, otherwise newID supplies one.
func (v *eventValidator) normalizeRaw(raw RawEvent, source Source, newID func() string, now time.Time) (Event, *ValidationError) {
	raw = trimRaw(raw)
	vErr := v.checkRaw(raw)

	var date Date
	if raw.Date != "" {
		parsed, err := ParseDate(raw.Date)
		if err != nil {
			vErr.add("date", "date is invalid")
		} else {
			date = parsed
		}
	}
	deadline, err := parseOptionalDate(raw.Deadline)
	if err != nil {
		vErr.add("deadline", "deadline is invalid")
	}
	if deadline != nil && !date.IsZero() && deadline.After(date) {
		vErr.add("deadline", "deadline must be on or before date")
	}
	if vErr.HasErrors() {
		return Event{}, vErr
	}

	id := raw.ID
	if id == "" {
		id = newID()
	}
	return Event{
		ID:              id,
		Name:            raw.Name,
		Country:         raw.Country,
		City:            raw.City,
		Date:            date,
		Deadline:        deadline,
		Industry:        raw.Industry,
		Organizer:       raw.Organizer,
		OrganizerURL:    raw.OrganizerURL,
		Website:         raw.Website,
		RegistrationURL: raw.RegistrationURL,
		Email:           raw.Email,
		Phone:           raw.Phone,
		Documents:       raw.Documents,
		Description:     raw.Description,
		Benefits:        Benefits{Hotel: raw.Hotel, Airfare: raw.Airfare},
		CreatedAt:       now,
		UpdatedAt:       now,
		Source:          source,
	}, nil
}

// validateEvent checks an already typed event.
func validateEvent(event Event) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(event.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(event.Country) == "" {
		vErr.add("country", "country is required")
	}
	if strings.TrimSpace(event.City) == "" {
		vErr.add("city", "city is required")
	}
	if event.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if event.Deadline != nil && !event.Date.IsZero() && event.Deadline.After(event.Date) {
		vErr.add("deadline", "deadline must be on or before date")
	}
	return vErr
}

// tidyEvent trims text fields and drops an empty deadline.
func tidyEvent(event Event) Event {
	event = cloneEvent(event)
	event.ID = strings.TrimSpace(event.ID)
	event.Name = strings.TrimSpace(event.Name)
	event.Country = strings.TrimSpace(event.Country)
	event.City = strings.TrimSpace(event.City)
	if event.Deadline != nil && event.Deadline.IsZero() {
		event.Deadline = nil
	}
	if event.Source == "" {
		event.Source = SourceManual
	}
	return event
}
