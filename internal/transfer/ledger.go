package transfer

import (
	"strconv"

	"github.com/example/event-catalog/internal/application"
)

// Ledger column titles that differ from the catalog export.
const (
	ColSerial            = "SN"
	ColEventDate         = "Event Date"
	ColRegistrationDue   = "Registration Deadline"
	ColDaysUntilEvent    = "Days Until Event"
	ColDaysUntilDeadline = "Days Until Deadline"
	ColRegistrationURL   = "Registration URL"
	ColNotes             = "Notes"
	ColSavedOn           = "Saved On"
)

// LedgerColumns is the header of a ledger export.
var LedgerColumns = []string{
	ColSerial, ColEventName, ColCountry, ColCity, ColOrganizer, ColIndustry, ColEventDate,
	ColRegistrationDue, ColDaysUntilEvent, ColDaysUntilDeadline, ColHotel, ColAirfare,
	ColWebsite, ColRegistrationURL, ColEmail, ColDocuments, ColNotes, ColSavedOn,
}

// LedgerTable renders saved records with day counts relative to today.
func LedgerTable(records []application.SavedRecord, today application.Date) Table {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		deadline := notAvailable
		daysToDeadline := notAvailable
		if r.Deadline != nil {
			deadline = r.Deadline.String()
			daysToDeadline = strconv.Itoa(today.DaysUntil(*r.Deadline))
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.Country,
			r.City,
			r.Organizer,
			orNotAvailable(r.Industry),
			r.Date.String(),
			deadline,
			strconv.Itoa(today.DaysUntil(r.Date)),
			daysToDeadline,
			yesNo(r.Benefits.Hotel),
			yesNo(r.Benefits.Airfare),
			orNotAvailable(r.Website),
			orNotAvailable(r.RegistrationURL),
			orNotAvailable(r.Email),
			orNotAvailable(r.Documents),
			r.Notes,
			application.DateOf(r.SavedAt).String(),
		})
	}
	return Table{
		Sheet:  "Saved Events",
		Header: LedgerColumns,
		Rows:   rows,
		Numeric: map[string]bool{
			ColSerial:            true,
			ColDaysUntilEvent:    true,
			ColDaysUntilDeadline: true,
		},
	}
}

// LedgerRows converts an imported ledger table to raw events. Computed
// columns and Saved On are ignored.
func LedgerRows(t Table, format Format) ([]application.RawEvent, error) {
	cols := indexColumns(t.Header)
	if err := cols.require(format, ColEventName, ColCountry, ColCity, ColEventDate); err != nil {
		return nil, err
	}

	raws := make([]application.RawEvent, 0, len(t.Rows))
	for _, row := range t.Rows {
		raws = append(raws, application.RawEvent{
			Name:            cols.get(row, ColEventName),
			Country:         cols.get(row, ColCountry),
			City:            cols.get(row, ColCity),
			Date:            dateCell(cols.get(row, ColEventDate)),
			Deadline:        dateCell(cols.get(row, ColRegistrationDue)),
			Organizer:       optionalCell(cols.get(row, ColOrganizer)),
			Industry:        optionalCell(cols.get(row, ColIndustry)),
			Hotel:           isYes(cols.get(row, ColHotel)),
			Airfare:         isYes(cols.get(row, ColAirfare)),
			Website:         optionalCell(cols.get(row, ColWebsite)),
			RegistrationURL: optionalCell(cols.get(row, ColRegistrationURL)),
			Email:           optionalCell(cols.get(row, ColEmail)),
			Documents:       optionalCell(cols.get(row, ColDocuments)),
			Notes:           cols.get(row, ColNotes),
		})
	}
	return raws, nil
}
