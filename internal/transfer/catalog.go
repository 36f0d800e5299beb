package transfer

import (
	"github.com/example/event-catalog/internal/application"
)

// Catalog column titles.
const (
	ColEventName        = "Event Name"
	ColCountry          = "Country"
	ColCity             = "City"
	ColDate             = "Date"
	ColDeadline         = "Deadline"
	ColIndustry         = "Industry"
	ColOrganizer        = "Organizer"
	ColHotel            = "Hotel"
	ColAirfare          = "Airfare"
	ColWebsite          = "Website"
	ColRegistrationLink = "Registration Link"
	ColEmail            = "Email"
	ColPhone            = "Phone"
	ColDocuments        = "Documents"
	ColStatus           = "Status"
)

// CatalogColumns is the header of a catalog export.
var CatalogColumns = []string{
	ColEventName, ColCountry, ColCity, ColDate, ColDeadline, ColIndustry, ColOrganizer,
	ColHotel, ColAirfare, ColWebsite, ColRegistrationLink, ColEmail, ColPhone, ColDocuments, ColStatus,
}

const notInterested = "Not interested"

// CatalogTable renders the catalog with the tracked status of each event.
func CatalogTable(events []application.Event, tracked []application.TrackedEvent) Table {
	status := make(map[string]application.Status, len(tracked))
	for _, t := range tracked {
		status[t.ID] = t.Status
	}

	rows := make([][]string, 0, len(events))
	for _, e := range events {
		s := notInterested
		if st, ok := status[e.ID]; ok {
			s = string(st)
		}
		rows = append(rows, []string{
			e.Name,
			e.Country,
			e.City,
			e.Date.String(),
			deadlineCell(e.Deadline),
			e.Industry,
			e.Organizer,
			yesNo(e.Benefits.Hotel),
			yesNo(e.Benefits.Airfare),
			e.Website,
			e.RegistrationURL,
			e.Email,
			e.Phone,
			e.Documents,
			s,
		})
	}
	return Table{Sheet: "Events", Header: CatalogColumns, Rows: rows}
}

// CatalogRows converts an imported catalog table to raw events. The Status
// column is informational and is not imported.
func CatalogRows(t Table, format Format) ([]application.RawEvent, error) {
	cols := indexColumns(t.Header)
	if err := cols.require(format, ColEventName, ColCountry, ColCity, ColDate); err != nil {
		return nil, err
	}

	raws := make([]application.RawEvent, 0, len(t.Rows))
	for _, row := range t.Rows {
		raws = append(raws, application.RawEvent{
			Name:            cols.get(row, ColEventName),
			Country:         cols.get(row, ColCountry),
			City:            cols.get(row, ColCity),
			Date:            dateCell(cols.get(row, ColDate)),
			Deadline:        dateCell(cols.get(row, ColDeadline)),
			Industry:        optionalCell(cols.get(row, ColIndustry)),
			Organizer:       optionalCell(cols.get(row, ColOrganizer)),
			Hotel:           isYes(cols.get(row, ColHotel)),
			Airfare:         isYes(cols.get(row, ColAirfare)),
			Website:         optionalCell(cols.get(row, ColWebsite)),
			RegistrationURL: optionalCell(cols.get(row, ColRegistrationLink)),
			Email:           optionalCell(cols.get(row, ColEmail)),
			Phone:           optionalCell(cols.get(row, ColPhone)),
			Documents:       optionalCell(cols.get(row, ColDocuments)),
		})
	}
	return raws, nil
}
