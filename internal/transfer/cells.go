package transfer

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/event-catalog/internal/application"
)

const notAvailable = "N/A"

// spreadsheetDateLayouts are the renderings spreadsheet tools commonly apply to date cells.
var spreadsheetDateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"2006/01/02",
}

// dateCell returns value as YYYY-MM-DD when it is recognisable as a date.
// Unrecognised values pass through so validation can report them.
func dateCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, notAvailable) {
		return ""
	}
	if d, err := application.ParseDate(value); err == nil {
		return d.String()
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return application.DateOf(t).String()
		}
	}
	for _, layout := range spreadsheetDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return application.DateOf(t).String()
		}
	}
	return value
}

// optionalCell maps the N/A placeholder to empty.
func optionalCell(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), notAvailable) {
		return ""
	}
	return value
}

func orNotAvailable(value string) string {
	if strings.TrimSpace(value) == "" {
		return notAvailable
	}
	return value
}

func deadlineCell(deadline *application.Date) string {
	if deadline == nil {
		return ""
	}
	return deadline.String()
}
