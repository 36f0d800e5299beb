package application

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// BenefitFilter narrows events by the perks they offer.
type BenefitFilter string

const (
	BenefitAny     BenefitFilter = ""
	BenefitBoth    BenefitFilter = "both"
	BenefitHotel   BenefitFilter = "hotel"
	BenefitAirfare BenefitFilter = "airfare"
)

// SortKey selects the ordering of a query result.
type SortKey string

const (
	SortDateAsc  SortKey = "date-asc"
	SortDateDesc SortKey = "date-desc"
	SortPriority SortKey = "priority"
	SortDeadline SortKey = "deadline"
	SortName     SortKey = "name"
)

// Criteria is the full set of view filters applied by QueryEvents.
type Criteria struct {
	Region        Region
	Search        string
	Benefit       BenefitFilter
	Industry      string
	HorizonMonths int
	Sort          SortKey
}

var horizonTokens = map[string]int{
	"1month":  1,
	"3months": 3,
	"6months": 6,
	"1year":   12,
	"2years":  24,
}

// ParseHorizon converts a horizon token or month count to months. Empty and
// "all" mean no horizon.
func ParseHorizon(value string) (int, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "all" {
		return 0, nil
	}
	if months, ok := horizonTokens[value]; ok {
		return months, nil
	}
	months, err := strconv.Atoi(value)
	if err == nil {
		switch months {
		case 1, 3, 6, 12, 24:
			return months, nil
		}
	}
	return 0, fmt.Errorf("unknown date horizon %q", value)
}

// ParseBenefit converts user input to a BenefitFilter.
func ParseBenefit(value string) (BenefitFilter, error) {
	switch BenefitFilter(strings.ToLower(strings.TrimSpace(value))) {
	case "", "all":
		return BenefitAny, nil
	case BenefitBoth:
		return BenefitBoth, nil
	case BenefitHotel:
		return BenefitHotel, nil
	case BenefitAirfare:
		return BenefitAirfare, nil
	}
	return "", fmt.Errorf("unknown benefit filter %q", value)
}

// ParseSortKey converts user input to a SortKey, defaulting to ascending date.
func ParseSortKey(value string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortDateAsc:
		return SortDateAsc, nil
	case SortDateDesc:
		return SortDateDesc, nil
	case SortPriority:
		return SortPriority, nil
	case SortDeadline:
		return SortDeadline, nil
	case SortName:
		return SortName, nil
	}
	return "", fmt.Errorf("unknown sort key %q", value)
}

func (c Criteria) cacheKey(today Date) string {
	builder := strings.Builder{}
	builder.WriteString(today.String())
	builder.WriteString("|")
	builder.WriteString(string(c.Region))
	builder.WriteString("|")
	builder.WriteString(strings.ToLower(c.Search))
	builder.WriteString("|")
	builder.WriteString(string(c.Benefit))
	builder.WriteString("|")
	builder.WriteString(c.Industry)
	builder.WriteString("|")
	builder.WriteString(strconv.Itoa(c.HorizonMonths))
	builder.WriteString("|")
	builder.WriteString(string(c.Sort))
	return builder.String()
}

// QueryEvents filters and orders events for display. It never mutates its
// input and returns the same order for the same arguments.
func QueryEvents(events []Event, now time.Time, criteria Criteria) []Event {
	today := DateOf(now)
	search := strings.ToLower(strings.TrimSpace(criteria.Search))

	var horizon Date
	if criteria.HorizonMonths > 0 {
		horizon = today.AddMonths(criteria.HorizonMonths)
	}

	out := make([]Event, 0, len(events))
	for _, event := range events {
		if event.Date.Before(today) {
			continue
		}
		if !criteria.Region.Matches(event.Country) {
			continue
		}
		if search != "" && !matchesSearch(event, search) {
			continue
		}
		if !matchesBenefit(event.Benefits, criteria.Benefit) {
			continue
		}
		if criteria.Industry != "" && event.Industry != criteria.Industry {
			continue
		}
		if !horizon.IsZero() && event.Date.After(horizon) {
			continue
		}
		out = append(out, cloneEvent(event))
	}

	sortEvents(out, criteria.Sort)
	return out
}

func matchesSearch(event Event, term string) bool {
	for _, field := range []string{event.Name, event.Country, event.City, event.Industry, event.Organizer} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func matchesBenefit(b Benefits, filter BenefitFilter) bool {
	switch filter {
	case BenefitBoth:
		return b.Both()
	case BenefitHotel:
		return b.Hotel
	case BenefitAirfare:
		return b.Airfare
	default:
		return true
	}
}

func sortEvents(events []Event, key SortKey) {
	switch key {
	case SortDateDesc:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date.After(events[j].Date)
		})
	case SortPriority:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Benefits.Both() && !events[j].Benefits.Both()
		})
	case SortDeadline:
		sort.SliceStable(events, func(i, j int) bool {
			return deadlineLess(events[i].Deadline, events[j].Deadline)
		})
	case SortName:
		names := newNameCollator()
		sort.SliceStable(events, func(i, j int) bool {
			return names.CompareString(events[i].Name, events[j].Name) < 0
		})
	default:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Date.Before(events[j].Date)
		})
	}
}

// deadlineLess orders present deadlines ascending and missing ones last.
func deadlineLess(a, b *Date) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

// newNameCollator returns a fresh collator; collators are not safe for
// concurrent use.
func newNameCollator() *collate.Collator {
	return collate.New(language.English)
}
