package application

import (
	"reflect"
	"testing"
	"time"
)

func queryFixture(today Date) []Event {
	return []Event{
		{ID: "past", Name: "Old Fair", Country: "India", City: "Delhi", Date: today.AddDays(-1)},
		{ID: "delhi", Name: "Delhi Expo", Country: "India", City: "New Delhi", Date: today.AddDays(40), Industry: "Trade",
			Benefits: Benefits{Hotel: true, Airfare: true}, Deadline: datePtr(today.AddDays(20))},
		{ID: "canton", Name: "Canton Fair", Country: "China", City: "Guangzhou", Date: today.AddDays(10), Industry: "Manufacturing",
			Benefits: Benefits{Hotel: true}},
		{ID: "nepal", Name: "Nepal Travel Mart", Country: "Nepal", City: "Kathmandu", Date: today.AddDays(200), Industry: "Tourism",
			Benefits: Benefits{Airfare: true}, Organizer: "Nepal Tourism Board"},
		{ID: "berlin", Name: "ITB Berlin", Country: "Germany", City: "Berlin", Date: today, Industry: "Tourism"},
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, event := range events {
		out[i] = event.ID
	}
	return out
}

func TestQueryEvents(t *testing.T) {
	today := DateOf(referenceNow)
	events := queryFixture(today)

	cases := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{name: "default drops past and sorts by date", criteria: Criteria{}, want: []string{"berlin", "canton", "delhi", "nepal"}},
		{name: "region china", criteria: Criteria{Region: RegionChina}, want: []string{"canton"}},
		{name: "region south asia", criteria: Criteria{Region: RegionSouthAsia}, want: []string{"nepal"}},
		{name: "region rest of world", criteria: Criteria{Region: RegionRestOfWorld}, want: []string{"berlin"}},
		{name: "search matches organizer", criteria: Criteria{Search: "tourism board"}, want: []string{"nepal"}},
		{name: "search is case insensitive over city", criteria: Criteria{Search: "GUANGZHOU"}, want: []string{"canton"}},
		{name: "benefit both", criteria: Criteria{Benefit: BenefitBoth}, want: []string{"delhi"}},
		{name: "benefit hotel", criteria: Criteria{Benefit: BenefitHotel}, want: []string{"canton", "delhi"}},
		{name: "benefit airfare", criteria: Criteria{Benefit: BenefitAirfare}, want: []string{"delhi", "nepal"}},
		{name: "industry exact", criteria: Criteria{Industry: "Tourism"}, want: []string{"berlin", "nepal"}},
		{name: "horizon one month", criteria: Criteria{HorizonMonths: 1}, want: []string{"berlin", "canton"}},
		{name: "horizon three months", criteria: Criteria{HorizonMonths: 3}, want: []string{"berlin", "canton", "delhi"}},
		{name: "date descending", criteria: Criteria{Sort: SortDateDesc}, want: []string{"nepal", "delhi", "canton", "berlin"}},
		{name: "priority is stable over input order", criteria: Criteria{Sort: SortPriority}, want: []string{"delhi", "canton", "nepal", "berlin"}},
		{name: "name", criteria: Criteria{Sort: SortName}, want: []string{"canton", "delhi", "berlin", "nepal"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(QueryEvents(events, referenceNow, tc.criteria))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestQueryEventsRegionScenario(t *testing.T) {
	tomorrow := DateOf(referenceNow).AddDays(1)
	events := []Event{
		{ID: "a", Name: "A", Country: "India", Date: tomorrow},
		{ID: "b", Name: "B", Country: "China", Date: tomorrow},
		{ID: "c", Name: "C", Country: "Nepal", Date: tomorrow},
	}
	got := ids(QueryEvents(events, referenceNow, Criteria{Region: RegionChina}))
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("expected only the China event, got %v", got)
	}
}

func TestQueryEventsDeadlineScenario(t *testing.T) {
	today := DateOf(referenceNow)
	date := today.AddDays(30)
	day5 := today.AddDays(5)
	day2 := today.AddDays(2)
	events := []Event{
		{ID: "none", Name: "None", Country: "India", Date: date},
		{ID: "day5", Name: "Five", Country: "India", Date: date, Deadline: &day5},
		{ID: "day2", Name: "Two", Country: "India", Date: date, Deadline: &day2},
	}
	got := ids(QueryEvents(events, referenceNow, Criteria{Sort: SortDeadline}))
	want := []string{"day2", "day5", "none"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestQueryEventsIsPure(t *testing.T) {
	today := DateOf(referenceNow)
	events := queryFixture(today)
	before := cloneEvents(events)
	criteria := Criteria{Sort: SortDeadline, Benefit: BenefitHotel}

	first := QueryEvents(events, referenceNow, criteria)
	second := QueryEvents(events, referenceNow, criteria)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %v and %v", ids(first), ids(second))
	}
	if !reflect.DeepEqual(events, before) {
		t.Fatalf("expected input to remain unchanged")
	}

	first[0].Name = "changed"
	if events[1].Name == "changed" || events[2].Name == "changed" {
		t.Fatalf("expected result to be independent of input")
	}
}

func TestQueryEventsNameSortIsLocaleAware(t *testing.T) {
	date := DateOf(referenceNow).AddDays(3)
	events := []Event{
		{ID: "z", Name: "Zagreb Fair", Date: date},
		{ID: "e", Name: "Élan Expo", Date: date},
		{ID: "a", Name: "alpha show", Date: date},
	}
	got := ids(QueryEvents(events, referenceNow, Criteria{Sort: SortName}))
	want := []string{"a", "e", "z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseCriteriaValues(t *testing.T) {
	t.Run("horizon", func(t *testing.T) {
		for input, want := range map[string]int{"": 0, "all": 0, "1month": 1, "3months": 3, "6": 6, "1year": 12, "2years": 24} {
			got, err := ParseHorizon(input)
			if err != nil || got != want {
				t.Fatalf("ParseHorizon(%q) = %d, %v; want %d", input, got, err, want)
			}
		}
		if _, err := ParseHorizon("5"); err == nil {
			t.Fatalf("expected error for unsupported horizon")
		}
	})

	t.Run("benefit", func(t *testing.T) {
		if got, err := ParseBenefit("Both"); err != nil || got != BenefitBoth {
			t.Fatalf("unexpected result %q %v", got, err)
		}
		if _, err := ParseBenefit("spa"); err == nil {
			t.Fatalf("expected error for unknown benefit")
		}
	})

	t.Run("sort", func(t *testing.T) {
		if got, err := ParseSortKey(""); err != nil || got != SortDateAsc {
			t.Fatalf("expected default sort, got %q %v", got, err)
		}
		if _, err := ParseSortKey("random"); err == nil {
			t.Fatalf("expected error for unknown sort key")
		}
	})
}

func TestHorizonUsesCalendarMonths(t *testing.T) {
	now := time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "edge", Name: "Edge", Date: NewDate(2025, time.March, 3)},
		{ID: "beyond", Name: "Beyond", Date: NewDate(2025, time.March, 4)},
	}
	got := ids(QueryEvents(events, now, Criteria{HorizonMonths: 1}))
	if !reflect.DeepEqual(got, []string{"edge"}) {
		t.Fatalf("expected horizon to end on March 3, got %v", got)
	}
}
