package application

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestInsightsService_Summary(t *testing.T) {
	ctx := context.Background()
	today := DateOf(referenceNow)
	catalog := newTestCatalog(newStateRepoStub())
	tracker := NewTrackerService(catalog, fixedNow(referenceNow))
	insights := NewInsightsService(catalog, fixedNow(referenceNow))

	premium := sampleEvent("Delhi Expo", "India", today.AddDays(40))
	premium.Benefits = Benefits{Hotel: true, Airfare: true}
	premium.Deadline = datePtr(today.AddDays(20))
	events := []Event{
		premium,
		sampleEvent("Mumbai Fair", "India", today.AddDays(70)),
		sampleEvent("Canton Fair", "China", today.AddDays(10)),
		sampleEvent("Nepal Mart", "Nepal", today.AddDays(5)),
		sampleEvent("Old Fair", "Germany", today.AddDays(-1)),
	}
	if _, err := catalog.BulkIngest(ctx, events); err != nil {
		t.Fatalf("BulkIngest returned error: %v", err)
	}
	stored, _ := catalog.List(ctx)
	if _, err := tracker.ToggleInterest(ctx, stored[0].ID); err != nil {
		t.Fatalf("ToggleInterest returned error: %v", err)
	}
	if _, err := tracker.SetStatus(ctx, stored[0].ID, StatusApplied); err != nil {
		t.Fatalf("SetStatus returned error: %v", err)
	}

	summary, err := insights.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}

	wantRegions := map[Region]int{RegionAll: 4, RegionIndia: 2, RegionChina: 1, RegionSouthAsia: 1, RegionRestOfWorld: 0}
	if !reflect.DeepEqual(summary.RegionCounts, wantRegions) {
		t.Fatalf("unexpected region counts %v", summary.RegionCounts)
	}
	if summary.Tracked.Total != 1 || summary.Tracked.ByStatus[StatusApplied] != 1 {
		t.Fatalf("unexpected tracked stats %+v", summary.Tracked)
	}
	if summary.TopCountry != (CountryCount{Name: "India", Count: 2}) {
		t.Fatalf("unexpected top country %+v", summary.TopCountry)
	}
	// Today is 2025-03-10 and the latest event is 2025-05-19: three months.
	if summary.AverageEventsPerMonth != 4.0/3.0 {
		t.Fatalf("unexpected average %v", summary.AverageEventsPerMonth)
	}
	wantTrend := []MonthCount{{Month: "2025-03", Count: 2}, {Month: "2025-04", Count: 1}, {Month: "2025-05", Count: 1}}
	if !reflect.DeepEqual(summary.MonthlyTrend, wantTrend) {
		t.Fatalf("unexpected trend %+v", summary.MonthlyTrend)
	}

	titles := make([]string, len(summary.Recommendations))
	for i, rec := range summary.Recommendations {
		titles[i] = rec.Title
	}
	wantTitles := []string{"Premium Opportunities Available", "Urgent Application Deadlines", "India Events"}
	if !reflect.DeepEqual(titles, wantTitles) {
		t.Fatalf("unexpected recommendations %v", titles)
	}
}

func TestRecommendationsFallback(t *testing.T) {
	recs := Recommendations(nil, DateOf(referenceNow))
	if len(recs) != 1 || recs[0].Title != "Search for Events" || recs[0].Category != "Action Needed" {
		t.Fatalf("unexpected fallback %+v", recs)
	}
}

func TestRecommendationsGlobalReach(t *testing.T) {
	date := DateOf(referenceNow).AddDays(10)
	var events []Event
	for _, country := range []string{"Germany", "France", "Spain", "Italy", "Japan", "Brazil"} {
		events = append(events, sampleEvent("Fair "+country, country, date))
	}
	recs := Recommendations(events, DateOf(referenceNow))
	if len(recs) != 1 || recs[0].Title != "Global Reach" || recs[0].Category != "Strategy" {
		t.Fatalf("expected global reach advice, got %+v", recs)
	}
}

func TestRecommendationsIgnoreDeadlineToday(t *testing.T) {
	today := DateOf(referenceNow)
	event := sampleEvent("Expo", "Germany", today.AddDays(10))
	event.Deadline = datePtr(today)
	recs := Recommendations([]Event{event}, today)
	if recs[0].Title != "Search for Events" {
		t.Fatalf("expected a deadline of today not to count as urgent, got %+v", recs)
	}
}

func TestTopCountryAndAverageWithoutEvents(t *testing.T) {
	if got := TopCountry(nil); got != (CountryCount{Name: "N/A"}) {
		t.Fatalf("unexpected top country %+v", got)
	}
	if got := AverageEventsPerMonth(nil, DateOf(time.Now())); got != 0 {
		t.Fatalf("expected zero average, got %v", got)
	}
}
