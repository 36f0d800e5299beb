package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Recommendation is a piece of advice derived from the upcoming catalog.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CountryCount names the country hosting the most upcoming events.
type CountryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MonthCount is the number of upcoming events in one calendar month (YYYY-MM).
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// StatusStats counts upcoming tracked events per status.
type StatusStats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"byStatus"`
}

// Insights is the dashboard summary of the catalog.
type Insights struct {
	RegionCounts          map[Region]int   `json:"regionCounts"`
	Tracked               StatusStats      `json:"tracked"`
	TopCountry            CountryCount     `json:"topCountry"`
	AverageEventsPerMonth float64          `json:"averageEventsPerMonth"`
	MonthlyTrend          []MonthCount     `json:"monthlyTrend"`
	Recommendations       []Recommendation `json:"recommendations"`
}

// InsightsService computes read-only statistics over the catalog.
type InsightsService struct {
	catalog *CatalogService
	now     func() time.Time
	logger  *slog.Logger
}

// NewInsightsService constructs an insights service over the catalog.
func NewInsightsService(catalog *CatalogService, now func() time.Time) *InsightsService {
	return NewInsightsServiceWithLogger(catalog, now, nil)
}

// NewInsightsServiceWithLogger constructs an insights service with a specified logger.
func NewInsightsServiceWithLogger(catalog *CatalogService, now func() time.Time, logger *slog.Logger) *InsightsService {
	if now == nil {
		now = time.Now
	}
	return &InsightsService{catalog: catalog, now: now, logger: defaultLogger(logger)}
}

// Summary computes every insight from one consistent snapshot.
func (s *InsightsService) Summary(ctx context.Context) (summary Insights, err error) {
	if s == nil || s.catalog == nil {
		err = fmt.Errorf("InsightsService is not configured")
		return
	}

	logger := serviceLogger(ctx, s.logger, "InsightsService", "Summary")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute insights", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	events, tracked, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return Insights{}, err
	}
	today := DateOf(s.now())
	upcoming := upcomingEvents(events, today)
	return Insights{
		RegionCounts:          regionCounts(events, today),
		Tracked:               trackedStats(tracked, today),
		TopCountry:            TopCountry(upcoming),
		AverageEventsPerMonth: AverageEventsPerMonth(upcoming, today),
		MonthlyTrend:          MonthlyTrend(upcoming),
		Recommendations:       Recommendations(upcoming, today),
	}, nil
}

// RegionCounts returns the number of upcoming events per region, plus all.
func (s *InsightsService) RegionCounts(ctx context.Context) (map[Region]int, error) {
	events, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	return regionCounts(events, DateOf(s.now())), nil
}

// StatusStats counts upcoming tracked events by status.
func (s *InsightsService) StatusStats(ctx context.Context) (StatusStats, error) {
	_, tracked, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return StatusStats{}, err
	}
	return trackedStats(tracked, DateOf(s.now())), nil
}

func trackedStats(tracked []TrackedEvent, today Date) StatusStats {
	stats := StatusStats{ByStatus: statusCounts(tracked, today)}
	for _, count := range stats.ByStatus {
		stats.Total += count
	}
	return stats
}

func upcomingEvents(events []Event, today Date) []Event {
	out := make([]Event, 0, len(events))
	for _, event := range events {
		if !event.Date.Before(today) {
			out = append(out, event)
		}
	}
	return out
}

// TopCountry returns the country with the most events. Ties keep the
// country seen first; an empty input yields N/A.
func TopCountry(events []Event) CountryCount {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, event := range events {
		if _, ok := counts[event.Country]; !ok {
			order = append(order, event.Country)
		}
		counts[event.Country]++
	}
	top := CountryCount{Name: "N/A"}
	for _, country := range order {
		if counts[country] > top.Count {
			top = CountryCount{Name: country, Count: counts[country]}
		}
	}
	return top
}

// AverageEventsPerMonth spreads the events over the calendar months from
// today to the latest event, both inclusive.
func AverageEventsPerMonth(events []Event, today Date) float64 {
	if len(events) == 0 {
		return 0
	}
	latest := events[0].Date
	for _, event := range events[1:] {
		if event.Date.After(latest) {
			latest = event.Date
		}
	}
	months := (latest.Year-today.Year)*12 + int(latest.Month-today.Month) + 1
	if months <= 0 {
		months = 1
	}
	return float64(len(events)) / float64(months)
}

// MonthlyTrend counts events per calendar month in chronological order.
func MonthlyTrend(events []Event) []MonthCount {
	counts := make(map[string]int)
	for _, event := range events {
		counts[fmt.Sprintf("%04d-%02d", event.Date.Year, int(event.Date.Month))]++
	}
	months := make([]string, 0, len(counts))
	for month := range counts {
		months = append(months, month)
	}
	sort.Strings(months)
	trend := make([]MonthCount, len(months))
	for i, month := range months {
		trend[i] = MonthCount{Month: month, Count: counts[month]}
	}
	return trend
}

// Recommendations derives advice from upcoming events.
func Recommendations(events []Event, today Date) []Recommendation {
	var recs []Recommendation

	premium, urgent, india := 0, 0, 0
	countries := make(map[string]struct{})
	for _, event := range events {
		if event.Benefits.Both() {
			premium++
		}
		if event.Deadline != nil {
			if days := today.DaysUntil(*event.Deadline); days > 0 && days <= 30 {
				urgent++
			}
		}
		if event.Country == "India" {
			india++
		}
		countries[event.Country] = struct{}{}
	}

	if premium > 0 {
		recs = append(recs, Recommendation{
			Title:       "Premium Opportunities Available",
			Description: fmt.Sprintf("%d events offer both hotel and airfare. These provide maximum value!", premium),
			Category:    "High Priority",
		})
	}
	if urgent > 0 {
		recs = append(recs, Recommendation{
			Title:       "Urgent Application Deadlines",
			Description: fmt.Sprintf("%d events have deadlines within 30 days. Apply soon!", urgent),
			Category:    "Time Sensitive",
		})
	}
	if india > 0 {
		recs = append(recs, Recommendation{
			Title:       "India Events",
			Description: fmt.Sprintf("%d upcoming events in India. No international travel needed!", india),
			Category:    "Local Opportunity",
		})
	}
	if len(countries) > 5 {
		recs = append(recs, Recommendation{
			Title:       "Global Reach",
			Description: fmt.Sprintf("Events available in %d countries. Consider expanding your network internationally!", len(countries)),
			Category:    "Strategy",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Title:       "Search for Events",
			Description: "Run an online search to find the latest hosted buyer events.",
			Category:    "Action Needed",
		})
	}
	return recs
}
