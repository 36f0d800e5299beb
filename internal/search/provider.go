// Package search supplies the catalog's online search collaborators: a
// dataset-backed SearchProvider and connectivity probes.
package search

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/event-catalog/internal/application"
)

//go:embed dataset.yaml
var builtinDataset []byte

// Entry is one programme of the dataset. Dates are offsets in days from the
// day the search runs, so the dataset never goes stale.
type Entry struct {
	Name            string `yaml:"name"`
	Country         string `yaml:"country"`
	City            string `yaml:"city"`
	InDays          int    `yaml:"in_days"`
	DeadlineInDays  *int   `yaml:"deadline_in_days"`
	Industry        string `yaml:"industry"`
	Organizer       string `yaml:"organizer"`
	OrganizerURL    string `yaml:"organizer_url"`
	Website         string `yaml:"website"`
	RegistrationURL string `yaml:"registration_url"`
	Email           string `yaml:"email"`
	Phone           string `yaml:"phone"`
	Documents       string `yaml:"documents"`
	Description     string `yaml:"description"`
	Hotel           bool   `yaml:"hotel"`
	Airfare         bool   `yaml:"airfare"`
}

// Dataset is the document stored in dataset.yaml.
type Dataset struct {
	Events []Entry `yaml:"events"`
}

// ParseDataset decodes a YAML dataset.
func ParseDataset(data []byte) (Dataset, error) {
	var dataset Dataset
	if err := yaml.Unmarshal(data, &dataset); err != nil {
		return Dataset{}, fmt.Errorf("parse search dataset: %w", err)
	}
	for i, entry := range dataset.Events {
		if entry.Name == "" || entry.Country == "" {
			return Dataset{}, fmt.Errorf("parse search dataset: events[%d] needs a name and a country", i)
		}
	}
	return dataset, nil
}

// BuiltinDataset returns the dataset compiled into the binary.
func BuiltinDataset() Dataset {
	dataset, err := ParseDataset(builtinDataset)
	if err != nil {
		panic(err)
	}
	return dataset
}

// LoadDatasetFile reads a dataset from path.
func LoadDatasetFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read search dataset: %w", err)
	}
	return ParseDataset(data)
}

// DatasetProvider answers searches from a Dataset.
type DatasetProvider struct {
	dataset Dataset
	now     func() time.Time
	latency time.Duration
	logger  *slog.Logger
}

// NewDatasetProvider creates a provider. A nil clock uses time.Now.
func NewDatasetProvider(dataset Dataset, now func() time.Time, logger *slog.Logger) *DatasetProvider {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetProvider{dataset: dataset, now: now, logger: logger}
}

// SetLatency delays every search, simulating a remote lookup.
func (p *DatasetProvider) SetLatency(d time.Duration) {
	p.latency = d
}

// Search returns the entries of region as raw events dated relative to today.
func (p *DatasetProvider) Search(ctx context.Context, region application.Region) ([]application.RawEvent, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	today := application.DateOf(p.now())
	var results []application.RawEvent
	for _, entry := range p.dataset.Events {
		if !region.Matches(entry.Country) {
			continue
		}
		raw := application.RawEvent{
			Name:            entry.Name,
			Country:         entry.Country,
			City:            entry.City,
			Date:            today.AddDays(entry.InDays).String(),
			Industry:        entry.Industry,
			Organizer:       entry.Organizer,
			OrganizerURL:    entry.OrganizerURL,
			Website:         entry.Website,
			RegistrationURL: entry.RegistrationURL,
			Email:           entry.Email,
			Phone:           entry.Phone,
			Documents:       entry.Documents,
			Description:     entry.Description,
			Hotel:           entry.Hotel,
			Airfare:         entry.Airfare,
		}
		if entry.DeadlineInDays != nil {
			raw.Deadline = today.AddDays(*entry.DeadlineInDays).String()
		}
		results = append(results, raw)
	}
	p.logger.DebugContext(ctx, "dataset search", "region", string(region), "results", len(results))
	return results, nil
}

var _ application.SearchProvider = (*DatasetProvider)(nil)
