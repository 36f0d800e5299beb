package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/event-catalog/internal/application"
	"github.com/example/event-catalog/internal/persistence"
)

// Services is a fully wired set of application services sharing one store.
type Services struct {
	Repo      application.StateRepository
	Catalog   *application.CatalogService
	Tracker   *application.TrackerService
	Ledger    *application.LedgerService
	Ingestion *application.IngestionService
	Insights  *application.InsightsService
	Notifier  *application.NotifierService
	Sink      *RecordingSink
}

// ServiceFactory builds services with deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// ServiceDeps are the collaborators of the wired services. Nil fields get
// an in-memory store, an online probe and a provider returning nothing.
type ServiceDeps struct {
	Repo     application.StateRepository
	Provider application.SearchProvider
	Probe    application.ConnectivityProbe
}

// NewServices wires every application service over deps.
func (f *ServiceFactory) NewServices(deps ServiceDeps) *Services {
	repo := deps.Repo
	if repo == nil {
		repo = application.NewStateRepository(persistence.NewMemoryStore())
	}
	provider := deps.Provider
	if provider == nil {
		provider = StaticProvider(nil)
	}
	probe := deps.Probe
	if probe == nil {
		probe = Online(true)
	}

	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	catalog := application.NewCatalogServiceWithLogger(repo, ids, now, f.Logger)
	ledger := application.NewLedgerServiceWithLogger(repo, ids, now, f.Logger)
	sink := &RecordingSink{}
	return &Services{
		Repo:      repo,
		Catalog:   catalog,
		Tracker:   application.NewTrackerServiceWithLogger(catalog, now, f.Logger),
		Ledger:    ledger,
		Ingestion: application.NewIngestionServiceWithLogger(catalog, provider, probe, ids, now, f.Logger),
		Insights:  application.NewInsightsServiceWithLogger(catalog, now, f.Logger),
		Notifier:  application.NewNotifierServiceWithLogger(ledger, repo, sink, now, f.Logger),
		Sink:      sink,
	}
}

// StaticProvider is a search provider returning fixed rows for every region.
type StaticProvider []application.RawEvent

func (p StaticProvider) Search(ctx context.Context, region application.Region) ([]application.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]application.RawEvent(nil), p...), nil
}

// Online is a fixed connectivity probe.
type Online bool

func (o Online) Online(context.Context) bool { return bool(o) }

// RecordingSink captures delivered notifications.
type RecordingSink struct {
	mu   sync.Mutex
	sent []application.Notification
}

func (s *RecordingSink) Notify(ctx context.Context, n application.Notification) error {
	s.mu.Lock()
	s.sent = append(s.sent, n)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of the delivered notifications.
func (s *RecordingSink) Sent() []application.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]application.Notification(nil), s.sent...)
}
