package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/event-catalog/internal/application"
	"github.com/example/event-catalog/internal/testfixtures"
)

type testServer struct {
	handler  http.Handler
	services *testfixtures.Services
}

func newTestServer(t *testing.T, deps testfixtures.ServiceDeps) *testServer {
	t.Helper()
	factory := testfixtures.NewServiceFactory()
	services := factory.NewServices(deps)
	now := factory.Clock.NowFunc()
	handler := NewRouter(RouterConfig{
		Events:   NewEventHandler(services.Catalog, services.Ingestion, now, nil),
		Tracker:  NewTrackerHandler(services.Tracker, nil),
		Saved:    NewSavedHandler(services.Ledger, services.Catalog, now, nil),
		Insights: NewInsightsHandler(services.Insights, nil),
	})
	return &testServer{handler: handler, services: services}
}

func (s *testServer) do(method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return s.do(method, target, body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (s *testServer) createEvent(t *testing.T, fixture testfixtures.EventFixture) application.Event {
	t.Helper()
	rec := s.doJSON(t, http.MethodPost, "/events", fixture.Raw())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating %s, got %d: %s", fixture.Name, rec.Code, rec.Body.String())
	}
	return decode[eventResponse](t, rec).Event
}

func TestEventHandlers(t *testing.T) {
	t.Run("create and list with filters", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		srv.createEvent(t, testfixtures.NewEventFixture("Delhi Expo", testfixtures.WithBenefits(true, true)))
		srv.createEvent(t, testfixtures.NewEventFixture("Canton Fair", testfixtures.InCountry("China", "Guangzhou")))

		rec := srv.do(http.MethodGet, "/events?region=china", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		list := decode[listEventsResponse](t, rec)
		if list.Count != 1 || list.Events[0].Name != "Canton Fair" {
			t.Fatalf("unexpected china listing %+v", list)
		}

		list = decode[listEventsResponse](t, srv.do(http.MethodGet, "/events?benefit=both", nil))
		if list.Count != 1 || list.Events[0].Name != "Delhi Expo" {
			t.Fatalf("unexpected benefit listing %+v", list)
		}
	})

	t.Run("invalid query parameters are reported per field", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		rec := srv.do(http.MethodGet, "/events?sort=random&horizon=5years", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		resp := decode[errorResponse](t, rec)
		if resp.Errors["sort"] == "" || resp.Errors["horizon"] == "" {
			t.Fatalf("expected sort and horizon errors, got %v", resp.Errors)
		}
	})

	t.Run("validation and decoding errors", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		raw := testfixtures.NewEventFixture("Expo").Raw()
		raw.Country = ""
		rec := srv.doJSON(t, http.MethodPost, "/events", raw)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if _, ok := decode[errorResponse](t, rec).Errors["country"]; !ok {
			t.Fatalf("expected country error")
		}

		if rec := srv.do(http.MethodPost, "/events", []byte("{")); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
		}
	})

	t.Run("duplicates conflict", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		srv.createEvent(t, testfixtures.NewEventFixture("Expo"))
		rec := srv.doJSON(t, http.MethodPost, "/events", testfixtures.NewEventFixture("expo").Raw())
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("update, delete and unknown ids", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		event := srv.createEvent(t, testfixtures.NewEventFixture("Expo"))

		raw := testfixtures.NewEventFixture("Expo Renamed", testfixtures.DeadlineIn(10)).Raw()
		rec := srv.doJSON(t, http.MethodPut, "/events/"+event.ID, raw)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		updated := decode[eventResponse](t, rec).Event
		if updated.ID != event.ID || updated.Name != "Expo Renamed" || updated.Deadline == nil {
			t.Fatalf("unexpected update %+v", updated)
		}

		if rec := srv.doJSON(t, http.MethodPut, "/events/event_missing", raw); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 updating unknown id, got %d", rec.Code)
		}
		if rec := srv.do(http.MethodDelete, "/events/"+event.ID, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if rec := srv.do(http.MethodGet, "/events/"+event.ID, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		rec := srv.do(http.MethodPatch, "/events", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestSearchHandler(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{Probe: testfixtures.Online(false)})
		rec := srv.doJSON(t, http.MethodPost, "/search", searchRequest{Region: "india"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("ingests provider results", func(t *testing.T) {
		provider := testfixtures.StaticProvider{
			testfixtures.NewEventFixture("Textile Fair").Raw(),
			testfixtures.NewEventFixture("Old Fair", testfixtures.DaysAhead(-2)).Raw(),
		}
		srv := newTestServer(t, testfixtures.ServiceDeps{Provider: provider})
		rec := srv.doJSON(t, http.MethodPost, "/search", searchRequest{Region: "india"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if result := decode[application.SearchResult](t, rec); result.Found != 1 || result.Added != 1 {
			t.Fatalf("unexpected result %+v", result)
		}
	})

	t.Run("unknown region", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		rec := srv.doJSON(t, http.MethodPost, "/search", searchRequest{Region: "atlantis"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestTrackerHandlers(t *testing.T) {
	srv := newTestServer(t, testfixtures.ServiceDeps{})
	event := srv.createEvent(t, testfixtures.NewEventFixture("Expo"))

	if rec := srv.doJSON(t, http.MethodPut, "/tracked/"+event.ID+"/status", statusRequest{Status: "applied"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for untracked event, got %d", rec.Code)
	}

	rec := srv.do(http.MethodPost, "/tracked/"+event.ID+"/toggle", nil)
	if rec.Code != http.StatusOK || !decode[toggleResponse](t, rec).Tracked {
		t.Fatalf("expected event to become tracked, got %d", rec.Code)
	}

	rec = srv.doJSON(t, http.MethodPut, "/tracked/"+event.ID+"/status", statusRequest{Status: "applied"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := srv.doJSON(t, http.MethodPut, "/tracked/"+event.ID+"/status", statusRequest{Status: "maybe"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d", rec.Code)
	}

	list := decode[listTrackedResponse](t, srv.do(http.MethodGet, "/tracked?status=applied", nil))
	if list.Count != 1 || list.Tracked[0].Status != application.StatusApplied {
		t.Fatalf("unexpected tracked list %+v", list)
	}
	list = decode[listTrackedResponse](t, srv.do(http.MethodGet, "/tracked?status=confirmed", nil))
	if list.Count != 0 {
		t.Fatalf("expected no confirmed events, got %+v", list)
	}

	if rec := srv.do(http.MethodPost, "/tracked/event_missing/toggle", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 toggling unknown event, got %d", rec.Code)
	}
}

func TestSavedHandlers(t *testing.T) {
	srv := newTestServer(t, testfixtures.ServiceDeps{})
	event := srv.createEvent(t, testfixtures.NewEventFixture("Expo", testfixtures.DeadlineIn(5)))

	rec := srv.doJSON(t, http.MethodPost, "/saved", saveRequest{EventID: event.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	saved := decode[savedResponse](t, rec).Record
	if !strings.HasPrefix(saved.ID, "saved_") || saved.DaysUntilEvent != 30 || saved.Urgency != application.UrgencySoon {
		t.Fatalf("unexpected saved record %+v", saved)
	}

	if rec := srv.doJSON(t, http.MethodPost, "/saved", saveRequest{EventID: event.ID}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for already saved event, got %d", rec.Code)
	}
	if rec := srv.doJSON(t, http.MethodPost, "/saved", saveRequest{EventID: "event_missing"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 saving unknown event, got %d", rec.Code)
	}

	rec = srv.doJSON(t, http.MethodPut, "/saved/"+saved.ID+"/notes", notesRequest{Notes: "bring brochures"})
	if rec.Code != http.StatusOK || decode[savedResponse](t, rec).Record.Notes != "bring brochures" {
		t.Fatalf("expected notes to be updated, got %d", rec.Code)
	}

	custom := testfixtures.NewEventFixture("Custom Summit", testfixtures.InCountry("Nepal", "Kathmandu")).Raw()
	if rec := srv.doJSON(t, http.MethodPost, "/saved/custom", custom); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for custom event, got %d: %s", rec.Code, rec.Body.String())
	}

	list := decode[listSavedResponse](t, srv.do(http.MethodGet, "/saved?sort=name", nil))
	if list.Count != 2 || list.Records[0].Name != "Custom Summit" {
		t.Fatalf("unexpected saved list %+v", list)
	}
	stats := decode[application.LedgerStats](t, srv.do(http.MethodGet, "/saved/stats", nil))
	if stats.Total != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if rec := srv.do(http.MethodDelete, "/saved/"+saved.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := srv.do(http.MethodDelete, "/saved/"+saved.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestSavedBulkHandler(t *testing.T) {
	srv := newTestServer(t, testfixtures.ServiceDeps{})
	srv.createEvent(t, testfixtures.NewEventFixture("Expo"))
	srv.createEvent(t, testfixtures.NewEventFixture("Canton Fair", testfixtures.InCountry("China", "Guangzhou")))

	rec := srv.do(http.MethodPost, "/saved/bulk?region=china", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[bulkSaveResponse](t, rec); got != (bulkSaveResponse{Inserted: 1}) {
		t.Fatalf("unexpected china bulk save %+v", got)
	}

	rec = srv.do(http.MethodPost, "/saved/bulk", nil)
	if got := decode[bulkSaveResponse](t, rec); got != (bulkSaveResponse{Inserted: 1, Duplicates: 1}) {
		t.Fatalf("unexpected full bulk save %+v", got)
	}
	if list := decode[listSavedResponse](t, srv.do(http.MethodGet, "/saved", nil)); list.Count != 2 {
		t.Fatalf("expected two saved records, got %+v", list)
	}

	if rec := srv.do(http.MethodPost, "/saved/bulk?region=mars", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown region, got %d", rec.Code)
	}
}

func TestTransferHandlers(t *testing.T) {
	t.Run("catalog xlsx round trip", func(t *testing.T) {
		source := newTestServer(t, testfixtures.ServiceDeps{})
		event := source.createEvent(t, testfixtures.NewEventFixture("Expo", testfixtures.WithBenefits(true, false)))
		source.do(http.MethodPost, "/tracked/"+event.ID+"/toggle", nil)

		rec := source.do(http.MethodGet, "/events/export?format=xlsx", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get("Content-Disposition"), "hosted-buyer-events-2025-03-10.xlsx") {
			t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
		}

		target := newTestServer(t, testfixtures.ServiceDeps{})
		imported := target.do(http.MethodPost, "/events/import?format=xlsx", rec.Body.Bytes())
		if imported.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", imported.Code, imported.Body.String())
		}
		if result := decode[application.ImportResult](t, imported); result.Accepted != 1 {
			t.Fatalf("unexpected import result %+v", result)
		}
		list := decode[listEventsResponse](t, target.do(http.MethodGet, "/events", nil))
		if list.Count != 1 || !list.Events[0].Benefits.Hotel || list.Events[0].Benefits.Airfare {
			t.Fatalf("unexpected imported events %+v", list)
		}
	})

	t.Run("catalog json round trip keeps tracked events", func(t *testing.T) {
		source := newTestServer(t, testfixtures.ServiceDeps{})
		event := source.createEvent(t, testfixtures.NewEventFixture("Expo"))
		source.do(http.MethodPost, "/tracked/"+event.ID+"/toggle", nil)
		exported := source.do(http.MethodGet, "/events/export", nil)

		target := newTestServer(t, testfixtures.ServiceDeps{})
		if rec := target.do(http.MethodPost, "/events/import", exported.Body.Bytes()); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		list := decode[listTrackedResponse](t, target.do(http.MethodGet, "/tracked", nil))
		if list.Count != 1 {
			t.Fatalf("expected tracked event to be restored, got %+v", list)
		}
	})

	t.Run("ledger csv round trip", func(t *testing.T) {
		source := newTestServer(t, testfixtures.ServiceDeps{})
		event := source.createEvent(t, testfixtures.NewEventFixture("Expo"))
		source.doJSON(t, http.MethodPost, "/saved", saveRequest{EventID: event.ID})

		rec := source.do(http.MethodGet, "/saved/export?format=csv", nil)
		if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "SN,Event Name,Country") {
			t.Fatalf("unexpected csv export %d %q", rec.Code, rec.Body.String())
		}

		target := newTestServer(t, testfixtures.ServiceDeps{})
		req := httptest.NewRequest(http.MethodPost, "/saved/import", bytes.NewReader(rec.Body.Bytes()))
		req.Header.Set("Content-Type", "text/csv")
		imported := httptest.NewRecorder()
		target.handler.ServeHTTP(imported, req)
		if imported.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", imported.Code, imported.Body.String())
		}
		if result := decode[application.ImportResult](t, imported); result.Accepted != 1 {
			t.Fatalf("unexpected import result %+v", result)
		}
	})

	t.Run("missing columns and empty bodies are bad requests", func(t *testing.T) {
		srv := newTestServer(t, testfixtures.ServiceDeps{})
		if rec := srv.do(http.MethodPost, "/events/import?format=csv", []byte("Event Name,Country\nExpo,India\n")); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for missing columns, got %d", rec.Code)
		}
		if rec := srv.do(http.MethodPost, "/saved/import", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty body, got %d", rec.Code)
		}
		if rec := srv.do(http.MethodGet, "/saved/export?format=pdf", nil); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for unknown format, got %d", rec.Code)
		}
	})
}

func TestInsightsHandler(t *testing.T) {
	srv := newTestServer(t, testfixtures.ServiceDeps{})
	srv.createEvent(t, testfixtures.NewEventFixture("Expo"))

	rec := srv.do(http.MethodGet, "/insights", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	summary := decode[application.Insights](t, rec)
	if summary.RegionCounts[application.RegionIndia] != 1 || summary.TopCountry.Name != "India" {
		t.Fatalf("unexpected insights %+v", summary)
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	healthy := true
	handler := NewRouter(RouterConfig{
		Metrics: metrics,
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("store unreachable")
		},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	healthy = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Body.String() != "# metrics\n" {
		t.Fatalf("unexpected metrics body %q", rec.Body.String())
	}
}
