package http

import (
	"context"
	"net/http"
)

type RouterConfig struct {
	Events   *EventHandler
	Tracker  *TrackerHandler
	Saved    *SavedHandler
	Insights *InsightsHandler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Health backs GET /healthz; a nil func always reports healthy.
	Health     func(ctx context.Context) error
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Events != nil {
		mux.HandleFunc("GET /events", cfg.Events.List)
		mux.HandleFunc("POST /events", cfg.Events.Create)
		mux.HandleFunc("DELETE /events", cfg.Events.Clear)
		mux.HandleFunc("POST /events/evict", cfg.Events.Evict)
		mux.HandleFunc("GET /events/export", cfg.Events.Export)
		mux.HandleFunc("POST /events/import", cfg.Events.Import)
		mux.HandleFunc("GET /events/{id}", cfg.Events.Get)
		mux.HandleFunc("PUT /events/{id}", cfg.Events.Update)
		mux.HandleFunc("DELETE /events/{id}", cfg.Events.Delete)
		mux.HandleFunc("POST /search", cfg.Events.Search)
	}

	if cfg.Tracker != nil {
		mux.HandleFunc("GET /tracked", cfg.Tracker.List)
		mux.HandleFunc("POST /tracked/{id}/toggle", cfg.Tracker.Toggle)
		mux.HandleFunc("PUT /tracked/{id}/status", cfg.Tracker.SetStatus)
	}

	if cfg.Saved != nil {
		mux.HandleFunc("GET /saved", cfg.Saved.List)
		mux.HandleFunc("POST /saved", cfg.Saved.Save)
		mux.HandleFunc("DELETE /saved", cfg.Saved.Clear)
		mux.HandleFunc("POST /saved/bulk", cfg.Saved.SaveAll)
		mux.HandleFunc("GET /saved/stats", cfg.Saved.Stats)
		mux.HandleFunc("GET /saved/export", cfg.Saved.Export)
		mux.HandleFunc("POST /saved/import", cfg.Saved.Import)
		mux.HandleFunc("GET /saved/custom", cfg.Saved.ListCustom)
		mux.HandleFunc("POST /saved/custom", cfg.Saved.SubmitCustom)
		mux.HandleFunc("GET /saved/{id}", cfg.Saved.Get)
		mux.HandleFunc("PUT /saved/{id}", cfg.Saved.Update)
		mux.HandleFunc("DELETE /saved/{id}", cfg.Saved.Delete)
		mux.HandleFunc("PUT /saved/{id}/notes", cfg.Saved.UpdateNotes)
	}

	if cfg.Insights != nil {
		mux.HandleFunc("GET /insights", cfg.Insights.Summary)
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
