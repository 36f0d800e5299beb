// Package http exposes the event catalog over HTTP/JSON.
//
// The router serves the following endpoints:
//   - GET /events (query: region, q, benefit, industry, horizon, sort), POST /events,
//     GET/PUT/DELETE /events/{id}, POST /events/evict, DELETE /events.
//   - GET /events/export?format=json|csv|xlsx, POST /events/import?format=json|csv|xlsx.
//   - POST /search with {"region"}: runs the search provider and ingests new events.
//   - GET /tracked?status=, POST /tracked/{id}/toggle, PUT /tracked/{id}/status.
//   - GET /saved?sort=, POST /saved with {"eventId"}, GET/PUT/DELETE /saved/{id},
//     PUT /saved/{id}/notes, DELETE /saved, GET /saved/export, POST /saved/import,
//     POST /saved/bulk (list query), GET/POST /saved/custom, GET /saved/stats.
//   - GET /insights, GET /healthz and GET /metrics.
//
// Errors are returned as {"message", "errors"} with 422 for validation
// failures, 400 for unparsable payloads, 404 for unknown ids, 409 for
// duplicates and concurrent writes and 503 when the search provider is offline.
package http
