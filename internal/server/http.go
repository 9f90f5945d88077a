package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/cards", s.handleCreateCard)
	mux.HandleFunc("GET /v1/cards", s.handleListCards)
	mux.HandleFunc("GET /v1/cards/{id}", s.handleGetCard)
	mux.HandleFunc("PATCH /v1/cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("POST /v1/cards/{id}/archive", s.handleArchiveCard)
	mux.HandleFunc("DELETE /v1/cards/{id}", s.handleDeleteCard)
	mux.HandleFunc("POST /v1/cards/{id}/recompute", s.handleRecomputeCard)
	mux.HandleFunc("POST /v1/recompute", s.handleRecomputeAll)
	mux.HandleFunc("GET /v1/cards/{id}/relations", s.handleGetCardRelations)
	mux.HandleFunc("POST /v1/relations", s.handleCreateRelation)
	mux.HandleFunc("GET /v1/relations/{id}", s.handleGetRelation)
	mux.HandleFunc("DELETE /v1/relations/{id}", s.handleDeleteRelation)
	mux.HandleFunc("GET /v1/cards/{id}/tags", s.handleGetTags)
	mux.HandleFunc("POST /v1/cards/{id}/tags", s.handleAssignTag)
	mux.HandleFunc("DELETE /v1/cards/{id}/tags/{tag}", s.handleRemoveTag)
	mux.HandleFunc("GET /v1/cards/{id}/comments", s.handleGetComments)
	mux.HandleFunc("POST /v1/cards/{id}/comments", s.handleAddComment)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/subscriptions", s.handleSubscriptionRoster)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
