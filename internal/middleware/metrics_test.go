package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type httpRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *httpRecorder) RecordLogin(string)                              {}
func (r *httpRecorder) RecordLinksCreated(int)                          {}
func (r *httpRecorder) RecordLinkClick()                                {}
func (r *httpRecorder) RecordOutboundFetch(string, bool, time.Duration) {}
func (r *httpRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{method, route, status})
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	rec := &httpRecorder{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(rec))
	r.Delete("/api/links/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/links/abc-123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if len(rec.requests) != 2 {
		t.Fatalf("recorded = %d, want 2", len(rec.requests))
	}
	if got := rec.requests[0]; got.route != "/api/links/{id}" || got.status != http.StatusNoContent || got.method != http.MethodDelete {
		t.Errorf("first = %+v", got)
	}
	if got := rec.requests[1]; got.route != unmatchedRoute || got.status != http.StatusNotFound {
		t.Errorf("second = %+v", got)
	}
}
