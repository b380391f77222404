package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"justicebid/api/internal/store"
)

func newTestServer(st *fakeStore, gen *fakeGenerator) *HTTPServer {
	return NewHTTPServer(newTestService(st, gen), "*")
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if status, exists := response["status"]; !exists || status != "ready" {
		t.Errorf("expected status=ready, got %v", status)
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	st := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	server := newTestServer(st, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if status, exists := response["status"]; !exists || status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
}

func TestOptionsRequestShortCircuits(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodOptions, "/api/ocgs", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for OPTIONS, got %d", rr.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin=*, got %v", origin)
	}
	if cache := rr.Header().Get("Cache-Control"); cache != "no-store" {
		t.Errorf("expected Cache-Control=no-store, got %v", cache)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected a request ID header")
	}
}

func TestGetOCGNotFoundOverHTTP(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/ocgs/ocg_ghost", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "OCG_NOT_FOUND" {
		t.Errorf("expected OCG_NOT_FOUND, got %v", response["code"])
	}
}

func TestSelectionBudgetExceededOverHTTP(t *testing.T) {
	st := &fakeStore{
		getOCGFn: func(_ context.Context, ocgID string) (*store.OCG, error) {
			return negotiatingOCG(ocgID), nil
		},
		getSectionFn: func(_ context.Context, sectionID string) (*store.Section, error) {
			return &store.Section{ID: sectionID, OCGID: "ocg_1", Title: "Rate Increases", IsNegotiable: true}, nil
		},
		getAlternativeFn: func(_ context.Context, alternativeID string) (*store.Alternative, error) {
			return &store.Alternative{ID: alternativeID, SectionID: "sec_1", Points: 8}, nil
		},
		selectWithinBudgetFn: func(context.Context, string, string, string, string) (*store.SelectionOutcome, error) {
			return &store.SelectionOutcome{Budget: 5, Required: 8, Exceeded: true}, nil
		},
	}
	server := newTestServer(st, &fakeGenerator{})

	body := strings.NewReader(`{"sectionId":"sec_1","alternativeId":"alt_1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ocgs/ocg_1/negotiation/org_firm/selections", body)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["code"] != "POINT_BUDGET_EXCEEDED" {
		t.Errorf("expected POINT_BUDGET_EXCEEDED, got %v", response["code"])
	}
	details, ok := response["details"].(map[string]any)
	if !ok || details["budget"] != float64(5) || details["required"] != float64(8) {
		t.Errorf("expected budget/required details, got %v", response["details"])
	}
}

func TestDocumentDownloadHeaders(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/ocgs/ocg_1/document?format=json", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "doc.json") {
		t.Errorf("expected filename in disposition, got %s", cd)
	}
}

func TestListOCGsRequiresFilter(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/ocgs", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
