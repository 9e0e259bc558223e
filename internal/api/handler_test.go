package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crewkit/crewkit/internal/fault"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/ratelimit"
)

// newTestRouter builds a router with the infrastructure deps tests need; the
// store-backed handlers are not exercised here.
func newTestRouter(origins ...string) http.Handler {
	return NewRouter(RouterDeps{
		Limiter:        ratelimit.New(0, time.Minute),
		Metrics:        metrics.New(),
		AllowedOrigins: origins,
	})
}

func TestHealthCheck(t *testing.T) {
	handler := newTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", body["status"])
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestWellKnownHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/.well-known/crewkit.json", nil)
	rec := httptest.NewRecorder()
	WellKnownHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var manifest map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&manifest); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}

	requiredFields := []string{"name", "description", "version", "api_base", "auth", "endpoints", "health"}
	for _, field := range requiredFields {
		if _, ok := manifest[field]; !ok {
			t.Errorf("manifest missing required field %q", field)
		}
	}
	if name, _ := manifest["name"].(string); name != "Crewkit" {
		t.Errorf("expected name=Crewkit, got %q", name)
	}
	if apiBase, _ := manifest["api_base"].(string); apiBase != "/api/v1" {
		t.Errorf("expected api_base=/api/v1, got %q", apiBase)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "crewkit_server_start_time_seconds") {
		t.Error("expected crewkit metrics in exposition output")
	}
}

func TestAuthedRouteWithoutToken(t *testing.T) {
	handler := newTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", rec.Code)
	}
}

func TestRouterNotFound(t *testing.T) {
	handler := newTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/nonexistent-path", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestRouterSecureHeadersApplied(t *testing.T) {
	handler := newTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options: nosniff on router responses")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options: DENY on router responses")
	}
}

func TestRouterRequestIDApplied(t *testing.T) {
	handler := newTestRouter("*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID to be set on router responses")
	}
}

func TestRouterCORSApplied(t *testing.T) {
	handler := newTestRouter("https://myapp.com")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://myapp.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://myapp.com" {
		t.Errorf("expected Access-Control-Allow-Origin=https://myapp.com, got %q", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name            string
		allowedOrigins  []string
		requestOrigin   string
		method          string
		wantStatus      int
		wantAllowOrigin string
	}{
		{
			name:            "wildcard allows any origin",
			allowedOrigins:  []string{"*"},
			requestOrigin:   "https://example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "*",
		},
		{
			name:            "specific origin is echoed back",
			allowedOrigins:  []string{"https://app.example.com"},
			requestOrigin:   "https://app.example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://app.example.com",
		},
		{
			name:            "non-matching origin gets no Allow-Origin header",
			allowedOrigins:  []string{"https://app.example.com"},
			requestOrigin:   "https://evil.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "",
		},
		{
			name:            "preflight returns 204",
			allowedOrigins:  []string{"*"},
			requestOrigin:   "https://example.com",
			method:          http.MethodOptions,
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "*",
		},
		{
			name:            "empty allowed origins list",
			allowedOrigins:  nil,
			requestOrigin:   "https://example.com",
			method:          http.MethodGet,
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := corsMiddleware(tt.allowedOrigins)
			handler := mw(inner)

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowOrigin {
				t.Errorf("Access-Control-Allow-Origin: got %q, want %q", got, tt.wantAllowOrigin)
			}
		})
	}
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var capturedID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := requestIDMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	respID := rec.Header().Get("X-Request-ID")
	if respID == "" {
		t.Fatal("expected X-Request-ID response header to be set")
	}
	if len(respID) != 32 {
		t.Errorf("expected 32-char hex ID, got %d chars: %q", len(respID), respID)
	}
	if capturedID != respID {
		t.Errorf("context ID %q does not match response header ID %q", capturedID, respID)
	}
}

func TestRequestIDMiddlewareForwardsExistingID(t *testing.T) {
	const existingID = "my-custom-request-id-12345"

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := requestIDMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", existingID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if respID := rec.Header().Get("X-Request-ID"); respID != existingID {
		t.Errorf("expected forwarded ID %q, got %q", existingID, respID)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "not_found", "resource not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Errorf("expected code=not_found, got %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "resource not found" {
		t.Errorf("expected message='resource not found', got %q", envelope.Error.Message)
	}
}

func TestWriteFaultStatusMapping(t *testing.T) {
	tests := []struct {
		kind       fault.Kind
		wantStatus int
	}{
		{fault.KindNotFound, http.StatusNotFound},
		{fault.KindConflict, http.StatusConflict},
		{fault.KindForbidden, http.StatusForbidden},
		{fault.KindLimitExceeded, http.StatusUnprocessableEntity},
		{fault.KindValidation, http.StatusUnprocessableEntity},
		{fault.KindInvalidState, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			writeFault(rec, req, fault.New(tt.kind, "boom"))

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			var envelope errorEnvelope
			if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if envelope.Error.Code != string(tt.kind) {
				t.Errorf("code: got %q, want %q", envelope.Error.Code, tt.kind)
			}
			if envelope.Error.Message != "boom" {
				t.Errorf("message: got %q, want boom", envelope.Error.Message)
			}
		})
	}
}

func TestWriteFaultOpaqueInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeFault(rec, req, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var envelope errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	// Internal details must not leak to clients.
	if strings.Contains(envelope.Error.Message, "connection refused") {
		t.Errorf("internal error detail leaked: %q", envelope.Error.Message)
	}
}

func TestReadJSON(t *testing.T) {
	body := strings.NewReader(`{"name":"test","value":42}`)
	req := httptest.NewRequest(http.MethodPost, "/", body)

	var result struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	if err := readJSON(req, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "test" || result.Value != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestReadJSONInvalid(t *testing.T) {
	for _, raw := range []string{`{not json`, ""} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var result map[string]interface{}
		if err := readJSON(req, &result); err == nil {
			t.Errorf("expected error for body %q", raw)
		}
	}
}

func TestGenerateIDUnique(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := generateID()
		if _, exists := ids[id]; exists {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		ids[id] = struct{}{}
	}
}
