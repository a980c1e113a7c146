package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggingRequestID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, "short and stout")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pairs", nil))
	generated := rec.Header().Get(RequestIDHeader)
	if len(generated) != 36 {
		t.Fatalf("generated request id = %q", generated)
	}
	for _, want := range []string{`"request_id":"` + generated, `"status":418`, `"bytes":15`, `"level":"WARN"`} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %s: %s", want, logs.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pairs", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("client request id not echoed: %q", got)
	}
}

func TestAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Auth("secret", "/api/health")(ok)

	tests := []struct {
		name   string
		path   string
		method string
		header [2]string
		want   int
	}{
		{"public path", "/api/health", http.MethodGet, [2]string{}, http.StatusOK},
		{"missing token", "/api/pairs", http.MethodGet, [2]string{}, http.StatusUnauthorized},
		{"bearer", "/api/pairs", http.MethodGet, [2]string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"api key header", "/api/pairs", http.MethodGet, [2]string{"X-API-Key", "secret"}, http.StatusOK},
		{"query token", "/ws?token=secret", http.MethodGet, [2]string{}, http.StatusOK},
		{"wrong token", "/api/pairs", http.MethodGet, [2]string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"preflight", "/api/pairs", http.MethodOptions, [2]string{}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	Auth("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pairs", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("disabled auth: status = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/pairs", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/pairs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("preflight: code %d headers %v", rec.Code, rec.Header())
	}
}
