package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://hotpot.example"})(ok)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed get", http.MethodGet, "https://hotpot.example", http.StatusOK, "https://hotpot.example"},
		{"allowed preflight", http.MethodOptions, "https://HOTPOT.example", http.StatusNoContent, "https://HOTPOT.example"},
		{"other origin get", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"other origin preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
		{"no origin", http.MethodGet, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("allow origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORSWildcard(t *testing.T) {
	h := CORS([]string{"*"})(ok)
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func TestAuth(t *testing.T) {
	h := Auth("secret, rotated", "/api/health")(ok)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"public path", "/api/health", nil, http.StatusOK},
		{"missing key", "/api/status", nil, http.StatusUnauthorized},
		{"bearer", "/api/status", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"header", "/api/status", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"second key", "/api/status", map[string]string{"X-API-Key": "rotated"}, http.StatusOK},
		{"wrong key", "/api/status", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"query without upgrade", "/api/status?api_key=secret", nil, http.StatusUnauthorized},
		{"query on upgrade", "/ws?api_key=secret", map[string]string{"Upgrade": "websocket"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	h := Auth(" , ")(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with no keys", rec.Code)
	}
}

func TestRedactQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?session=abc&api_key=secret", nil)
	if got := redactQuery(req); got != "api_key=%2A%2A%2A&session=abc" {
		t.Fatalf("redactQuery = %q", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/ws?session=abc", nil)
	if got := redactQuery(req); got != "session=abc" {
		t.Fatalf("redactQuery = %q", got)
	}
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4321"
	if got := extractClientIP(req); got != "10.0.0.9" {
		t.Errorf("remote addr ip = %q", got)
	}
	req.Header.Set("X-Real-IP", "10.0.0.2")
	if got := extractClientIP(req); got != "10.0.0.2" {
		t.Errorf("x-real-ip = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := extractClientIP(req); got != "203.0.113.7" {
		t.Errorf("x-forwarded-for = %q", got)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	if got := retryAfterSeconds(500 * time.Millisecond); got != 1 {
		t.Errorf("sub-second window = %d, want 1", got)
	}
	if got := retryAfterSeconds(time.Minute); got != 60 {
		t.Errorf("minute window = %d, want 60", got)
	}
	if got := retryAfterSeconds(2500 * time.Millisecond); got != 3 {
		t.Errorf("2.5s = %d, want 3", got)
	}
}

func TestLoggingRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-1" || rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("request id: ctx %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line: %v", err)
	}
	if line["level"] != "WARN" || line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(5) {
		t.Fatalf("log line = %v", line)
	}

	// Oversized ids are replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("generated id = %q", got)
	}
}
