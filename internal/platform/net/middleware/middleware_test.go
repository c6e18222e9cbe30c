package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	phttp "repoharvest/internal/platform/net/http"
)

func TestRecoverJSON_WritesEnvelope(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Code != "panic" || env.StatusCode != http.StatusInternalServerError {
		t.Fatalf("envelope %+v", env)
	}
}

func TestAccessLog_CapturesStatusAndBytes(t *testing.T) {
	var seen *captureWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		seen, _ = w.(*captureWriter)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("hello"))
	})
	rec := httptest.NewRecorder()
	AccessLog(AccessLogOptions{})(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen == nil {
		t.Fatalf("handler did not receive captureWriter")
	}
	if seen.status != http.StatusAccepted || seen.bytes != 5 || rec.Body.String() != "hello" {
		t.Fatalf("status %d bytes %d body %q", seen.status, seen.bytes, rec.Body.String())
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORS(CORSOptions{AllowedOrigins: []string{"https://dash.example"}})(ok)

	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestRequestIDAndNoCache(t *testing.T) {
	var id string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = r.Context().Value(chimw.RequestIDKey).(string)
	})
	rec := httptest.NewRecorder()
	NoCache()(RequestID()(inner)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if id == "" {
		t.Fatalf("request id not set")
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Fatalf("no-cache headers missing")
	}
}
