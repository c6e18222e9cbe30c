package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	phttp "repoharvest/internal/platform/net/http"
	kit "repoharvest/internal/platform/testkit"
	"repoharvest/internal/services/classify/domain"
)

type fixedStatus struct{ snap domain.Snapshot }

func (f fixedStatus) Snapshot() domain.Snapshot { return f.snap }

func snapshot() domain.Snapshot {
	return domain.Snapshot{
		RunID:      "run-1",
		Phase:      domain.PhaseSubmitting,
		Total:      10,
		Pending:    4,
		Succeeded:  5,
		Failed:     1,
		Processed:  5,
		Cost:       1.25,
		Budget:     50,
		OverBudget: false,
		Tallies:    map[string]map[string]int{"micro_scenario": {"productivity_tools": 5}},
	}
}

func serve(t *testing.T, path string) (*httptest.ResponseRecorder, phttp.Envelope) {
	t.Helper()
	srv := NewServer(":0", Deps{ServiceName: "harvest-classify", StartedAt: time.Now(), Status: fixedStatus{snapshot()}})
	rec := httptest.NewRecorder()
	srv.Router().Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s: unmarshal: %v (%s)", path, err, rec.Body.String())
	}
	return rec, env
}

func TestHealthz(t *testing.T) {
	rec, env := serve(t, "/healthz")
	if rec.Code != http.StatusOK || env.StatusCode != http.StatusOK {
		t.Fatalf("status %d envelope %+v", rec.Code, env)
	}
	kit.MustContain(t, rec.Body.String(), `"service":"harvest-classify"`)
	kit.MustContain(t, rec.Body.String(), `"ok":true`)
}

func TestProgress(t *testing.T) {
	rec, _ := serve(t, "/v1/progress")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct {
		Data domain.Snapshot `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	kit.MustContain(t, rec.Body.String(), `"phase":"submitting"`)
	if body.Data.Succeeded != 5 || body.Data.Budget != 50 || body.Data.Tallies["micro_scenario"]["productivity_tools"] != 5 {
		t.Fatalf("data = %+v", body.Data)
	}
}

func TestProgress_CORS(t *testing.T) {
	srv := NewServer(":0", Deps{Status: fixedStatus{snapshot()}, CORSOrigins: []string{"https://dash.example"}})
	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	srv.Router().Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://dash.example" {
		t.Fatalf("status %d headers %v", rec.Code, rec.Header())
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := NewServer(":0", Deps{Status: fixedStatus{}})
	rec := httptest.NewRecorder()
	srv.Router().Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRegister_RequiresStatus(t *testing.T) {
	kit.MustPanic(t, func() { NewServer(":0", Deps{}) })
}

func TestServe_ShutsDownWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(ln.Addr().String(), Deps{Status: fixedStatus{snapshot()}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	kit.Eventually(t, 2*time.Second, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
