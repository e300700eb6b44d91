package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storybox/pkg/types"
)

type mockService struct {
	status types.Status
	ready  bool
}

func (m *mockService) Status() types.Status { return m.status }
func (m *mockService) Ready() bool          { return m.ready }

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.Status{
		State: "idle",
		Ready: true,
		Model: &types.ModelStatus{Path: "/data/stories15M_q80.bin", SeqLen: 256, VocabSize: 32000, State: "loaded"},
		Steps: 256,
	}}
	w := httptest.NewRecorder()
	NewMux(svc, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var got types.Status
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.State != "idle" || got.Model == nil || got.Model.SeqLen != 256 {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &mockService{}
	mux := NewMux(svc, Options{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while loading: %d", w.Code)
	}

	svc.ready = true
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Fatalf("readyz when ready: %d %q", w.Code, w.Body.String())
	}
}

type fakeEvents []types.EventRecord

func (f fakeEvents) Recent() []types.EventRecord { return f }

func TestEventsRoute(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("events without a source: %d", w.Code)
	}

	src := fakeEvents{{Name: "load_done", TimeUnix: 10}, {Name: "generation_done", CycleID: "c1", TimeUnix: 12}}
	w = httptest.NewRecorder()
	NewMux(&mockService{}, Options{Events: src}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	var got []types.EventRecord
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got) != 2 || got[1].CycleID != "c1" {
		t.Fatalf("unexpected events: %+v", got)
	}

	w = httptest.NewRecorder()
	NewMux(&mockService{}, Options{Events: fakeEvents(nil)}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty history should be an empty array, got %q", w.Body.String())
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}, Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/infer", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != http.StatusNotFound {
		t.Fatalf("unexpected error body %q (%v)", w.Body.String(), err)
	}
}

func TestCORSPreflight(t *testing.T) {
	mux := NewMux(&mockService{}, Options{CORSOrigins: []string{"http://dash.local"}})
	req := httptest.NewRequest(http.MethodOptions, "/status", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Fatalf("allow-origin=%q", got)
	}

	// CORS is off unless origins are configured
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://dash.local")
	NewMux(&mockService{}, Options{}).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

// TestMetricsMiddlewareUsesRoutePattern ensures requests are labeled by the
// chi route pattern instead of the raw URL path.
func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/item/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/item/42", nil))

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := mrr.Body.Bytes()
	if !bytes.Contains(body, []byte("storybox_http_requests_total")) || !bytes.Contains(body, []byte(`path="/item/{id}"`)) {
		preview := body
		if len(preview) > 400 {
			preview = preview[:400]
		}
		t.Fatalf("expected route pattern label in metrics; got: %q", string(preview))
	}
	if !bytes.Contains(body, []byte(`status="418"`)) {
		t.Fatalf("expected status label 418")
	}
}

func TestUnmatchedPathsShareOneLabel(t *testing.T) {
	mux := NewMux(&mockService{}, Options{})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scan/a1b2c3", nil))

	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := mrr.Body.String()
	if strings.Contains(body, "/scan/a1b2c3") || !strings.Contains(body, `path="unmatched"`) {
		t.Fatalf("raw path leaked into labels")
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewMux(&mockService{ready: true}, Options{})) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
