// Package telemetry serves the read-only diagnostics surface: liveness,
// readiness, the controller status mirror and Prometheus metrics.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"storybox/pkg/types"
)

// Service defines the methods required by the diagnostics layer.
type Service interface {
	Status() types.Status
	Ready() bool
}

// EventSource exposes recently published controller events.
type EventSource interface {
	Recent() []types.EventRecord
}

// Options configures the router.
type Options struct {
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string
	// Events enables GET /events when set.
	Events EventSource
}

const shutdownTimeout = 5 * time.Second

// zlog is an optional structured logger. If unset, requests are not logged.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the diagnostics layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// NewMux builds the diagnostics router. Every route is read-only.
func NewMux(svc Service, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, MetricsMiddleware, requestLogger)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(noSniff)

	h := handlers{svc: svc, events: opts.Events}
	r.Get("/status", h.status)
	if h.events != nil {
		r.Get("/events", h.recentEvents)
	}
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	MountSwagger(r)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	return r
}

type handlers struct {
	svc    Service
	events EventSource
}

// status godoc
// @Summary      Appliance status
// @Description  Read-only mirror of the controller state. It is never used for control decisions.
// @Tags         diagnostics
// @Produce      json
// @Success      200  {object}  types.Status
// @Router       /status [get]
func (h handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// recentEvents godoc
// @Summary      Recent controller events
// @Description  Most recent controller events, oldest first. Served only when an event source is configured.
// @Tags         diagnostics
// @Produce      json
// @Success      200  {array}   types.EventRecord
// @Failure      404  {object}  types.ErrorResponse
// @Router       /events [get]
func (h handlers) recentEvents(w http.ResponseWriter, _ *http.Request) {
	evs := h.events.Recent()
	if evs == nil {
		evs = []types.EventRecord{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// healthz godoc
// @Summary      Liveness check
// @Tags         diagnostics
// @Produce      plain
// @Success      200  {string}  string  "ok"
// @Router       /healthz [get]
func (h handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// readyz reports 200 only while the controller is idle with a loaded model.
//
// @Summary      Readiness check
// @Description  200 only while the controller is idle with a loaded model.
// @Tags         diagnostics
// @Produce      plain
// @Success      200  {string}  string  "ready"
// @Failure      503  {string}  string  "not ready"
// @Router       /readyz [get]
func (h handlers) readyz(w http.ResponseWriter, _ *http.Request) {
	if !h.svc.Ready() {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// Serve runs the diagnostics server on addr until ctx is done, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, h)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	if zlog != nil {
		zlog.Info().Str("event", "telemetry_listen").Str("addr", ln.Addr().String()).Msg("diagnostics listening")
	}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(sctx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// writeJSON marshals v fully before writing the header.
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	b, _ := json.Marshal(types.ErrorResponse{Error: msg, Code: status})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
