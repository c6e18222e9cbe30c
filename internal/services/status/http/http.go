// Package http serves the live status of a classification run
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"repoharvest/internal/core/version"
	phttp "repoharvest/internal/platform/net/http"
	"repoharvest/internal/platform/net/middleware"
	"repoharvest/internal/services/classify/domain"
)

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Status      domain.StatusPort

	// CORSOrigins enables cross-origin reads of the progress view
	CORSOrigins []string
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool              `json:"ok"`
	Started string            `json:"started"`
	Uptime  int64             `json:"uptime"`
	Build   version.BuildInfo `json:"build"`
}

// NewServer builds the status server with panic recovery, access logging and optional CORS
func NewServer(addr string, d Deps) *phttp.Server {
	srv := phttp.NewServer(addr, func(m *chi.Mux) {
		m.Use(middleware.RealIP(), middleware.RequestID())
		m.Use(middleware.RecoverJSON)
		m.Use(middleware.AccessLog(middleware.AccessLogOptions{Slow: time.Second}))
		if len(d.CORSOrigins) > 0 {
			m.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: d.CORSOrigins, MaxAge: 300}))
		}
		m.Use(middleware.NoCache(), middleware.Timeout(10*time.Second))
	})
	Register(srv.Router(), d)
	return srv
}

// Register mounts /healthz and /v1/progress
func Register(r phttp.Router, d Deps) {
	if d.Status == nil {
		panic("status http requires a StatusPort")
	}
	h := &handlers{deps: d, now: time.Now}
	phttp.GetJSON(r, "/healthz", h.health)
	r.Route("/v1", func(v1 phttp.Router) {
		phttp.GetJSON(v1, "/progress", h.progress)
	})
}

func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.now().Sub(h.deps.StartedAt).Seconds()),
		Build:   version.Info(h.deps.ServiceName),
	}, nil
}

func (h *handlers) progress(_ *http.Request) (any, error) {
	return h.deps.Status.Snapshot(), nil
}
