package auth

import (
	"net/http"

	"github.com/brizzai/idverify/internal/auth/handlers"
	"github.com/brizzai/idverify/internal/auth/middleware"
	"github.com/brizzai/idverify/internal/auth/providers"
	"github.com/brizzai/idverify/internal/config"
	"github.com/brizzai/idverify/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Service represents the verification HTTP service
type Service struct {
	config   *config.ServerConfig
	provider providers.Provider
	handler  *handlers.Handler
	gatherer prometheus.Gatherer
}

// NewService creates a new verification service
func NewService(cfg *config.Config, provider providers.Provider, gatherer prometheus.Gatherer) *Service {
	return &Service{
		config:   &cfg.Server,
		provider: provider,
		handler:  handlers.NewHandler(provider),
		gatherer: gatherer,
	}
}

// Routes builds the router with all verification routes and middleware
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Logging,
		chimw.Recoverer,
		middleware.CORSWithOrigins(s.config.AllowOrigins),
	)

	r.Get("/healthz", s.handler.HandleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", s.handler.HandleVerify)
	})

	return r
}

// GetProvider returns the configured verification provider
func (s *Service) GetProvider() providers.Provider {
	return s.provider
}

// Module provides the verification service
var Module = fx.Module("auth",
	fx.Provide(NewService),
)
