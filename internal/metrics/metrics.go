// Package metrics exposes Prometheus instrumentation for verification providers.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/brizzai/idverify/internal/auth/models"
	"github.com/brizzai/idverify/internal/auth/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

// Metrics holds the verification collectors
type Metrics struct {
	verifications *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// New creates the verification collectors and registers them on reg (or the default registry if nil)
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	verifications, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idverify",
		Name:      "verifications_total",
		Help:      "Verifications processed by provider and result",
	}, []string{"provider", "result"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "idverify",
		Name:      "verification_duration_seconds",
		Help:      "Latency of provider verifications, token exchange included",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{verifications: verifications, duration: duration}, nil
}

// register returns the already registered collector when c is a duplicate
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

// Observe records one finished verification
func (m *Metrics) Observe(provider string, valid bool, elapsed time.Duration) {
	result := ResultInvalid
	if valid {
		result = ResultValid
	}
	m.verifications.WithLabelValues(provider, result).Inc()
	m.duration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

type instrumentedProvider struct {
	next    providers.Provider
	metrics *Metrics
}

// Instrument wraps p so every Verify call is counted and timed
func Instrument(p providers.Provider, m *Metrics) providers.Provider {
	return &instrumentedProvider{next: p, metrics: m}
}

func (p *instrumentedProvider) Type() string {
	return p.next.Type()
}

func (p *instrumentedProvider) Verify(ctx context.Context, payload *models.RequestPayload) *models.VerifiedPayload {
	start := time.Now()
	result := p.next.Verify(ctx, payload)
	p.metrics.Observe(p.next.Type(), result != nil && result.Valid, time.Since(start))
	return result
}

// NewRegistry returns a registry carrying the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Module provides the registry and verification metrics.
// The provider decorator is applied at the application root with fx.Decorate(Instrument).
var Module = fx.Module("metrics",
	fx.Provide(
		NewRegistry,
		func(r *prometheus.Registry) prometheus.Registerer { return r },
		func(r *prometheus.Registry) prometheus.Gatherer { return r },
		New,
	),
)
