package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"omega/internal/models"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsReadHeaderTimeout = 5 * time.Second

// MetricsServer serves Prometheus metrics on a port separate from the API.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics HTTP server exposing the provider's
// registry at cfg.Path on cfg.Port. Without a registry the path answers 503.
func NewMetricsServer(cfg models.MetricsConfig, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metricsHandler(provider))

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
		},
	}
}

func metricsHandler(provider *Provider) http.Handler {
	if provider == nil || provider.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(provider.registry, promhttp.HandlerOpts{
		Registry:          provider.registry,
		EnableOpenMetrics: true,
	})
}

// Start begins serving metrics in a blocking call.
// Returns http.ErrServerClosed on graceful shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
