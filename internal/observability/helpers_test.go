package observability

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// installTestMeter points the global meter provider at a fresh registry and
// restores the previous provider on cleanup.
func installTestMeter(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	require.NoError(t, err)

	previous := otel.GetMeterProvider()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		mp.Shutdown(context.Background())
	})
	return registry
}

// findFamily returns the gathered family whose name starts with prefix once
// dots are normalised to underscores.
func findFamily(t *testing.T, registry *prometheus.Registry, prefix string) *dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if strings.HasPrefix(strings.ReplaceAll(family.GetName(), ".", "_"), prefix) {
			return family
		}
	}
	return nil
}

// counterValue sums the counter samples carrying label=value.
func counterValue(family *dto.MetricFamily, label, value string) float64 {
	var total float64
	for _, m := range family.GetMetric() {
		for _, pair := range m.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
