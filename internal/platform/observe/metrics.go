// Package observe holds the API's OpenTelemetry instruments and the HTTP
// middleware that records them.
//
// Production code uses DefaultMetrics, which binds to the global provider
// installed by InitProvider. Tests build their own with NewMetrics and a
// ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/example/listening-companion"

// Metrics holds all metric instruments. The OTel types are safe for
// concurrent use.
type Metrics struct {
	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram

	// ProviderRequests counts upstream calls (LLM, YouTube, article fetch)
	// by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderDuration tracks upstream call latency by provider and kind.
	ProviderDuration metric.Float64Histogram

	// CacheLookups counts import cache lookups by result (hit or miss).
	CacheLookups metric.Int64Counter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.HTTPRequestDuration, err = m.Float64Histogram("listen.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("listen.provider.requests",
		metric.WithDescription("Upstream requests by provider, kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("listen.provider.duration",
		metric.WithDescription("Upstream request latency by provider and kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("listen.cache.lookups",
		metric.WithDescription("Import cache lookups by result."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics bound to the global
// provider, creating it on first call.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetricsFromGlobal()
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// NewMetricsFromGlobal builds a fresh Metrics on the current global provider.
func NewMetricsFromGlobal() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

// RecordProviderRequest counts one upstream call and its latency in seconds.
// A nil receiver is a no-op.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.ProviderDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordCacheLookup counts a cache hit or miss. A nil receiver is a no-op.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
