package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// ─── instruments ────────────────────────────────────────────────────────────

func TestRecordProviderRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.RecordProviderRequest(ctx, "openai", "quiz", "ok", 0.4)
	m.RecordProviderRequest(ctx, "openai", "quiz", "ok", 0.6)
	m.RecordProviderRequest(ctx, "openai", "quiz", "error", 0.1)

	rm := collect(t, reader)
	got := findMetric(rm, "listen.provider.requests")
	if got == nil {
		t.Fatal("listen.provider.requests not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}
	var okCount int64
	for _, dp := range sum.DataPoints {
		if v, _ := dp.Attributes.Value(attribute.Key("status")); v.AsString() == "ok" {
			okCount = dp.Value
		}
	}
	if okCount != 2 {
		t.Fatalf("expected 2 ok requests, got %d", okCount)
	}

	hist := findMetric(rm, "listen.provider.duration")
	if hist == nil {
		t.Fatal("listen.provider.duration not found")
	}
	h := hist.Data.(metricdata.Histogram[float64])
	if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 3 {
		t.Fatalf("expected one series with 3 observations, got %+v", h.DataPoints)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordProviderRequest(context.Background(), "openai", "quiz", "ok", 1)
	m.RecordCacheLookup(context.Background(), true)
}

// ─── middleware ─────────────────────────────────────────────────────────────

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))

	got := findMetric(collect(t, reader), "listen.http.request.duration")
	if got == nil {
		t.Fatal("listen.http.request.duration not found")
	}
	h := got.Data.(metricdata.Histogram[float64])
	if len(h.DataPoints) != 1 {
		t.Fatalf("expected 1 series, got %d", len(h.DataPoints))
	}
	attrs := h.DataPoints[0].Attributes
	if v, _ := attrs.Value("route"); v.AsString() != "/api/sessions/{id}" {
		t.Fatalf("unexpected route %q", v.AsString())
	}
	if v, _ := attrs.Value("status"); v.AsString() != "404" {
		t.Fatalf("unexpected status %q", v.AsString())
	}
}
