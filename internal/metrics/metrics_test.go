package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zsprackett/usage-bar/internal/metrics"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/usagepoller"
)

func TestPoll_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPoll()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	m.Observe(usagepoller.Event{
		Kind:     usagepoller.EventUpdated,
		At:       now,
		Duration: 2 * time.Second,
		Record:   usage.Record{Session: usage.KnownPercent(42), Weekly: usage.UnknownPercent("")},
	})
	m.Observe(usagepoller.Event{
		Kind: usagepoller.EventFailed,
		Err:  usage.Timeout(30 * time.Second),
	})

	if v := testutil.ToFloat64(m.PollsTotal.WithLabelValues("ok", "")); v != 1 {
		t.Errorf("ok polls: %v", v)
	}
	if v := testutil.ToFloat64(m.PollsTotal.WithLabelValues("failed", "timeout")); v != 1 {
		t.Errorf("failed polls: %v", v)
	}
	if v := testutil.ToFloat64(m.UsagePercent.WithLabelValues("session")); v != 42 {
		t.Errorf("session gauge: %v", v)
	}
	if n := testutil.CollectAndCount(m.UsagePercent); n != 1 {
		t.Errorf("unknown weekly should not set a gauge, got %d series", n)
	}
	if v := testutil.ToFloat64(m.LastSuccess); v != float64(now.Unix()) {
		t.Errorf("last success: %v", v)
	}
	if n := testutil.CollectAndCount(m.PollDuration); n != 2 {
		t.Errorf("duration series: %d", n)
	}
}

func TestPoll_RegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPoll()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	h := metrics.NewHTTP()
	if err := h.Register(prometheus.NewRegistry()); err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	r.Use(h.Middleware)
	r.Get("/api/usage", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	for _, path := range []string{"/api/usage", "/api/usage", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, http.NoBody))
	}

	if v := testutil.ToFloat64(h.RequestsTotal.WithLabelValues("GET", "/api/usage", "200")); v != 2 {
		t.Errorf("usage requests: %v", v)
	}
	if v := testutil.ToFloat64(h.RequestsTotal.WithLabelValues("GET", "/missing", "404")); v != 1 {
		t.Errorf("404 requests: %v", v)
	}
}
