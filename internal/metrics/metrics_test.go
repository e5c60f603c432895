package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHandler_MetricsRunsRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_refreshed", Help: "test"})
	reg.MustRegister(gauge)

	calls := 0
	refresh := func(ctx context.Context) {
		calls++
		gauge.Set(float64(calls))
	}

	srv := httptest.NewServer(Handler(reg, refresh))
	defer srv.Close()

	for i := 1; i <= 2; i++ {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /metrics status = %d", resp.StatusCode)
		}
		want := "test_refreshed " + string(rune('0'+i))
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape %d missing %q in:\n%s", i, want, body)
		}
	}

	if calls != 2 {
		t.Errorf("refresh called %d times, want 2", calls)
	}
}

func TestHandler_Health(t *testing.T) {
	srv := httptest.NewServer(Handler(prometheus.NewRegistry(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("GET /health = %d %q", resp.StatusCode, body)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(Handler(prometheus.NewRegistry(), nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/metrics", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST /metrics failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /metrics status = %d, want 405", resp.StatusCode)
	}
}
