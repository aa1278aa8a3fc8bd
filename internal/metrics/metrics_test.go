package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveCommand_CountsByStatus(t *testing.T) {
	okBefore := counterValue(t, CommandsTotal.WithLabelValues("FT.TEST", "ok"))
	errBefore := counterValue(t, CommandsTotal.WithLabelValues("FT.TEST", "error"))

	ObserveCommand("FT.TEST", time.Now(), nil)
	ObserveCommand("FT.TEST", time.Now(), errors.New("boom"))
	ObserveCommand("FT.TEST", time.Now(), errors.New("boom"))

	if got := counterValue(t, CommandsTotal.WithLabelValues("FT.TEST", "ok")) - okBefore; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := counterValue(t, CommandsTotal.WithLabelValues("FT.TEST", "error")) - errBefore; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
}

func TestMetricsRegistered(t *testing.T) {
	// Seed every vector so it shows up in the gather output.
	ObserveCommand("PING", time.Now(), nil)
	PointsUpserted.WithLabelValues("ws-test").Add(3)
	PointsDeleted.WithLabelValues("ws-test").Inc()
	SearchHits.WithLabelValues("ws-test").Observe(5)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"valkey_search_commands_total":           false,
		"valkey_search_command_duration_seconds": false,
		"valkey_search_points_upserted_total":    false,
		"valkey_search_points_deleted_total":     false,
		"valkey_search_search_hits":              false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	ObserveCommand("PING", time.Now(), nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "valkey_search_commands_total") {
		t.Error("metrics output missing command counter")
	}
}
