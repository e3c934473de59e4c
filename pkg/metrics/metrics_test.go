package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues(OutcomeComplete))

	ObserveRun(OutcomeComplete, 12.5)

	if got := testutil.ToFloat64(RunsTotal.WithLabelValues(OutcomeComplete)); got != before+1 {
		t.Errorf("fssp_runs_total{outcome=complete} = %v, want %v", got, before+1)
	}
}

func TestHandler(t *testing.T) {
	ObserveRun(OutcomeEmpty, 0)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	names := []string{"fssp_runs_total", "fssp_run_duration_seconds", "promhttp_metric_handler_requests_total"}
	for _, name := range names {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestHandler_CustomRegistry(t *testing.T) {
	prevRegistry, prevGatherer := Registry, Gatherer
	t.Cleanup(func() { Registry, Gatherer = prevRegistry, prevGatherer })

	reg := prometheus.NewRegistry()
	Registry, Gatherer = reg, reg

	server := httptest.NewServer(Handler())
	defer server.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(server.URL)
		if err != nil {
			t.Fatalf("GET /metrics error = %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if strings.Contains(string(body), "fssp_runs_total") {
			t.Error("custom registry exposed default fssp metrics")
		}
		if i == 1 && !strings.Contains(string(body), `promhttp_metric_handler_requests_total{code="200"} 1`) {
			t.Errorf("scrape counter missing on custom registry:\n%s", body)
		}
	}
}
