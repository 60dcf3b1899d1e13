package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/modoterra/tailsync/pkg/core"
)

func TestRecorderCountsLinesAndBytes(t *testing.T) {
	src := "metrics-test.log"
	var r Recorder
	r.Observe(core.LogLine{Source: src, Line: "abc"})
	r.Observe(core.LogLine{Source: src, Line: "defgh"})

	if got := testutil.ToFloat64(linesCaptured.WithLabelValues(src)); got != 2 {
		t.Errorf("lines = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bytesCaptured.WithLabelValues(src)); got != 8 {
		t.Errorf("bytes = %v, want 8", got)
	}
}

func TestObserveReport(t *testing.T) {
	ObserveReport(42, 3*time.Millisecond)
	if got := testutil.ToFloat64(reportRows); got != 42 {
		t.Errorf("report rows = %v, want 42", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	Recorder{}.Observe(core.LogLine{Source: "scrape.log", Line: "x"})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `tailsync_lines_captured_total{source="scrape.log"} 1`) {
		t.Errorf("scrape output missing line counter:\n%s", body)
	}
}
