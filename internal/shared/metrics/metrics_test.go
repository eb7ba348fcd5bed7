package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(analysisStartedTotal)
	IncAnalysisStarted()
	if got := testutil.ToFloat64(analysisStartedTotal); got != before+1 {
		t.Fatalf("expected started %v, got %v", before+1, got)
	}

	errBefore := testutil.ToFloat64(llmRequestsTotal.WithLabelValues("agent", "error"))
	IncLLMRequest("agent", errors.New("boom"))
	if got := testutil.ToFloat64(llmRequestsTotal.WithLabelValues("agent", "error")); got != errBefore+1 {
		t.Fatalf("expected agent errors %v, got %v", errBefore+1, got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncAnalysisCompleted()
	ObserveStage("ingest", "ok", 250*time.Millisecond)

	r := gin.New()
	r.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, name := range []string{"code_analysis_completed_total", "code_analysis_stage_duration_seconds_bucket"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
