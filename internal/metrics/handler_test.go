package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, handler http.Handler, path string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return w.Code, string(body)
}

// TestSetupMetricsRoute_ExposesProgramSeries は1日分の利用を記録した後、
// /metricsのスクレイプ結果にラベル付きの系列が現れることを検証する。
func TestSetupMetricsRoute_ExposesProgramSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthAttempt("signin", "success")
	c.RecordAnalysisStarted()
	c.RecordAnalysisFinished("completed", 4*time.Second)
	c.RecordBestEffortFailure("analysis.save")
	c.RecordBestEffortFailure("analysis.save")
	c.RecordBestEffortFailure("profile.create")
	c.RecordDayCompleted(8)
	c.RecordDayCompleted(14)
	c.RecordDayCompleted(30)

	code, body := scrape(t, SetupMetricsRoute(reg), "/metrics")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}

	want := []string{
		`glowup_auth_attempts_total{kind="signin",outcome="success"} 1`,
		`glowup_analysis_finished_total{outcome="completed"} 1`,
		`glowup_best_effort_failures_total{operation="analysis.save"} 2`,
		`glowup_best_effort_failures_total{operation="profile.create"} 1`,
		// Day 8と14は第2週、Day 30は第5週
		`glowup_days_completed_total{week="2"} 2`,
		`glowup_days_completed_total{week="5"} 1`,
	}
	for _, line := range want {
		if !strings.Contains(body, line) {
			t.Errorf("スクレイプ結果に %q が含まれていません", line)
		}
	}
	if strings.Contains(body, `glowup_days_completed_total{week="1"}`) {
		t.Error("完了のない週の系列が出力されています")
	}
}

// TestSetupMetricsRoute_OnlyServesMetricsPath は/metrics以外のパスを公開しないことを検証する。
func TestSetupMetricsRoute_OnlyServesMetricsPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg).RecordSessionsSwept(3)

	handler := SetupMetricsRoute(reg)

	if code, body := scrape(t, handler, "/metrics"); code != http.StatusOK || !strings.Contains(body, "glowup_sessions_swept_total 3") {
		t.Errorf("/metrics = %d, sessions_swept missing", code)
	}
	if code, _ := scrape(t, handler, "/api/program"); code != http.StatusNotFound {
		t.Errorf("/api/program status = %d, want %d", code, http.StatusNotFound)
	}
}
