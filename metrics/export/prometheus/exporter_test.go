package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmarquespt/authengine"
)

type fakeSource struct {
	snapshot authengine.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authengine.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authengine.MetricsSnapshot{
			Counters:   map[authengine.MetricID]uint64{},
			Histograms: map[authengine.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authengine.MetricsSnapshot{
			Counters: map[authengine.MetricID]uint64{
				authengine.MetricLoginSuccess: 7,
				authengine.MetricRefreshReuse: 2,
			},
			Histograms: map[authengine.MetricID][]uint64{
				authengine.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "authengine_login_success_total 7") {
		t.Fatalf("expected login success counter, got:\n%s", out)
	}
	if !strings.Contains(out, "authengine_refresh_reuse_total 2") {
		t.Fatalf("expected refresh reuse counter, got:\n%s", out)
	}
	if !strings.Contains(out, "authengine_validate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket, got:\n%s", out)
	}
	if !strings.Contains(out, "authengine_validate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected cumulative +Inf bucket, got:\n%s", out)
	}
	if !strings.Contains(out, "authengine_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter, got:\n%s", out)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authengine.MetricsSnapshot{
			Counters: map[authengine.MetricID]uint64{
				authengine.MetricSessionCreated: 3,
			},
			Histograms: map[authengine.MetricID][]uint64{},
		},
	})

	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "authengine_session_created_total 3") {
		t.Fatalf("expected session counter in body, got:\n%s", body)
	}
}
