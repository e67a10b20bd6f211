package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hammamikhairi/voiceask/internal/domain"
	"github.com/hammamikhairi/voiceask/internal/engine"
)

func TestObserverCounts(t *testing.T) {
	m := New()

	m.PhaseChanged(domain.PhaseIdle, domain.PhaseRecording)
	m.PhaseChanged(domain.PhaseRecording, domain.PhaseRecorded)
	m.PhaseChanged(domain.PhaseIdle, domain.PhaseRecording)

	if got := testutil.ToFloat64(m.transitions.WithLabelValues("idle", "recording")); got != 2 {
		t.Errorf("idle->recording = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.phase); got != float64(domain.PhaseRecording) {
		t.Errorf("phase gauge = %v", got)
	}

	m.UploadFinished(engine.OutcomeOK, 800*time.Millisecond)
	m.UploadFinished(engine.OutcomeServer, 2*time.Second)
	m.UploadFinished(engine.OutcomeOK, time.Second)

	if got := testutil.ToFloat64(m.uploads.WithLabelValues(engine.OutcomeOK)); got != 2 {
		t.Errorf("ok uploads = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.uploadLatency); got != 1 {
		t.Errorf("latency histogram series = %d", got)
	}

	m.StaleDiscarded("upload")
	if got := testutil.ToFloat64(m.stale.WithLabelValues("upload")); got != 1 {
		t.Errorf("stale uploads = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.StaleDiscarded("speech")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`voiceask_stale_events_total{kind="speech"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a, b := New(), New()
	a.StaleDiscarded("upload")
	if got := testutil.ToFloat64(b.stale.WithLabelValues("upload")); got != 0 {
		t.Fatalf("registries share state: %v", got)
	}
}
