package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveAttempt("ai", "openai", "failure", 2*time.Second)
	c.ObserveAttempt("ai", "gemini", "success", time.Second)
	c.ObserveAttempt("ai", "gemini", "success", time.Second)

	if v := testutil.ToFloat64(c.attempts.WithLabelValues("ai", "openai", "failure")); v != 1 {
		t.Errorf("openai failures = %v, want 1", v)
	}
	if v := testutil.ToFloat64(c.attempts.WithLabelValues("ai", "gemini", "success")); v != 2 {
		t.Errorf("gemini successes = %v, want 2", v)
	}
	if n := testutil.CollectAndCount(c.attemptTime); n != 2 {
		t.Errorf("latency series = %d, want 2", n)
	}
}

func TestRecordGeneration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGeneration(true, 3*time.Second)
	c.RecordGeneration(false, time.Second)

	if v := testutil.ToFloat64(c.generations.WithLabelValues("success")); v != 1 {
		t.Errorf("successes = %v, want 1", v)
	}
	if v := testutil.ToFloat64(c.generations.WithLabelValues("failure")); v != 1 {
		t.Errorf("failures = %v, want 1", v)
	}
}

func TestTrackUsers(t *testing.T) {
	reg := prometheus.NewRegistry()
	TrackUsers(reg, func() int { return 3 })

	n, err := testutil.GatherAndCount(reg, "blogger_ratelimit_tracked_users")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Errorf("series = %d, want 1", n)
	}
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "blogger_ratelimit_tracked_users 3") {
		t.Errorf("gauge value missing from scrape:\n%s", rec.Body.String())
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRateLimited("burst_limit")
	c.RecordPublish(true)
	c.RecordCommand("generate")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`blogger_rate_limited_total{reason="burst_limit"} 1`,
		`blogger_publish_runs_total{result="success"} 1`,
		`blogger_bot_commands_total{command="generate"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
