package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetQueue(1, 2)
	m.Vote("recorded")
	m.ObserveTransform("ok", time.Second)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Vote("recorded")
	m.Vote("recorded")
	m.Vote("limit")
	m.SetQueue(2, 5)
	m.ClipsExpired(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"guessrank_clips_expired_total 3", "guessrank_transform_active 2", "guessrank_transform_queue_depth 5",
		`guessrank_votes_total{outcome="recorded"} 2`, `guessrank_votes_total{outcome="limit"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
