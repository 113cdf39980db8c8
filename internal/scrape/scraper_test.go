package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/model"
)

const exposition = `# HELP node_load1 1m load average.
# TYPE node_load1 gauge
node_load1 2.5
# HELP http_requests_total Total requests.
# TYPE http_requests_total counter
http_requests_total{code="200"} 120
http_requests_total{code="500"} 3
# HELP request_duration_seconds Latency.
# TYPE request_duration_seconds histogram
request_duration_seconds_bucket{le="0.1"} 40
request_duration_seconds_sum 12.5
request_duration_seconds_count 50
`

type captureSink struct {
	mu      sync.Mutex
	samples []*model.Sample
}

func (c *captureSink) Ingest(s *model.Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func (c *captureSink) byMetric() map[string]*model.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*model.Sample, len(c.samples))
	for _, s := range c.samples {
		out[s.Metric] = s
	}
	return out
}

func expositionServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newScraper(sink Sink, sources ...config.ScrapeSource) *Scraper {
	s := New(config.ScrapeConfig{Interval: time.Hour, Sources: sources}, sink)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestScrapeAll_FeedsSamples(t *testing.T) {
	srv := expositionServer(t, exposition)
	sink := &captureSink{}
	s := newScraper(sink, config.ScrapeSource{TenantID: "t1", Endpoint: srv.URL})

	s.ScrapeAll(context.Background())

	got := sink.byMetric()
	load, ok := got["node_load1"]
	if !ok {
		t.Fatalf("node_load1 missing; got %v", got)
	}
	if load.TenantID != "t1" || load.Value != "2.5" || load.Timestamp != 1700000000 {
		t.Errorf("node_load1 sample: %+v", load)
	}
}

func TestScrapeAll_LabelledSeriesAreDistinct(t *testing.T) {
	srv := expositionServer(t, exposition)
	sink := &captureSink{}
	s := newScraper(sink, config.ScrapeSource{TenantID: "t1", Endpoint: srv.URL})

	s.ScrapeAll(context.Background())

	got := sink.byMetric()
	ok200, ok500 := got[`http_requests_total{code="200"}`], got[`http_requests_total{code="500"}`]
	if ok200 == nil || ok500 == nil {
		t.Fatalf("labelled series missing; got %v", got)
	}
	if ok200.Value != "120" || ok500.Value != "3" {
		t.Errorf("values: 200=%s 500=%s", ok200.Value, ok500.Value)
	}
}

func TestScrapeAll_SkipsHistograms(t *testing.T) {
	srv := expositionServer(t, exposition)
	sink := &captureSink{}
	s := newScraper(sink, config.ScrapeSource{TenantID: "t1", Endpoint: srv.URL})

	s.ScrapeAll(context.Background())

	for m := range sink.byMetric() {
		if m == "request_duration_seconds" {
			t.Errorf("histogram family should be skipped, got sample for %s", m)
		}
	}
}

func TestScrapeAll_AppliesPrefix(t *testing.T) {
	srv := expositionServer(t, "up 1\n")
	sink := &captureSink{}
	s := newScraper(sink, config.ScrapeSource{TenantID: "t1", Endpoint: srv.URL, Prefix: "node."})

	s.ScrapeAll(context.Background())

	if _, ok := sink.byMetric()["node.up"]; !ok {
		t.Errorf("prefixed metric missing; got %v", sink.byMetric())
	}
}

func TestScrapeAll_FailingSourceDoesNotBlockOthers(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(bad.Close)
	good := expositionServer(t, "up 1\n")

	sink := &captureSink{}
	s := newScraper(sink,
		config.ScrapeSource{TenantID: "t1", Endpoint: bad.URL},
		config.ScrapeSource{TenantID: "t2", Endpoint: good.URL},
	)

	s.ScrapeAll(context.Background())

	got := sink.byMetric()
	if len(got) != 1 {
		t.Fatalf("samples: got %d, want 1 (%v)", len(got), got)
	}
	if got["up"].TenantID != "t2" {
		t.Errorf("sample tenant: %+v", got["up"])
	}
}

func TestRun_NoSourcesReturnsImmediately(t *testing.T) {
	s := New(config.ScrapeConfig{Interval: time.Millisecond}, &captureSink{})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return with no sources configured")
	}
}
