package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "relay"

// relayCollector reads the server and session counters at scrape time, so
// the JSON and Prometheus views never disagree.
type relayCollector struct {
	server *Server

	requests      *prometheus.Desc
	tokenRequests *prometheus.Desc
	tokensIssued  *prometheus.Desc
	tokenFailures *prometheus.Desc
	logins        *prometheus.Desc
	loginFailures *prometheus.Desc
	rebuilds      *prometheus.Desc
	authenticated *prometheus.Desc
}

func newRelayCollector(s *Server) *relayCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}

	return &relayCollector{
		server:        s,
		requests:      desc("http_requests_total", "HTTP requests received."),
		tokenRequests: desc("token_requests_total", "Token requests received."),
		tokensIssued:  desc("tokens_issued_total", "Tokens returned to clients."),
		tokenFailures: desc("token_failures_total", "Token requests answered with an error."),
		logins:        desc("cluster_logins_total", "Administrator login attempts against the cluster."),
		loginFailures: desc("cluster_login_failures_total", "Administrator login attempts that failed."),
		rebuilds:      desc("session_manager_rebuilds_total", "Session managers replaced after a cluster configuration change."),
		authenticated: desc("cluster_authenticated", "1 while an administrator session is held."),
	}
}

func (c *relayCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.tokenRequests
	ch <- c.tokensIssued
	ch <- c.tokenFailures
	ch <- c.logins
	ch <- c.loginFailures
	ch <- c.rebuilds
	ch <- c.authenticated
}

func (c *relayCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.server

	counter := func(desc *prometheus.Desc, value int64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value))
	}

	counter(c.requests, s.TotalRequests.Load())
	counter(c.tokenRequests, s.TokenRequests.Load())
	counter(c.tokensIssued, s.TokensIssued.Load())
	counter(c.tokenFailures, s.TokenFailures.Load())

	logins, failures, rebuilds := s.Brokers.Stats()
	counter(c.logins, logins)
	counter(c.loginFailures, failures)
	counter(c.rebuilds, rebuilds)

	authenticated := 0.0
	if binding := s.Brokers.Current(); binding != nil && binding.Manager.IsAuthenticated() {
		authenticated = 1
	}
	ch <- prometheus.MustNewConstMetric(c.authenticated, prometheus.GaugeValue, authenticated)
}

// prometheusHandler uses a private registry so several servers can live in
// one process, as they do in tests.
func (s *Server) prometheusHandler() http.Handler {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		newRelayCollector(s),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
