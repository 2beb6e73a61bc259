// Package metrics exposes Prometheus metrics for provider calls, article
// generation, rate limiting and publishing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blogger"

// Collector records application metrics. It implements provider.Observer.
type Collector struct {
	attempts    *prometheus.CounterVec
	attemptTime *prometheus.HistogramVec
	generations *prometheus.CounterVec
	genLatency  prometheus.Histogram
	rateLimited *prometheus.CounterVec
	publishRuns *prometheus.CounterVec
	commands    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider invocation attempts by domain, provider and outcome.",
		}, []string{"domain", "provider", "outcome"}),
		attemptTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_seconds",
			Help:      "Provider invocation latency in seconds.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"domain", "provider"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Article generations by result.",
		}, []string{"result"}),
		genLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_seconds",
			Help:      "End-to-end article generation latency in seconds.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter by reason.",
		}, []string{"reason"}),
		publishRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_runs_total",
			Help:      "Publish pipeline runs by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Bot commands handled by command name.",
		}, []string{"command"}),
	}

	reg.MustRegister(
		c.attempts,
		c.attemptTime,
		c.generations,
		c.genLatency,
		c.rateLimited,
		c.publishRuns,
		c.commands,
	)
	return c
}

// ObserveAttempt records one provider attempt.
func (c *Collector) ObserveAttempt(domain, provider, outcome string, d time.Duration) {
	c.attempts.WithLabelValues(domain, provider, outcome).Inc()
	c.attemptTime.WithLabelValues(domain, provider).Observe(d.Seconds())
}

// RecordGeneration records a finished generation.
func (c *Collector) RecordGeneration(ok bool, d time.Duration) {
	c.generations.WithLabelValues(result(ok)).Inc()
	c.genLatency.Observe(d.Seconds())
}

// RecordRateLimited records a rejected request.
func (c *Collector) RecordRateLimited(reason string) {
	c.rateLimited.WithLabelValues(reason).Inc()
}

// RecordPublish records a publish pipeline run.
func (c *Collector) RecordPublish(ok bool) {
	c.publishRuns.WithLabelValues(result(ok)).Inc()
}

// RecordCommand records a handled bot command.
func (c *Collector) RecordCommand(name string) {
	c.commands.WithLabelValues(name).Inc()
}

// TrackUsers exports fn as the number of users tracked by the rate limiter.
func TrackUsers(reg prometheus.Registerer, fn func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ratelimit_tracked_users",
		Help:      "Users currently tracked by the rate limiter.",
	}, func() float64 { return float64(fn()) }))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
