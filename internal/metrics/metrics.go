// Package metrics содержит Prometheus-метрики сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит коллекторы сервиса и собственный реестр.
// Методы безопасно вызывать на nil-значении.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Punches      *prometheus.CounterVec
	Redemptions  prometheus.Counter
	RateLimited  *prometheus.CounterVec
}

// New создаёт и регистрирует все метрики.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tapranked_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tapranked_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Punches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tapranked_punches_total",
			Help: "Collected punches by whether the tap earned a reward.",
		}, []string{"reward_earned"}),
		Redemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapranked_redemptions_total",
			Help: "Redeemed prizes.",
		}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tapranked_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.Punches,
		m.Redemptions,
		m.RateLimited,
	)

	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncPunch учитывает отметку.
func (m *Metrics) IncPunch(rewardEarned bool) {
	if m == nil {
		return
	}
	m.Punches.WithLabelValues(strconv.FormatBool(rewardEarned)).Inc()
}

// IncRedemption учитывает полученный приз.
func (m *Metrics) IncRedemption() {
	if m == nil {
		return
	}
	m.Redemptions.Inc()
}

// IncRateLimited учитывает отклонённый лимитером запрос.
func (m *Metrics) IncRateLimited(action string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(action).Inc()
}
