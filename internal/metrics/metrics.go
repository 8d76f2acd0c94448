// Package metrics exposes the relay's Prometheus counters.
// All recording methods are no-ops on a nil *Registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OutboundRequests *prometheus.CounterVec
	OutboundLatency  *prometheus.HistogramVec
	FieldResolution  *prometheus.CounterVec
	CheckoutLinks    *prometheus.CounterVec
	Tasks            *prometheus.CounterVec
	Confirmations    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	outbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_outbound_requests_total",
		Help: "Provider API calls by provider, operation and HTTP status class.",
	}, []string{"provider", "operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_outbound_latency_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "operation"})
	fields := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_schema_field_resolution_total",
		Help: "Custom-field lookups per logical key, matched or missing.",
	}, []string{"key", "result"})
	links := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "relay_checkout_links_total"}, []string{"result"})
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "relay_tasks_total"}, []string{"result"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "relay_confirmations_total"}, []string{"result"})

	r.MustRegister(outbound, latency, fields, links, tasks, confirmations)
	return &Registry{
		reg:              r,
		OutboundRequests: outbound,
		OutboundLatency:  latency,
		FieldResolution:  fields,
		CheckoutLinks:    links,
		Tasks:            tasks,
		Confirmations:    confirmations,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObserveOutbound records one provider call. status is 0 when no response arrived.
func (r *Registry) ObserveOutbound(provider, operation string, status int, d time.Duration) {
	if r == nil {
		return
	}
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	r.OutboundRequests.WithLabelValues(provider, operation, class).Inc()
	r.OutboundLatency.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// FieldResolved records whether a logical custom-field key found a provider field.
func (r *Registry) FieldResolved(key string, matched bool) {
	if r == nil {
		return
	}
	result := "missing"
	if matched {
		result = "matched"
	}
	r.FieldResolution.WithLabelValues(key, result).Inc()
}

func (r *Registry) CheckoutLink(result string) {
	if r == nil {
		return
	}
	r.CheckoutLinks.WithLabelValues(result).Inc()
}

func (r *Registry) Task(result string) {
	if r == nil {
		return
	}
	r.Tasks.WithLabelValues(result).Inc()
}

func (r *Registry) Confirmation(result string) {
	if r == nil {
		return
	}
	r.Confirmations.WithLabelValues(result).Inc()
}
