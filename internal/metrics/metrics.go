// Package metrics holds Prometheus instruments shared by the router, the
// record store, the provider adapter, and the SSL watcher.  All collectors
// are registered with the global registry, so mounting promhttp.Handler()
// in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RouteDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_decisions_total",
			Help: "Hostname router decisions by host class and action.",
		}, []string{"class", "kind"})

	DomainLookupErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "domain_lookup_errors_total",
			Help: "Custom-domain lookups that failed and were treated as root traffic.",
		})

	RecordStoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_store_errors_total",
			Help: "Key-value store failures seen by the record layer.",
		}, []string{"op"})

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Hosting-provider calls by operation and outcome.",
		}, []string{"op", "outcome"})

	SSLStatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssl_status_updates_total",
			Help: "SSL status changes written by the watcher.",
		}, []string{"status"})

	RegisteredTenants = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registered_tenants",
			Help: "Records seen by the last listing, by kind.",
		}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		RouteDecisions,
		DomainLookupErrors,
		RecordStoreErrors,
		ProviderRequests,
		SSLStatusUpdates,
		RegisteredTenants,
	)
}
