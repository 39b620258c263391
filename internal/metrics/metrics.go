// Package metrics defines the storefront's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors handlers update.
type Metrics struct {
	registry *prometheus.Registry

	Registrations          *prometheus.CounterVec
	RegistrationRejections *prometheus.CounterVec
	Logins                 *prometheus.CounterVec
	OrdersCreated          prometheus.Counter
	OrderRevenue           prometheus.Counter
	Uploads                *prometheus.CounterVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "registrations_total",
			Help:      "Accounts created, by granted role.",
		}, []string{"role"}),
		RegistrationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "registration_rejections_total",
			Help:      "Registration attempts refused, by reason.",
		}, []string{"reason"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "logins_total",
			Help:      "Login attempts, by outcome.",
		}, []string{"outcome"}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_total",
			Help:      "Orders placed.",
		}),
		OrderRevenue: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "order_revenue_total",
			Help:      "Sum of order totals at checkout.",
		}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "uploads_total",
			Help:      "Files uploaded, by category.",
		}, []string{"category"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
