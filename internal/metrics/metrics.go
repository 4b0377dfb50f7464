package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of provider webhook events received",
		},
		[]string{"type", "outcome"},
	)

	ClicksFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicks_filtered_total",
			Help: "Total number of clicks classified as bot or spam",
		},
		[]string{"reason"},
	)

	CommissionComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "commission_computed_total",
			Help: "Total commission amount credited, in major units",
		},
	)

	ClickQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "click_queue_size",
			Help: "Current size of the click processing queue",
		},
	)
)

func init() {
	prometheus.MustRegister(WebhookEvents)
	prometheus.MustRegister(ClicksFiltered)
	prometheus.MustRegister(CommissionComputed)
	prometheus.MustRegister(ClickQueueSize)
}
