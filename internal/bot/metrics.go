package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the bot's Prometheus collectors.
type Metrics struct {
	UpdatesProcessed     *prometheus.CounterVec
	UpdateProcessingTime prometheus.Histogram
	MessagesDelivered    prometheus.Counter
	ErrorsTotal          prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UpdatesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_updates_total",
			Help: "Processed Telegram updates by kind",
		}, []string{"kind"}),

		UpdateProcessingTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		MessagesDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_chat_messages_delivered_total",
			Help: "Scripted chat messages delivered to users",
		}),

		ErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Update handler failures and recovered panics",
		}),
	}
}
