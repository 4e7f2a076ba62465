package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueMessagesTotal) }

var queueMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "queue_messages_total",
		Help: "Dispatch queue events: pushed, delivered, acked, retried, dead, requeued.",
	},
	[]string{"event"},
)

func IncQueue(event string) {
	queueMessagesTotal.WithLabelValues(norm(event)).Inc()
}

func IncQueueBy(event string, n int) {
	queueMessagesTotal.WithLabelValues(norm(event)).Add(float64(n))
}
