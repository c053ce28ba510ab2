package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivr_turns_total",
		Help: "Webhook turns processed, by dialect and the state the turn started in",
	}, []string{"dialect", "state"})

	VerificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivr_verification_failures_total",
		Help: "Mismatched username or PIN turns",
	}, []string{"stage"})

	CallsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivr_calls_ended_total",
		Help: "Calls that reached a terminal outcome",
	}, []string{"outcome"})

	AdvisoryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivr_advisory_requests_total",
		Help: "Advisory bridge requests by outcome",
	}, []string{"outcome"})

	AdvisoryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ivr_advisory_request_seconds",
		Help:    "Advisory bridge round trip time",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	WebhookErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ivr_webhook_errors_total",
		Help: "Turns answered with the system error prompt",
	}, []string{"dialect", "kind"})
)
