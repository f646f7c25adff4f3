// Package metrics exposes the Prometheus instruments for the messaging
// backend. Everything is registered on the default registry and served by
// promhttp from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts stored messages by type (text, image, audio, ...).
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketlane",
		Subsystem: "messaging",
		Name:      "messages_sent_total",
		Help:      "Messages accepted and stored, labelled by message type.",
	}, []string{"type"})

	// ConversationsCreated counts new conversations by kind.
	ConversationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketlane",
		Subsystem: "messaging",
		Name:      "conversations_created_total",
		Help:      "Conversations created, labelled by conversation type.",
	}, []string{"type"})

	// AttachmentFailures counts rejected or failed attachment uploads.
	AttachmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketlane",
		Subsystem: "attachments",
		Name:      "failures_total",
		Help:      "Attachment pipeline failures, labelled by reason.",
	}, []string{"reason"})

	// AttachmentBytes observes stored attachment sizes.
	AttachmentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketlane",
		Subsystem: "attachments",
		Name:      "stored_bytes",
		Help:      "Size distribution of stored attachments.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// NotificationEmails counts outbound email notifications by outcome.
	NotificationEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketlane",
		Subsystem: "notifications",
		Name:      "emails_total",
		Help:      "Email notification attempts, labelled by outcome.",
	}, []string{"outcome"})

	// HTTPRequestDuration observes handler latency by route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketlane",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// WSConnections tracks live websocket connections on this instance.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketlane",
		Subsystem: "websocket",
		Name:      "connections",
		Help:      "Currently open websocket connections.",
	})
)
