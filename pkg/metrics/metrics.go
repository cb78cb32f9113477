package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 出站邮件计数
	EmailsSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_count",
			Help: "Total number of outbound emails by result",
		},
		[]string{"status"}, // status: success, credential_invalid, transient, failed
	)

	// 入站邮件处理计数
	InboundProcessedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_processed_count",
			Help: "Total number of inbound emails by correlation result",
		},
		[]string{"result"}, // result: correlated, uncorrelated, unknown_token, duplicate, error
	)

	// SMTP 发送延迟（毫秒）
	SMTPSendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smtp_send_latency_ms",
			Help:    "SMTP transport send latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"status"},
	)

	// 自动关闭的跟进任务计数
	FollowUpsAutoClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followups_auto_closed_count",
			Help: "Total number of follow-up tasks auto-closed by replies",
		},
	)

	// 停滞会话计数
	ThreadsStalledCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threads_stalled_count",
			Help: "Total number of threads transitioned to stalled",
		},
	)

	// 摘要生成计数
	DigestsGeneratedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digests_generated_count",
			Help: "Total number of daily digests by outcome",
		},
		[]string{"outcome"}, // outcome: created, existing, failed
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordSMTPSendLatency 记录 SMTP 发送延迟
func RecordSMTPSendLatency(status string, duration time.Duration) {
	SMTPSendLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
