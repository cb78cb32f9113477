package mq

import "time"

// Routing keys on the events exchange. email.inbound is consumed by the
// worker (raw messages pushed by the external mailbox fetcher); the
// rest are published through the outbox for downstream consumers.
const (
	KeyEmailInbound  = "email.inbound"
	KeyEmailSent     = "email.sent"
	KeyEmailReceived = "email.received"
	KeyThreadStalled = "thread.stalled"
	KeyDigestCreated = "digest.created"
)

// InboundEmailPayload 外部抓取服务推送的原始入站邮件
type InboundEmailPayload struct {
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Cc        []string  `json:"cc,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	MessageID string    `json:"messageId"`
	InReplyTo string    `json:"inReplyTo,omitempty"`
	Date      time.Time `json:"date"`
}

// EmailSentPayload 出站邮件已投递
type EmailSentPayload struct {
	ActivityID   int       `json:"activity_id"`
	TrackingCode string    `json:"tracking_code"`
	UserID       int       `json:"user_id"`
	Subject      string    `json:"subject"`
	SentAt       time.Time `json:"sent_at"`
}

// EmailReceivedPayload 入站邮件已关联到会话
type EmailReceivedPayload struct {
	ActivityID   int       `json:"activity_id"`
	TrackingCode string    `json:"tracking_code"`
	ThreadID     int       `json:"thread_id"`
	Sender       string    `json:"sender"`
	ReceivedAt   time.Time `json:"received_at"`
}

// ThreadStalledPayload 会话因长期无活动被标记为停滞
type ThreadStalledPayload struct {
	ThreadID     int    `json:"thread_id"`
	TrackingCode string `json:"tracking_code"`
}

// DigestCreatedPayload 当日摘要已生成
type DigestCreatedPayload struct {
	DigestID   int    `json:"digest_id"`
	UserID     int    `json:"user_id"`
	DigestDate string `json:"digest_date"`
}
