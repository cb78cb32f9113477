package model

import "time"

// Thread lifecycle statuses. A send or a reply always resets a thread
// to active; only the stall sweep moves it to stalled; closing is an
// explicit business action outside this core.
const (
	ThreadActive        = "active"
	ThreadAwaitingReply = "awaiting_reply"
	ThreadStalled       = "stalled"
	ThreadClosed        = "closed"
)

// Thread 表示由跟踪码串起来的一个邮件会话
type Thread struct {
	ID             int
	TrackingCode   string
	CSPEventID     *int
	CustomerID     *int
	CarrierID      *int
	Status         string
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
