package model

import "time"

const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// EmailActivity is one immutable sent or received email record. Many
// activities share one thread via the tracking code; the thread-starter
// activity anchors the pipeline/counterparty references that later
// activities inherit by lookup.
type EmailActivity struct {
	ID              int
	TrackingCode    string
	MessageID       string
	InReplyTo       *string
	Direction       string
	Sender          string
	Recipients      []string
	Cc              []string
	Subject         string
	Body            string
	SentAt          time.Time
	IsThreadStarter bool
	CreatedAt       time.Time
}
