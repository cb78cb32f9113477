package model

import "time"

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// DigestSummary 各优先级行动项计数
type DigestSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// ActionItem is one prioritized entry in the digest's action list.
type ActionItem struct {
	Priority string `json:"priority"`
	Category string `json:"category"` // expiring_tariff, stalled_pipeline, pending_review
	Message  string `json:"message"`
}

// ExpiringTariff 即将到期的运价协议
type ExpiringTariff struct {
	TariffID   int       `json:"tariff_id"`
	Name       string    `json:"name"`
	CustomerID int       `json:"customer_id"`
	ValidUntil time.Time `json:"valid_until"`
}

// StalledItem 停滞的业务管道条目
type StalledItem struct {
	CSPEventID int       `json:"csp_event_id"`
	Reference  string    `json:"reference"`
	Stage      string    `json:"stage"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PendingReview 等待审批的条目
type PendingReview struct {
	ReviewID    int       `json:"review_id"`
	Subject     string    `json:"subject"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DailyDigest is the once-per-user-per-day aggregated action summary,
// uniquely keyed by (user, calendar day).
type DailyDigest struct {
	ID              int              `json:"id"`
	UserID          int              `json:"user_id"`
	DigestDate      string           `json:"digest_date"` // 2006-01-02
	Summary         DigestSummary    `json:"summary"`
	ExpiringTariffs []ExpiringTariff `json:"expiring_tariffs"`
	StalledItems    []StalledItem    `json:"stalled_items"`
	PendingReviews  []PendingReview  `json:"pending_reviews"`
	ActionItems     []ActionItem     `json:"action_items"`
	CreatedAt       time.Time        `json:"created_at"`
}
