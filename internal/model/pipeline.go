package model

import "time"

// Digest source rows. These entities are owned by the wider CRM; the
// core only reads the fields it needs to build a digest.

// Tariff 客户运价协议
type Tariff struct {
	ID         int
	UserID     int
	CustomerID int
	Name       string
	ValidUntil time.Time
}

// CSPEvent 业务管道事件（报价、订舱等）
type CSPEvent struct {
	ID        int
	UserID    int
	Reference string
	Stage     string
	Status    string
	UpdatedAt time.Time
}

// ReviewItem 等待审批的条目
type ReviewItem struct {
	ID          int
	UserID      int
	Subject     string
	SubmittedAt time.Time
}
