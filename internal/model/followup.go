package model

import "time"

const (
	FollowUpPending   = "pending"
	FollowUpCompleted = "completed"
)

// FollowUpTask 跟进任务：发件人期待回复时由业务侧创建，
// 带 auto_close_on_reply 标记的任务在回复到达时被自动关闭
type FollowUpTask struct {
	ID               int
	ThreadID         int
	Status           string
	AutoCloseOnReply bool
	CompletedAt      *time.Time
	CompletionNote   *string
	CreatedAt        time.Time
}
