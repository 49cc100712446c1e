// Package jobs holds the background job handlers and the payloads that
// services schedule for them.
package jobs

import "github.com/yukikurage/taskflow-api/internal/models"

// Broadcast job types.
const (
	TypeBroadcastTask           = "broadcast.task"
	TypeBroadcastTaskDeleted    = "broadcast.task_deleted"
	TypeBroadcastComment        = "broadcast.comment"
	TypeBroadcastCommentDeleted = "broadcast.comment_deleted"
)

// Notification job types.
const (
	TypeNotifyTaskAssigned      = "notify.task_assigned"
	TypeNotifyTaskUnassigned    = "notify.task_unassigned"
	TypeNotifyStatusChanged     = "notify.task_status_changed"
	TypeNotifyCommentToAssignee = "notify.comment_assignee"
	TypeNotifyCommentToCreator  = "notify.comment_creator"
	TypeNotifyInvitation        = "notify.project_invitation"
	TypeNotifyRoleChanged       = "notify.member_role_changed"
	TypeNotifyRemoved           = "notify.member_removed"
)

// Payloads carry ids only. Handlers read current state when they run.

type TaskBroadcast struct {
	EventType string `json:"event_type"`
	TaskID    uint64 `json:"task_id"`
	UserID    uint64 `json:"user_id"`
}

type TaskDeletedBroadcast struct {
	TaskID    uint64 `json:"task_id"`
	ProjectID uint64 `json:"project_id"`
	UserID    uint64 `json:"user_id"`
}

type CommentBroadcast struct {
	EventType string `json:"event_type"`
	CommentID uint64 `json:"comment_id"`
	UserID    uint64 `json:"user_id"`
}

type CommentDeletedBroadcast struct {
	CommentID uint64 `json:"comment_id"`
	TaskID    uint64 `json:"task_id"`
	ProjectID uint64 `json:"project_id"`
	UserID    uint64 `json:"user_id"`
}

// TaskAssignment notifies UserID that they were assigned or unassigned.
type TaskAssignment struct {
	TaskID      uint64 `json:"task_id"`
	UserID      uint64 `json:"user_id"`
	ProjectName string `json:"project_name"`
}

type StatusChange struct {
	TaskID    uint64            `json:"task_id"`
	UserID    uint64            `json:"user_id"`
	OldStatus models.TaskStatus `json:"old_status"`
	NewStatus models.TaskStatus `json:"new_status"`
}

type CommentNotice struct {
	CommentID uint64 `json:"comment_id"`
	UserID    uint64 `json:"user_id"`
}

type Invitation struct {
	ProjectID uint64             `json:"project_id"`
	UserID    uint64             `json:"user_id"`
	InviterID uint64             `json:"inviter_id"`
	Role      models.ProjectRole `json:"role"`
}

type RoleChange struct {
	ProjectID uint64             `json:"project_id"`
	UserID    uint64             `json:"user_id"`
	OldRole   models.ProjectRole `json:"old_role"`
	NewRole   models.ProjectRole `json:"new_role"`
}

// Removal keeps the project name because the project may be gone.
type Removal struct {
	ProjectID   uint64 `json:"project_id"`
	ProjectName string `json:"project_name"`
	UserID      uint64 `json:"user_id"`
}
