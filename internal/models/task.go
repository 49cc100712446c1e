package models

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known status token.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is a known priority token.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          uint64       `gorm:"primarykey" json:"id"`
	ProjectID   uint64       `gorm:"not null;index:idx_tasks_project_position,priority:1" json:"project_id"`
	CreatorID   uint64       `gorm:"not null;index" json:"creator_id"`
	AssigneeID  *uint64      `gorm:"index" json:"assignee_id"`
	Title       string       `gorm:"type:varchar(255);not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Status      TaskStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Priority    TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	Deadline    *time.Time   `gorm:"index" json:"deadline"`
	Position    uint         `gorm:"not null;default:0;index:idx_tasks_project_position,priority:2" json:"position"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Relations
	Project  Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Creator  User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Assignee *User     `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Tags     []Tag     `gorm:"many2many:task_tags;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
	Comments []Comment `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// IsAssignedTo reports whether the task is currently assigned to userID.
func (t Task) IsAssignedTo(userID uint64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}
