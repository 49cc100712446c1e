package events

import (
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

type TagData struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type TaskData struct {
	ID          uint64              `json:"id"`
	ProjectID   uint64              `json:"project_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	Deadline    *time.Time          `json:"deadline"`
	Position    uint                `json:"position"`
	Creator     UserRef             `json:"creator"`
	Assignee    *UserRef            `json:"assignee"`
	Tags        []TagData           `json:"tags"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewTaskData projects a task loaded with Creator, Assignee and Tags.
func NewTaskData(t models.Task) TaskData {
	data := TaskData{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Deadline:    t.Deadline,
		Position:    t.Position,
		Creator:     NewUserRef(t.Creator),
		Tags:        make([]TagData, 0, len(t.Tags)),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Assignee != nil {
		ref := NewUserRef(*t.Assignee)
		data.Assignee = &ref
	}
	for _, tag := range t.Tags {
		data.Tags = append(data.Tags, TagData{ID: tag.ID, Name: tag.Name, Color: tag.Color})
	}
	return data
}

type CommentData struct {
	ID        uint64    `json:"id"`
	TaskID    uint64    `json:"task_id"`
	Content   string    `json:"content"`
	IsEdited  bool      `json:"is_edited"`
	Author    UserRef   `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCommentData projects a comment loaded with Author.
func NewCommentData(c models.Comment) CommentData {
	return CommentData{
		ID:        c.ID,
		TaskID:    c.TaskID,
		Content:   c.Content,
		IsEdited:  c.IsEdited,
		Author:    NewUserRef(c.Author),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// TaskStub identifies a deleted task.
type TaskStub struct {
	ID        uint64 `json:"id"`
	ProjectID uint64 `json:"project_id"`
}

// CommentStub identifies a deleted comment.
type CommentStub struct {
	ID     uint64 `json:"id"`
	TaskID uint64 `json:"task_id"`
}
