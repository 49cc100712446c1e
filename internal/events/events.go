// Package events defines the envelopes broadcast to project subscribers.
package events

import (
	"strconv"
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

// Event types carried in Envelope.EventType and the socket frame type.
const (
	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskDeleted       = "task.deleted"
	TaskStatusChanged = "task.status_changed"
	TaskAssigned      = "task.assigned"
	TaskReordered     = "task.reordered"
	TaskTagsChanged   = "task.tags_changed"
	CommentCreated    = "comment.created"
	CommentUpdated    = "comment.updated"
	CommentDeleted    = "comment.deleted"
)

// ProjectGroup names the broadcast group for a project.
func ProjectGroup(projectID uint64) string {
	return "project_" + strconv.FormatUint(projectID, 10)
}

// UserRef is the minimal user projection sent to subscribers.
type UserRef struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func NewUserRef(u models.User) UserRef {
	return UserRef{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Envelope is one domain change as seen by subscribers.
type Envelope struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	User      UserRef   `json:"user"`
	Data      any       `json:"data"`
}

func NewEnvelope(eventType string, actor models.User, data any) Envelope {
	return Envelope{
		EventType: eventType,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		User:      NewUserRef(actor),
		Data:      data,
	}
}

// Frame is the message written to each socket.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
