package models

import "time"

type Comment struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	TaskID    uint64    `gorm:"not null;index:idx_comments_task_created,priority:1" json:"task_id"`
	AuthorID  uint64    `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsEdited  bool      `gorm:"not null;default:false" json:"is_edited"`
	CreatedAt time.Time `gorm:"index:idx_comments_task_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Task   Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Project{},
		&ProjectMember{},
		&Tag{},
		&Task{},
		&Comment{},
	}
}
