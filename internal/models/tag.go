package models

import "time"

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6B7280"

type Tag struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	ProjectID uint64    `gorm:"not null;uniqueIndex:idx_tags_project_name,priority:1" json:"project_id"`
	Name      string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_tags_project_name,priority:2" json:"name"`
	Color     string    `gorm:"type:varchar(7);not null;default:'#6B7280'" json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Tasks   []Task  `gorm:"many2many:task_tags;constraint:OnDelete:CASCADE" json:"-"`
}
