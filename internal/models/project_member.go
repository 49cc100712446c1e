package models

import "time"

type ProjectRole string

const (
	RoleOwner  ProjectRole = "owner"
	RoleAdmin  ProjectRole = "admin"
	RoleMember ProjectRole = "member"
	RoleViewer ProjectRole = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r ProjectRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// IsAdminOrOwner reports whether r can administer the project.
func (r ProjectRole) IsAdminOrOwner() bool {
	return r == RoleOwner || r == RoleAdmin
}

// CanContribute reports whether r can create tasks and comments.
func (r ProjectRole) CanContribute() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

type ProjectMember struct {
	ProjectID uint64      `gorm:"primarykey" json:"project_id"`
	UserID    uint64      `gorm:"primarykey" json:"user_id"`
	Role      ProjectRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
