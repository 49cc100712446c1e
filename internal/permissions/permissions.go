// Package permissions maps each operation to the capabilities it requires.
package permissions

import (
	"context"
	"fmt"

	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/models"
)

type Operation string

const (
	ViewProject   Operation = "project.view"
	UpdateProject Operation = "project.update"
	DeleteProject Operation = "project.delete"
	ManageMembers Operation = "project.manage_members"
	LeaveProject  Operation = "project.leave"
	ViewTask      Operation = "task.view"
	CreateTask    Operation = "task.create"
	EditTask      Operation = "task.edit"
	ChangeStatus  Operation = "task.change_status"
	AssignTask    Operation = "task.assign"
	ReorderTask   Operation = "task.reorder"
	SetTaskTags   Operation = "task.set_tags"
	DeleteTask    Operation = "task.delete"
	CreateComment Operation = "comment.create"
	EditComment   Operation = "comment.edit"
	DeleteComment Operation = "comment.delete"
	ManageTags    Operation = "tag.manage"
)

// Facts is what a capability may look at.
type Facts struct {
	UserID  uint64
	Role    models.ProjectRole
	Member  bool
	Task    *models.Task
	Comment *models.Comment
}

// Capability is one predicate over Facts.
type Capability struct {
	Name  string
	Allow func(f Facts) bool
}

var (
	IsMember = Capability{"is_member", func(f Facts) bool { return f.Member }}

	CanContribute = Capability{"can_contribute", func(f Facts) bool { return f.Member && f.Role.CanContribute() }}

	IsAdminOrOwner = Capability{"is_admin_or_owner", func(f Facts) bool { return f.Member && f.Role.IsAdminOrOwner() }}

	IsOwner = Capability{"is_owner", func(f Facts) bool { return f.Member && f.Role == models.RoleOwner }}

	IsTaskCreatorAssigneeOrAdmin = Capability{"is_task_creator_assignee_or_admin", func(f Facts) bool {
		if f.Task == nil {
			return false
		}
		return f.Task.CreatorID == f.UserID || f.Task.IsAssignedTo(f.UserID) || f.Role.IsAdminOrOwner()
	}}

	IsTaskCreatorOrAdmin = Capability{"is_task_creator_or_admin", func(f Facts) bool {
		if f.Task == nil {
			return false
		}
		return f.Task.CreatorID == f.UserID || f.Role.IsAdminOrOwner()
	}}

	IsCommentAuthor = Capability{"is_comment_author", func(f Facts) bool {
		return f.Comment != nil && f.Comment.AuthorID == f.UserID
	}}

	IsCommentAuthorOrAdmin = Capability{"is_comment_author_or_admin", func(f Facts) bool {
		if f.Comment == nil {
			return false
		}
		return f.Comment.AuthorID == f.UserID || f.Role.IsAdminOrOwner()
	}}
)

// Rules lists, per operation, the capabilities that must all hold.
var Rules = map[Operation][]Capability{
	ViewProject:   {IsMember},
	UpdateProject: {IsMember, IsAdminOrOwner},
	DeleteProject: {IsMember, IsOwner},
	ManageMembers: {IsMember, IsAdminOrOwner},
	LeaveProject:  {IsMember},

	ViewTask:     {IsMember},
	CreateTask:   {IsMember, CanContribute},
	EditTask:     {IsMember, IsTaskCreatorAssigneeOrAdmin},
	ChangeStatus: {IsMember, IsTaskCreatorAssigneeOrAdmin},
	AssignTask:   {IsMember, IsTaskCreatorAssigneeOrAdmin},
	ReorderTask:  {IsMember, IsTaskCreatorAssigneeOrAdmin},
	SetTaskTags:  {IsMember, IsTaskCreatorAssigneeOrAdmin},
	DeleteTask:   {IsMember, IsTaskCreatorOrAdmin},

	CreateComment: {IsMember, CanContribute},
	EditComment:   {IsMember, IsCommentAuthor},
	DeleteComment: {IsMember, IsCommentAuthorOrAdmin},

	ManageTags: {IsMember, IsAdminOrOwner},
}

// ErrPermissionDenied is returned when a capability does not hold.
var ErrPermissionDenied = apierrors.NewPermissionDenied("you do not have permission to perform this action")

// RoleResolver looks up a user's role in a project.
type RoleResolver interface {
	Role(ctx context.Context, projectID, userID uint64) (models.ProjectRole, bool, error)
}

// Subject identifies who does what to which object.
type Subject struct {
	UserID    uint64
	ProjectID uint64
	Task      *models.Task
	Comment   *models.Comment
}

type Authorizer struct {
	roles RoleResolver
}

func NewAuthorizer(roles RoleResolver) *Authorizer {
	return &Authorizer{roles: roles}
}

// Check returns nil when every capability required by op holds for s.
func (a *Authorizer) Check(ctx context.Context, op Operation, s Subject) error {
	_, err := a.Role(ctx, op, s)
	return err
}

// Role is Check that also returns the caller's role.
func (a *Authorizer) Role(ctx context.Context, op Operation, s Subject) (models.ProjectRole, error) {
	caps, ok := Rules[op]
	if !ok {
		return "", fmt.Errorf("no permission rule for %s", op)
	}

	role, member, err := a.roles.Role(ctx, s.ProjectID, s.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}

	facts := Facts{UserID: s.UserID, Role: role, Member: member, Task: s.Task, Comment: s.Comment}
	for _, c := range caps {
		if !c.Allow(facts) {
			return role, ErrPermissionDenied
		}
	}
	return role, nil
}
