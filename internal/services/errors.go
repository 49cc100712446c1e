package services

import (
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
)

var (
	ErrUserNotFound    = apierrors.NewNotFound("user not found")
	ErrProjectNotFound = apierrors.NewNotFound("project not found")
	ErrMemberNotFound  = apierrors.NewNotFound("project member not found")
	ErrTaskNotFound    = apierrors.NewNotFound("task not found")
	ErrTagNotFound     = apierrors.NewNotFound("tag not found")
	ErrCommentNotFound = apierrors.NewNotFound("comment not found")
)

var (
	ErrEmailRequired       = apierrors.NewValidation("email is required")
	ErrInvalidEmail        = apierrors.NewValidation("invalid email address")
	ErrPasswordTooShort    = apierrors.NewValidation("password too short")
	ErrProjectNameRequired = apierrors.NewValidation("project name cannot be empty")
	ErrInvalidProjectState = apierrors.NewValidation("invalid project status")
	ErrInvalidRole         = apierrors.NewValidation("invalid role")
	ErrCannotGrantOwner    = apierrors.NewValidation("the owner role cannot be granted")
	ErrCannotChangeOwner   = apierrors.NewValidation("the project owner's role cannot be changed")
	ErrCannotRemoveOwner   = apierrors.NewValidation("the project owner cannot be removed")
	ErrOwnerCannotLeave    = apierrors.NewValidation("the project owner cannot leave the project")
	ErrTitleRequired       = apierrors.NewValidation("title is required")
	ErrTitleTooLong        = apierrors.NewValidation("title is too long")
	ErrInvalidStatus       = apierrors.NewValidation("invalid task status")
	ErrInvalidPriority     = apierrors.NewValidation("invalid task priority")
	ErrInvalidPosition     = apierrors.NewValidation("position must not be negative")
	ErrAssigneeNotMember   = apierrors.NewValidation("assignee is not a member of the project")
	ErrTagNameRequired     = apierrors.NewValidation("tag name is required")
	ErrTagNameTooLong      = apierrors.NewValidation("tag name is too long")
	ErrInvalidTagColor     = apierrors.NewValidation("color must be a hex value like #1A2B3C")
	ErrTooManyTags         = apierrors.NewValidation("too many tags")
	ErrInvalidTags         = apierrors.NewValidation("one or more tags do not exist in this project")
	ErrCommentEmpty        = apierrors.NewValidation("comment cannot be empty")
	ErrCommentTooLong      = apierrors.NewValidation("comment is too long")
)

var (
	ErrEmailTaken    = apierrors.NewConflict("email already registered")
	ErrAlreadyMember = apierrors.NewConflict("user is already a member of this project")
	ErrTagNameTaken  = apierrors.NewConflict("a tag with this name already exists in the project")
)
