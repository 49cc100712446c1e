// Package services holds the use cases behind the HTTP handlers. Every
// mutation runs in one outbox transaction; side effects are scheduled as
// jobs and only leave the process after commit.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/membership"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

// Deps bundles what the project, task, tag and comment services share.
type Deps struct {
	Runner     *outbox.Runner
	Repos      repository.Repositories
	Members    *membership.Authority
	Authorizer *permissions.Authorizer
}

// taskPreloads are the relations an envelope or response needs.
var taskPreloads = []string{"Creator", "Assignee", "Tags"}

// notFound maps gorm's missing-row error to target and wraps anything else.
func notFound(err error, target error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func (d Deps) loadTask(ctx context.Context, taskID uint64, preload ...string) (*models.Task, error) {
	task, err := d.Repos.Tasks.FindByID(ctx, taskID, preload...)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound, "find task")
	}
	return task, nil
}

func (d Deps) loadProject(ctx context.Context, projectID uint64) (*models.Project, error) {
	project, err := d.Members.Project(ctx, projectID)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound, "find project")
	}
	return project, nil
}

// authorizeTask checks op on a task the caller must be able to see. A
// caller outside the project gets NotFound rather than a hint it exists.
func (d Deps) authorizeTask(ctx context.Context, op permissions.Operation, actorID uint64, task *models.Task) error {
	member, err := d.Members.IsMember(ctx, task.ProjectID, actorID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrTaskNotFound
	}
	return d.Authorizer.Check(ctx, op, permissions.Subject{UserID: actorID, ProjectID: task.ProjectID, Task: task})
}

// authorizeProject checks op in a project and returns the project.
func (d Deps) authorizeProject(ctx context.Context, op permissions.Operation, actorID, projectID uint64) (*models.Project, error) {
	project, err := d.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	member, err := d.Members.IsMember(ctx, projectID, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, ErrProjectNotFound
	}
	if err := d.Authorizer.Check(ctx, op, permissions.Subject{UserID: actorID, ProjectID: projectID}); err != nil {
		return nil, err
	}
	return project, nil
}

func scheduleTaskBroadcast(box *outbox.Box, eventType string, taskID, actorID uint64) {
	if actorID == 0 {
		return
	}
	box.Enqueue(jobs.TypeBroadcastTask, jobs.TaskBroadcast{EventType: eventType, TaskID: taskID, UserID: actorID})
}

func scheduleCommentBroadcast(box *outbox.Box, eventType string, commentID, actorID uint64) {
	box.Enqueue(jobs.TypeBroadcastComment, jobs.CommentBroadcast{EventType: eventType, CommentID: commentID, UserID: actorID})
}

// invalidateMembers drops cached membership answers once the transaction commits.
func (d Deps) invalidateMembers(box *outbox.Box, projectID uint64, userIDs ...uint64) {
	box.AfterCommit(func(ctx context.Context) {
		d.Members.Invalidate(ctx, projectID, userIDs...)
	})
}

func (d Deps) invalidateProject(box *outbox.Box, projectID uint64) {
	box.AfterCommit(func(ctx context.Context) {
		d.Members.InvalidateProject(ctx, projectID)
	})
}
