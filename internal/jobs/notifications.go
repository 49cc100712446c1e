package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/repository"
)

// Notification is one message addressed to a user.
type Notification struct {
	Kind      string
	Recipient models.User
	Subject   string
	Body      string
}

// Deliverer sends a notification over some channel.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer writes notifications to the log.
type LogDeliverer struct {
	Log *slog.Logger
}

func (d LogDeliverer) Deliver(_ context.Context, n Notification) error {
	d.Log.Info("notification",
		"kind", n.Kind,
		"user_id", n.Recipient.ID,
		"email", n.Recipient.Email,
		"subject", n.Subject,
	)
	return nil
}

// Notifier builds notifications from current state. Jobs for users,
// tasks or comments that have since disappeared are skipped.
type Notifier struct {
	repos   repository.Repositories
	deliver Deliverer
	log     *slog.Logger
}

func NewNotifier(repos repository.Repositories, deliver Deliverer, log *slog.Logger) *Notifier {
	return &Notifier{repos: repos, deliver: deliver, log: log}
}

func (n *Notifier) send(ctx context.Context, job queue.Job, recipient models.User, subject, body string) error {
	return n.deliver.Deliver(ctx, Notification{
		Kind:      job.Type,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
}

// recipient loads an active user; ok is false when the job should be skipped.
func (n *Notifier) recipient(ctx context.Context, job queue.Job, userID uint64) (*models.User, bool, error) {
	user, err := n.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, false, skipMissing(n.log, err, "user", userID, job)
	}
	if !user.IsActive {
		n.log.Debug("skipping notification for inactive user", "user_id", userID, "type", job.Type)
		return nil, false, nil
	}
	return user, true, nil
}

func (n *Notifier) TaskAssigned(ctx context.Context, job queue.Job) error {
	return n.taskAssignment(ctx, job, true)
}

func (n *Notifier) TaskUnassigned(ctx context.Context, job queue.Job) error {
	return n.taskAssignment(ctx, job, false)
}

func (n *Notifier) taskAssignment(ctx context.Context, job queue.Job, assigned bool) error {
	var p TaskAssignment
	if err := job.Decode(&p); err != nil {
		return err
	}

	task, err := n.repos.Tasks.FindByID(ctx, p.TaskID)
	if err != nil {
		return skipMissing(n.log, err, "task", p.TaskID, job)
	}
	user, ok, err := n.recipient(ctx, job, p.UserID)
	if !ok {
		return err
	}

	if assigned {
		return n.send(ctx, job, *user,
			fmt.Sprintf("You were assigned to %q", task.Title),
			fmt.Sprintf("You are now the assignee of %q in %s.", task.Title, p.ProjectName))
	}
	return n.send(ctx, job, *user,
		fmt.Sprintf("You were unassigned from %q", task.Title),
		fmt.Sprintf("You are no longer the assignee of %q in %s.", task.Title, p.ProjectName))
}

func (n *Notifier) StatusChanged(ctx context.Context, job queue.Job) error {
	var p StatusChange
	if err := job.Decode(&p); err != nil {
		return err
	}

	task, err := n.repos.Tasks.FindByID(ctx, p.TaskID)
	if err != nil {
		return skipMissing(n.log, err, "task", p.TaskID, job)
	}
	user, ok, err := n.recipient(ctx, job, p.UserID)
	if !ok {
		return err
	}

	return n.send(ctx, job, *user,
		fmt.Sprintf("%q is now %s", task.Title, p.NewStatus),
		fmt.Sprintf("Status of %q changed from %s to %s.", task.Title, p.OldStatus, p.NewStatus))
}

// CommentToAssignee tells the task's assignee about a comment by someone else.
func (n *Notifier) CommentToAssignee(ctx context.Context, job queue.Job) error {
	return n.comment(ctx, job, func(task models.Task, comment models.Comment, userID uint64) bool {
		return task.IsAssignedTo(userID) && comment.AuthorID != userID
	})
}

// CommentToCreator tells the task's creator about a comment, unless they
// wrote it or already hear about it as the assignee.
func (n *Notifier) CommentToCreator(ctx context.Context, job queue.Job) error {
	return n.comment(ctx, job, func(task models.Task, comment models.Comment, userID uint64) bool {
		return task.CreatorID == userID && comment.AuthorID != userID && !task.IsAssignedTo(userID)
	})
}

func (n *Notifier) comment(ctx context.Context, job queue.Job, wanted func(models.Task, models.Comment, uint64) bool) error {
	var p CommentNotice
	if err := job.Decode(&p); err != nil {
		return err
	}

	comment, err := n.repos.Comments.FindByID(ctx, p.CommentID, "Author", "Task")
	if err != nil {
		return skipMissing(n.log, err, "comment", p.CommentID, job)
	}
	if !wanted(comment.Task, *comment, p.UserID) {
		n.log.Debug("notification no longer applies", "comment_id", p.CommentID, "user_id", p.UserID, "type", job.Type)
		return nil
	}
	user, ok, err := n.recipient(ctx, job, p.UserID)
	if !ok {
		return err
	}

	return n.send(ctx, job, *user,
		fmt.Sprintf("New comment on %q", comment.Task.Title),
		fmt.Sprintf("%s wrote: %s", comment.Author.FullName(), comment.Content))
}

func (n *Notifier) Invitation(ctx context.Context, job queue.Job) error {
	var p Invitation
	if err := job.Decode(&p); err != nil {
		return err
	}

	project, err := n.repos.Projects.FindByID(ctx, p.ProjectID)
	if err != nil {
		return skipMissing(n.log, err, "project", p.ProjectID, job)
	}
	inviter, err := n.repos.Users.FindByID(ctx, p.InviterID)
	if err != nil {
		return skipMissing(n.log, err, "user", p.InviterID, job)
	}
	user, ok, err := n.recipient(ctx, job, p.UserID)
	if !ok {
		return err
	}

	return n.send(ctx, job, *user,
		fmt.Sprintf("You were added to %s", project.Name),
		fmt.Sprintf("%s added you to %s as %s.", inviter.FullName(), project.Name, p.Role))
}

func (n *Notifier) RoleChanged(ctx context.Context, job queue.Job) error {
	var p RoleChange
	if err := job.Decode(&p); err != nil {
		return err
	}

	project, err := n.repos.Projects.FindByID(ctx, p.ProjectID)
	if err != nil {
		return skipMissing(n.log, err, "project", p.ProjectID, job)
	}
	user, ok, err := n.recipient(ctx, job, p.UserID)
	if !ok {
		return err
	}

	return n.send(ctx, job, *user,
		fmt.Sprintf("Your role in %s changed", project.Name),
		fmt.Sprintf("Your role in %s changed from %s to %s.", project.Name, p.OldRole, p.NewRole))
}

// Removed does not read the project, which may already be deleted.
func (n *Notifier) Removed(ctx context.Context, job queue.Job) error {
	var p Removal
	if err := job.Decode(&p); err != nil {
		return err
	}

	user, ok, err := n.recipient(ctx, job, p.UserID)
	if !ok {
		return err
	}

	return n.send(ctx, job, *user,
		fmt.Sprintf("You were removed from %s", p.ProjectName),
		fmt.Sprintf("You no longer have access to %s.", p.ProjectName))
}
