package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yukikurage/taskflow-api/internal/events"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/realtime"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

// Broadcaster turns broadcast jobs into envelopes for project subscribers.
// It reads the entity as it is when the job runs, so a late job sends
// current state and a job for a deleted entity is dropped.
type Broadcaster struct {
	repos     repository.Repositories
	publisher realtime.Publisher
	log       *slog.Logger
}

func NewBroadcaster(repos repository.Repositories, publisher realtime.Publisher, log *slog.Logger) *Broadcaster {
	return &Broadcaster{repos: repos, publisher: publisher, log: log}
}

func (b *Broadcaster) Task(ctx context.Context, job queue.Job) error {
	var p TaskBroadcast
	if err := job.Decode(&p); err != nil {
		return err
	}

	task, err := b.repos.Tasks.FindByID(ctx, p.TaskID, "Creator", "Assignee", "Tags")
	if err != nil {
		return b.skip(err, "task", p.TaskID, job)
	}
	actor, err := b.repos.Users.FindByID(ctx, p.UserID)
	if err != nil {
		return b.skip(err, "user", p.UserID, job)
	}

	b.publish(ctx, task.ProjectID, p.EventType, *actor, events.NewTaskData(*task))
	return nil
}

func (b *Broadcaster) TaskDeleted(ctx context.Context, job queue.Job) error {
	var p TaskDeletedBroadcast
	if err := job.Decode(&p); err != nil {
		return err
	}

	actor, err := b.repos.Users.FindByID(ctx, p.UserID)
	if err != nil {
		return b.skip(err, "user", p.UserID, job)
	}

	b.publish(ctx, p.ProjectID, events.TaskDeleted, *actor, events.TaskStub{ID: p.TaskID, ProjectID: p.ProjectID})
	return nil
}

func (b *Broadcaster) Comment(ctx context.Context, job queue.Job) error {
	var p CommentBroadcast
	if err := job.Decode(&p); err != nil {
		return err
	}

	comment, err := b.repos.Comments.FindByID(ctx, p.CommentID, "Author", "Task")
	if err != nil {
		return b.skip(err, "comment", p.CommentID, job)
	}
	actor, err := b.repos.Users.FindByID(ctx, p.UserID)
	if err != nil {
		return b.skip(err, "user", p.UserID, job)
	}

	b.publish(ctx, comment.Task.ProjectID, p.EventType, *actor, events.NewCommentData(*comment))
	return nil
}

func (b *Broadcaster) CommentDeleted(ctx context.Context, job queue.Job) error {
	var p CommentDeletedBroadcast
	if err := job.Decode(&p); err != nil {
		return err
	}

	actor, err := b.repos.Users.FindByID(ctx, p.UserID)
	if err != nil {
		return b.skip(err, "user", p.UserID, job)
	}

	b.publish(ctx, p.ProjectID, events.CommentDeleted, *actor, events.CommentStub{ID: p.CommentID, TaskID: p.TaskID})
	return nil
}

func (b *Broadcaster) publish(ctx context.Context, projectID uint64, eventType string, actor models.User, data any) {
	env := events.NewEnvelope(eventType, actor, data)
	if !b.publisher.Publish(ctx, projectID, eventType, env) {
		b.log.Warn("broadcast not delivered", "project_id", projectID, "event_type", eventType)
	}
}

// skip logs and swallows a missing row; other failures are returned.
func (b *Broadcaster) skip(err error, entity string, id uint64, job queue.Job) error {
	return skipMissing(b.log, err, entity, id, job)
}

func skipMissing(log *slog.Logger, err error, entity string, id uint64, job queue.Job) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("skipping job for missing "+entity, "id", id, "job_id", job.ID, "type", job.Type)
		return nil
	}
	return fmt.Errorf("failed to load %s %d: %w", entity, id, err)
}
