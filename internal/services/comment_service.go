package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/events"
	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
)

// CommentService manages task comments.
type CommentService struct {
	Deps
}

func NewCommentService(deps Deps) *CommentService {
	return &CommentService{Deps: deps}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrCommentEmpty
	}
	if len(content) > constants.MaxCommentLength {
		return "", ErrCommentTooLong
	}
	return content, nil
}

func (s *CommentService) ListComments(ctx context.Context, actorID, taskID uint64, page utils.PaginationParams) ([]models.Comment, int64, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.authorizeTask(ctx, permissions.ViewTask, actorID, task); err != nil {
		return nil, 0, err
	}
	comments, total, err := s.Repos.Comments.ListByTask(ctx, taskID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}

// CreateComment adds a comment and notifies the task's assignee and
// creator, never the author themselves and never the same person twice.
func (s *CommentService) CreateComment(ctx context.Context, actorID, taskID uint64, content string) (*models.Comment, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTask(ctx, permissions.CreateComment, actorID, task); err != nil {
		return nil, err
	}

	comment := &models.Comment{TaskID: task.ID, AuthorID: actorID, Content: content}
	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		if err := s.Repos.Comments.WithTx(tx).Create(ctx, comment); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}

		if task.AssigneeID != nil && *task.AssigneeID != actorID {
			box.Enqueue(jobs.TypeNotifyCommentToAssignee, jobs.CommentNotice{CommentID: comment.ID, UserID: *task.AssigneeID})
		}
		if task.CreatorID != actorID && !task.IsAssignedTo(task.CreatorID) {
			box.Enqueue(jobs.TypeNotifyCommentToCreator, jobs.CommentNotice{CommentID: comment.ID, UserID: task.CreatorID})
		}
		scheduleCommentBroadcast(box, events.CommentCreated, comment.ID, actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadComment(ctx, comment.ID)
}

// UpdateComment replaces the content and marks the comment edited.
func (s *CommentService) UpdateComment(ctx context.Context, actorID, commentID uint64, content string) (*models.Comment, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	comment, task, err := s.loadWithTask(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeComment(ctx, permissions.EditComment, actorID, task, comment); err != nil {
		return nil, err
	}

	comment.Content = content
	comment.IsEdited = true
	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		if err := s.Repos.Comments.WithTx(tx).Update(ctx, comment); err != nil {
			return fmt.Errorf("failed to update comment: %w", err)
		}
		scheduleCommentBroadcast(box, events.CommentUpdated, comment.ID, actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadComment(ctx, comment.ID)
}

func (s *CommentService) DeleteComment(ctx context.Context, actorID, commentID uint64) error {
	comment, task, err := s.loadWithTask(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.authorizeComment(ctx, permissions.DeleteComment, actorID, task, comment); err != nil {
		return err
	}

	return s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		if err := s.Repos.Comments.WithTx(tx).Delete(ctx, comment.ID); err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}
		box.Enqueue(jobs.TypeBroadcastCommentDeleted, jobs.CommentDeletedBroadcast{
			CommentID: comment.ID,
			TaskID:    task.ID,
			ProjectID: task.ProjectID,
			UserID:    actorID,
		})
		return nil
	})
}

func (s *CommentService) loadComment(ctx context.Context, id uint64) (*models.Comment, error) {
	comment, err := s.Repos.Comments.FindByID(ctx, id, "Author")
	if err != nil {
		return nil, notFound(err, ErrCommentNotFound, "find comment")
	}
	return comment, nil
}

func (s *CommentService) loadWithTask(ctx context.Context, commentID uint64) (*models.Comment, *models.Task, error) {
	comment, err := s.Repos.Comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, nil, notFound(err, ErrCommentNotFound, "find comment")
	}
	task, err := s.loadTask(ctx, comment.TaskID)
	if err != nil {
		return nil, nil, err
	}
	return comment, task, nil
}

func (s *CommentService) authorizeComment(ctx context.Context, op permissions.Operation, actorID uint64, task *models.Task, comment *models.Comment) error {
	member, err := s.Members.IsMember(ctx, task.ProjectID, actorID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return ErrCommentNotFound
	}
	return s.Authorizer.Check(ctx, op, permissions.Subject{UserID: actorID, ProjectID: task.ProjectID, Task: task, Comment: comment})
}
