package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/events"
	"github.com/yukikurage/taskflow-api/internal/jobs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/outbox"
	"github.com/yukikurage/taskflow-api/internal/permissions"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
)

// TaskService handles task business logic
type TaskService struct {
	Deps
}

// NewTaskService creates a new TaskService
func NewTaskService(deps Deps) *TaskService {
	return &TaskService{Deps: deps}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	ProjectID  uint64
	ActorID    uint64
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssigneeID *uint64
	Page       utils.PaginationParams
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	ProjectID   uint64
	ActorID     uint64
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	Deadline    *time.Time
	AssigneeID  *uint64
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	TaskID        uint64
	ActorID       uint64
	Title         *string
	Description   *string
	Priority      *models.TaskPriority
	Deadline      *time.Time
	ClearDeadline bool
}

// ListTasks returns a project's tasks in position order
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	if _, err := s.authorizeProject(ctx, permissions.ViewTask, input.ActorID, input.ProjectID); err != nil {
		return nil, 0, err
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, 0, ErrInvalidPriority
	}

	tasks, total, err := s.Repos.Tasks.List(ctx, repository.TaskFilter{
		ProjectID:  input.ProjectID,
		Status:     input.Status,
		Priority:   input.Priority,
		AssigneeID: input.AssigneeID,
		Page:       input.Page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetTask returns a task with related data
func (s *TaskService) GetTask(ctx context.Context, actorID, taskID uint64) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID, taskPreloads...)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTask(ctx, permissions.ViewTask, actorID, task); err != nil {
		return nil, err
	}
	return task, nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if len(title) > constants.MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

// CreateTask appends a new task to the end of the project
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	project, err := s.authorizeProject(ctx, permissions.CreateTask, input.ActorID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if input.Status == "" {
		input.Status = models.TaskStatusPending
	}
	if !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if input.AssigneeID != nil {
		if err := s.ensureAssignable(ctx, project.ID, *input.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := &models.Task{
		ProjectID:   project.ID,
		CreatorID:   input.ActorID,
		AssigneeID:  input.AssigneeID,
		Title:       title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		Deadline:    input.Deadline,
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		if _, err := repos.Projects.LockForUpdate(ctx, project.ID); err != nil {
			return notFound(err, ErrProjectNotFound, "lock project")
		}
		position, err := nextPosition(ctx, repos, project.ID)
		if err != nil {
			return err
		}
		task.Position = position

		if err := repos.Tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		if task.AssigneeID != nil && *task.AssigneeID != input.ActorID {
			box.Enqueue(jobs.TypeNotifyTaskAssigned, jobs.TaskAssignment{
				TaskID:      task.ID,
				UserID:      *task.AssigneeID,
				ProjectName: project.Name,
			})
		}
		scheduleTaskBroadcast(box, events.TaskCreated, task.ID, input.ActorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTask(ctx, task.ID, taskPreloads...)
}

// UpdateTask updates a task's plain fields
func (s *TaskService) UpdateTask(ctx context.Context, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.loadTask(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTask(ctx, permissions.EditTask, input.ActorID, task); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		fields["priority"] = *input.Priority
	}
	if input.ClearDeadline {
		fields["deadline"] = nil
	} else if input.Deadline != nil {
		fields["deadline"] = *input.Deadline
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		if _, err := repos.Tasks.FindByIDForUpdate(ctx, task.ID); err != nil {
			return notFound(err, ErrTaskNotFound, "lock task")
		}
		if err := repos.Tasks.UpdateFields(ctx, task.ID, fields); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		scheduleTaskBroadcast(box, events.TaskUpdated, task.ID, input.ActorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTask(ctx, task.ID, taskPreloads...)
}

// DeleteTask removes a task and broadcasts a deletion stub
func (s *TaskService) DeleteTask(ctx context.Context, actorID, taskID uint64) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if actorID != 0 {
		if err := s.authorizeTask(ctx, permissions.DeleteTask, actorID, task); err != nil {
			return err
		}
	}

	return s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		if err := s.Repos.Tasks.WithTx(tx).Delete(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		if actorID != 0 {
			box.Enqueue(jobs.TypeBroadcastTaskDeleted, jobs.TaskDeletedBroadcast{
				TaskID:    task.ID,
				ProjectID: task.ProjectID,
				UserID:    actorID,
			})
		}
		return nil
	})
}

// ChangeStatus sets the task's status. Setting the current status is a
// no-op that schedules nothing.
func (s *TaskService) ChangeStatus(ctx context.Context, actorID, taskID uint64, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorID != 0 {
		if err := s.authorizeTask(ctx, permissions.ChangeStatus, actorID, task); err != nil {
			return nil, err
		}
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		locked, err := repos.Tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, "lock task")
		}
		old := locked.Status
		if old == status {
			return nil
		}

		if err := repos.Tasks.UpdateFields(ctx, taskID, map[string]any{"status": status}); err != nil {
			return fmt.Errorf("failed to change status: %w", err)
		}

		if locked.AssigneeID != nil {
			box.Enqueue(jobs.TypeNotifyStatusChanged, jobs.StatusChange{
				TaskID:    taskID,
				UserID:    *locked.AssigneeID,
				OldStatus: old,
				NewStatus: status,
			})
		}
		scheduleTaskBroadcast(box, events.TaskStatusChanged, taskID, actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTask(ctx, taskID, taskPreloads...)
}

// AssignTask sets or clears the assignee. The assignee must be a project
// member. Assigning the current assignee is a no-op.
func (s *TaskService) AssignTask(ctx context.Context, actorID, taskID uint64, assigneeID *uint64) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorID != 0 {
		if err := s.authorizeTask(ctx, permissions.AssignTask, actorID, task); err != nil {
			return nil, err
		}
	}
	if assigneeID != nil {
		if err := s.ensureAssignable(ctx, task.ProjectID, *assigneeID); err != nil {
			return nil, err
		}
	}
	project, err := s.loadProject(ctx, task.ProjectID)
	if err != nil {
		return nil, err
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		locked, err := repos.Tasks.FindByIDForUpdate(ctx, taskID)
		if err != nil {
			return notFound(err, ErrTaskNotFound, "lock task")
		}
		return assign(ctx, repos, box, locked, assigneeID, project.Name, actorID)
	})
	if err != nil {
		return nil, err
	}

	return s.loadTask(ctx, taskID, taskPreloads...)
}

// assign applies an assignee change to a locked task and schedules its
// notifications. It trusts that assigneeID is a project member.
func assign(ctx context.Context, repos repository.Repositories, box *outbox.Box, task *models.Task, assigneeID *uint64, projectName string, actorID uint64) error {
	if sameAssignee(task.AssigneeID, assigneeID) {
		return nil
	}
	previous := task.AssigneeID

	if err := repos.Tasks.UpdateFields(ctx, task.ID, map[string]any{"assignee_id": assigneeID}); err != nil {
		return fmt.Errorf("failed to assign task: %w", err)
	}
	task.AssigneeID = assigneeID

	if previous != nil {
		box.Enqueue(jobs.TypeNotifyTaskUnassigned, jobs.TaskAssignment{TaskID: task.ID, UserID: *previous, ProjectName: projectName})
	}
	if assigneeID != nil {
		box.Enqueue(jobs.TypeNotifyTaskAssigned, jobs.TaskAssignment{TaskID: task.ID, UserID: *assigneeID, ProjectName: projectName})
	}
	scheduleTaskBroadcast(box, events.TaskAssigned, task.ID, actorID)
	return nil
}

func sameAssignee(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ReorderTask moves a task to position, clamped to the end of the project.
// Moving a task to where it already is writes nothing and schedules nothing.
func (s *TaskService) ReorderTask(ctx context.Context, actorID, taskID uint64, position int) (*models.Task, error) {
	if position < 0 {
		return nil, ErrInvalidPosition
	}
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorID != 0 {
		if err := s.authorizeTask(ctx, permissions.ReorderTask, actorID, task); err != nil {
			return nil, err
		}
	}

	err = s.Runner.Run(ctx, func(tx *gorm.DB, box *outbox.Box) error {
		repos := s.Repos.WithTx(tx)

		locked, err := lockTask(ctx, repos, taskID)
		if err != nil {
			return err
		}

		target := uint(position)
		max, err := repos.Tasks.MaxPosition(ctx, locked.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to read max position: %w", err)
		}
		if target > max {
			target = max
		}

		moved, err := reorder(ctx, repos, locked, target)
		if err != nil || !moved {
			return err
		}
		scheduleTaskBroadcast(box, events.TaskReordered, taskID, actorID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTask(ctx, taskID, taskPreloads...)
}

func (s *TaskService) ensureAssignable(ctx context.Context, projectID, userID uint64) error {
	member, err := s.Members.IsMember(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to check assignee membership: %w", err)
	}
	if !member {
		return ErrAssigneeNotMember
	}
	return nil
}
