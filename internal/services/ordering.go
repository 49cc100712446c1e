package services

import (
	"context"
	"fmt"

	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/repository"
)

// lockTask locks the task's project row, then re-reads the task under its
// own row lock. Every reorder and creation in a project takes the project
// lock first, so they run one at a time per project.
func lockTask(ctx context.Context, repos repository.Repositories, taskID uint64) (*models.Task, error) {
	task, err := repos.Tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound, "find task")
	}
	if _, err := repos.Projects.LockForUpdate(ctx, task.ProjectID); err != nil {
		return nil, notFound(err, ErrProjectNotFound, "lock project")
	}
	task, err = repos.Tasks.FindByIDForUpdate(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound, "lock task")
	}
	return task, nil
}

// reorder moves task to newPosition, shifting the tasks in between by one.
// Moving up shifts [newPosition, old) down the list by +1; moving down
// shifts (old, newPosition] by -1. It reports whether anything changed.
func reorder(ctx context.Context, repos repository.Repositories, task *models.Task, newPosition uint) (bool, error) {
	old := task.Position
	if newPosition == old {
		return false, nil
	}

	var err error
	if newPosition < old {
		err = repos.Tasks.ShiftPositions(ctx, task.ProjectID, newPosition, old-1, 1, task.ID)
	} else {
		err = repos.Tasks.ShiftPositions(ctx, task.ProjectID, old+1, newPosition, -1, task.ID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to shift positions: %w", err)
	}

	if err := repos.Tasks.SetPosition(ctx, task.ID, newPosition); err != nil {
		return false, fmt.Errorf("failed to move task: %w", err)
	}
	task.Position = newPosition
	return true, nil
}

// nextPosition returns the position for a new task appended to the project.
// Callers must hold the project lock.
func nextPosition(ctx context.Context, repos repository.Repositories, projectID uint64) (uint, error) {
	max, err := repos.Tasks.MaxPosition(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to read max position: %w", err)
	}
	return max + 1, nil
}
