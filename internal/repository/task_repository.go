package repository

import (
	"context"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) WithTx(tx *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: tx}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByIDForUpdate reads the task row under a row lock
func (r *GormTaskRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&task, id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.WithContext(ctx).Model(&models.Task{}).Where("tasks.project_id = ?", filter.ProjectID)

	// Apply filters
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("tasks.position ASC").Order("tasks.id ASC")
	if filter.Page.Limit > 0 {
		listQuery = listQuery.Scopes(database.Paginate(filter.Page))
	}

	if err := listQuery.Preload("Creator").Preload("Assignee").Preload("Tags").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// UpdateFields writes the given columns of a task and nothing else
func (r *GormTaskRepository) UpdateFields(ctx context.Context, id uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Task{ID: id}).Updates(fields).Error
}

// SetPosition writes the task's position
func (r *GormTaskRepository) SetPosition(ctx context.Context, id uint64, position uint) error {
	return r.UpdateFields(ctx, id, map[string]any{"position": position})
}

// Delete deletes a task with its comments and tag links
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM task_tags WHERE task_id = ?", id).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Task{}, id).Error
	})
}

// MaxPosition returns the highest task position in a project
func (r *GormTaskRepository) MaxPosition(ctx context.Context, projectID uint64) (uint, error) {
	var max uint
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max).Error
	return max, err
}

// ShiftPositions moves a closed range of positions by delta in one statement
func (r *GormTaskRepository) ShiftPositions(ctx context.Context, projectID uint64, from, to uint, delta int, excludeID uint64) error {
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("project_id = ? AND position >= ? AND position <= ? AND id <> ?", projectID, from, to, excludeID).
		UpdateColumn("position", gorm.Expr("position + ?", delta)).Error
}

// ReplaceTags sets the task's tags, clearing them when tags is empty
func (r *GormTaskRepository) ReplaceTags(ctx context.Context, task *models.Task, tags []models.Tag) error {
	assoc := r.db.WithContext(ctx).Model(task).Omit("Tags.*").Association("Tags")
	if len(tags) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(tags)
}
