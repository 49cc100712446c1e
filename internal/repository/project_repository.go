package repository

import (
	"context"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

func (r *GormProjectRepository) WithTx(tx *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: tx}
}

// Create creates a new project
func (r *GormProjectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(project).Error
}

// FindByID finds a project by ID
func (r *GormProjectRepository) FindByID(ctx context.Context, id uint64) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// LockForUpdate reads the project row under a row lock
func (r *GormProjectRepository) LockForUpdate(ctx context.Context, id uint64) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListForUser lists the projects userID belongs to
func (r *GormProjectRepository) ListForUser(ctx context.Context, userID uint64, page utils.PaginationParams) ([]models.Project, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{}).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	if err := query.Select("projects.*").
		Scopes(database.Paginate(page)).
		Order("projects.created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(project).Error
}

// Delete deletes a project and all related data in a transaction
func (r *GormProjectRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", id)

		// Delete comments and tag links of every task in the project
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM task_tags WHERE task_id IN (?)", taskIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Tag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Project{}, id).Error
	})
}

// AddMember adds a member to a project
func (r *GormProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(member).Error
}

// FindMember finds a specific project member
func (r *GormProjectRepository) FindMember(ctx context.Context, projectID, userID uint64) (*models.ProjectMember, error) {
	var member models.ProjectMember
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateMemberRole changes a member's role
func (r *GormProjectRepository) UpdateMemberRole(ctx context.Context, projectID, userID uint64, role models.ProjectRole) error {
	return r.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Update("role", role).Error
}

// RemoveMember removes a member from a project
func (r *GormProjectRepository) RemoveMember(ctx context.Context, projectID, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error
}

// ListMembers lists all members of a project
func (r *GormProjectRepository) ListMembers(ctx context.Context, projectID uint64) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Preload("User").
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListMemberIDs lists the user IDs of all members of a project
func (r *GormProjectRepository) ListMemberIDs(ctx context.Context, projectID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
