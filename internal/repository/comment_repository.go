package repository

import (
	"context"

	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCommentRepository is a GORM implementation of CommentRepository
type GormCommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &GormCommentRepository{db: db}
}

func (r *GormCommentRepository) WithTx(tx *gorm.DB) CommentRepository {
	return &GormCommentRepository{db: tx}
}

func (r *GormCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *GormCommentRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Comment, error) {
	var comment models.Comment
	query := r.db.WithContext(ctx)
	for _, p := range preload {
		query = query.Preload(p)
	}
	if err := query.First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *GormCommentRepository) ListByTask(ctx context.Context, taskID uint64, page utils.PaginationParams) ([]models.Comment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Comment{}).Where("task_id = ?", taskID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	if err := query.Scopes(database.Paginate(page)).
		Order("created_at ASC").Order("id ASC").
		Preload("Author").
		Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *GormCommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(comment).Error
}

func (r *GormCommentRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}
