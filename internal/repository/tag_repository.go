package repository

import (
	"context"
	"strings"

	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTagRepository is a GORM implementation of TagRepository
type GormTagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new TagRepository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &GormTagRepository{db: db}
}

func (r *GormTagRepository) WithTx(tx *gorm.DB) TagRepository {
	return &GormTagRepository{db: tx}
}

func (r *GormTagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(tag).Error
}

func (r *GormTagRepository) FindByID(ctx context.Context, id uint64) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *GormTagRepository) FindByIDs(ctx context.Context, ids []uint64) ([]models.Tag, error) {
	var tags []models.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *GormTagRepository) FindByName(ctx context.Context, projectID uint64, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND LOWER(name) = ?", projectID, strings.ToLower(name)).
		First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *GormTagRepository) ListByProject(ctx context.Context, projectID uint64) ([]models.Tag, error) {
	var tags []models.Tag
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *GormTagRepository) Update(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(tag).Error
}

// Delete removes the tag's task links before the tag itself
func (r *GormTagRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM task_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tag{}, id).Error
	})
}
