package repository

import (
	"context"

	"github.com/aihub/curation-go/internal/models"
	"gorm.io/gorm"
)

// knowledgeBaseRepository 知识库注册表仓库实现
type knowledgeBaseRepository struct {
	db *gorm.DB
}

// NewKnowledgeBaseRepository 创建知识库仓库
func NewKnowledgeBaseRepository(db *gorm.DB) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{db: db}
}

func (r *knowledgeBaseRepository) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	return r.db.WithContext(ctx).Create(kb).Error
}

func (r *knowledgeBaseRepository) GetByID(ctx context.Context, kbID string) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	if err := r.db.WithContext(ctx).Where("kb_id = ?", kbID).First(&kb).Error; err != nil {
		return nil, err
	}
	return &kb, nil
}

func (r *knowledgeBaseRepository) List(ctx context.Context, includeInactive bool) ([]models.KnowledgeBase, error) {
	var kbs []models.KnowledgeBase
	query := r.db.WithContext(ctx).Model(&models.KnowledgeBase{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("kb_id ASC").Find(&kbs).Error
	return kbs, err
}

func (r *knowledgeBaseRepository) Update(ctx context.Context, kbID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeBase{}).
		Where("kb_id = ?", kbID).
		Updates(updates).Error
}

func (r *knowledgeBaseRepository) Delete(ctx context.Context, kbID string) error {
	return r.db.WithContext(ctx).Where("kb_id = ?", kbID).Delete(&models.KnowledgeBase{}).Error
}
