package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aihub/curation-go/internal/models"
	"gorm.io/gorm"
)

// documentRepository 文档仓库实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepository) GetByID(ctx context.Context, docID uint) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, docID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ExistsBySource(ctx context.Context, docType, sourceURL string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("doc_type = ? AND source_url = ?", docType, sourceURL).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *documentRepository) ListByDocTypes(ctx context.Context, docTypes []string, page, limit int) ([]models.Document, int64, error) {
	var documents []models.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Document{})
	if len(docTypes) > 0 {
		query = query.Where("doc_type IN ?", docTypes)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	offset := (page - 1) * limit
	if err := query.Order("create_time DESC").Offset(offset).Limit(limit).Find(&documents).Error; err != nil {
		return nil, 0, err
	}

	return documents, total, nil
}

func (r *documentRepository) UpdateFields(ctx context.Context, docID uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("document_id = ?", docID).
		Updates(updates).Error
}

func (r *documentRepository) IncrementCounter(ctx context.Context, docID uint, column string) error {
	switch column {
	case "approved_chunks", "rejected_chunks":
	default:
		return errors.New("counter column not allowed: " + column)
	}
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Where("document_id = ?", docID).
		UpdateColumn(column, gorm.Expr(fmt.Sprintf("%s + 1", column))).Error
}

func (r *documentRepository) Delete(ctx context.Context, docID uint) error {
	return r.db.WithContext(ctx).Select("Chunks").Delete(&models.Document{DocumentID: docID}).Error
}
