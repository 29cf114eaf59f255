package repository

import (
	"context"

	"github.com/aihub/curation-go/internal/models"
	"gorm.io/gorm"
)

// vectorRecordRepository 向量记录仓库实现
type vectorRecordRepository struct {
	db *gorm.DB
}

// NewVectorRecordRepository 创建向量记录仓库
func NewVectorRecordRepository(db *gorm.DB) VectorRecordRepository {
	return &vectorRecordRepository{db: db}
}

func (r *vectorRecordRepository) Create(ctx context.Context, record *models.VectorRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *vectorRecordRepository) ExistsByChunk(ctx context.Context, chunkID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VectorRecord{}).
		Where("chunk_id = ?", chunkID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *vectorRecordRepository) UpdateEmbeddingStatus(ctx context.Context, recordID uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.VectorRecord{}).
		Where("record_id = ?", recordID).
		Update("embedding_status", status).Error
}

func (r *vectorRecordRepository) ListByDocument(ctx context.Context, docID uint) ([]models.VectorRecord, error) {
	var records []models.VectorRecord
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("record_id ASC").
		Find(&records).Error
	return records, err
}
