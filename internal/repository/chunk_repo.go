package repository

import (
	"context"
	"time"

	"github.com/aihub/curation-go/internal/models"
	"gorm.io/gorm"
)

// chunkRepository 分块仓库实现
type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建分块仓库
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) ReplaceBatch(ctx context.Context, docID uint, chunks []models.DocumentChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

func (r *chunkRepository) GetByID(ctx context.Context, chunkID uint) (*models.DocumentChunk, error) {
	var chunk models.DocumentChunk
	if err := r.db.WithContext(ctx).First(&chunk, chunkID).Error; err != nil {
		return nil, err
	}
	return &chunk, nil
}

func (r *chunkRepository) ListByDocument(ctx context.Context, docID uint) ([]models.DocumentChunk, error) {
	var chunks []models.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) ListReviewQueue(ctx context.Context, docID uint) ([]models.DocumentChunk, error) {
	var chunks []models.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND review_status = ?", docID, models.ChunkStatusPending).
		Order("confidence_score ASC, chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) CountByStatuses(ctx context.Context, docID uint, statuses []string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DocumentChunk{}).
		Where("document_id = ? AND review_status IN ?", docID, statuses).
		Count(&count).Error
	return count, err
}

func (r *chunkRepository) UpdateFields(ctx context.Context, chunkID uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.DocumentChunk{}).
		Where("chunk_id = ?", chunkID).
		Updates(updates).Error
}

func (r *chunkRepository) CompareAndSetStatus(ctx context.Context, chunkID uint, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"review_status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.DocumentChunk{}).
		Where("chunk_id = ? AND review_status = ?", chunkID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *chunkRepository) ReclaimStuckEnriching(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.DocumentChunk{}).
		Where("review_status = ? AND enrich_started_at < ?", models.ChunkStatusEnriching, olderThan).
		Updates(map[string]interface{}{
			"review_status":     models.ChunkStatusPending,
			"enrich_started_at": nil,
		})
	return result.RowsAffected, result.Error
}
