package repository

import (
	"context"
	"time"

	"github.com/aihub/curation-go/internal/models"
	"gorm.io/gorm"
)

// queueRepository 策展队列仓库实现
type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository 创建策展队列仓库
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Create(ctx context.Context, item *models.CurationQueueItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *queueRepository) GetByID(ctx context.Context, itemID uint) (*models.CurationQueueItem, error) {
	var item models.CurationQueueItem
	if err := r.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *queueRepository) ExistsBySource(ctx context.Context, kbID, url string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CurationQueueItem{}).
		Where("kb_id = ? AND url = ?", kbID, url).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *queueRepository) ListByKBs(ctx context.Context, kbIDs []string, status string, page, limit int) ([]models.CurationQueueItem, int64, error) {
	var items []models.CurationQueueItem
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CurationQueueItem{})
	if len(kbIDs) > 0 {
		query = query.Where("kb_id IN ?", kbIDs)
	}
	if status != "" {
		query = query.Where("status = ?", status)
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
	if err := query.Order("create_time ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *queueRepository) UpdateFields(ctx context.Context, itemID uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.CurationQueueItem{}).
		Where("item_id = ?", itemID).
		Updates(updates).Error
}

func (r *queueRepository) CompleteMatching(ctx context.Context, kbID, url string) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.CurationQueueItem{}).
		Where("kb_id = ? AND url = ? AND status <> ?", kbID, url, models.QueueStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.QueueStatusCompleted,
			"completed_at": &now,
		})
	return result.RowsAffected, result.Error
}
