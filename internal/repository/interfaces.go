package repository

import (
	"context"
	"time"

	"github.com/aihub/curation-go/internal/models"
)

// DocumentRepository 文档仓库接口
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, docID uint) (*models.Document, error)
	ExistsBySource(ctx context.Context, docType, sourceURL string) (bool, error)
	ListByDocTypes(ctx context.Context, docTypes []string, page, limit int) ([]models.Document, int64, error)
	UpdateFields(ctx context.Context, docID uint, updates map[string]interface{}) error
	// IncrementCounter 服务端原子自增计数列，避免读-改-写丢失更新
	IncrementCounter(ctx context.Context, docID uint, column string) error
	Delete(ctx context.Context, docID uint) error
}

// ChunkRepository 分块仓库接口
type ChunkRepository interface {
	// ReplaceBatch 在单个事务内删除文档现有分块并插入新批次，保证全有或全无
	ReplaceBatch(ctx context.Context, docID uint, chunks []models.DocumentChunk) error
	GetByID(ctx context.Context, chunkID uint) (*models.DocumentChunk, error)
	ListByDocument(ctx context.Context, docID uint) ([]models.DocumentChunk, error)
	// ListReviewQueue 返回文档内待审分块，按置信分升序（最不确定的排最前）
	ListReviewQueue(ctx context.Context, docID uint) ([]models.DocumentChunk, error)
	CountByStatuses(ctx context.Context, docID uint, statuses []string) (int64, error)
	UpdateFields(ctx context.Context, chunkID uint, updates map[string]interface{}) error
	// CompareAndSetStatus 仅当当前状态等于from时更新状态及附加字段，返回是否生效。
	// 用作enriching的单飞锁。
	CompareAndSetStatus(ctx context.Context, chunkID uint, from, to string, extra map[string]interface{}) (bool, error)
	// ReclaimStuckEnriching 将滞留在enriching超过期限的分块批量回退为pending
	ReclaimStuckEnriching(ctx context.Context, olderThan time.Time) (int64, error)
}

// VectorRecordRepository 向量记录仓库接口
type VectorRecordRepository interface {
	Create(ctx context.Context, record *models.VectorRecord) error
	ExistsByChunk(ctx context.Context, chunkID uint) (bool, error)
	UpdateEmbeddingStatus(ctx context.Context, recordID uint, status string) error
	ListByDocument(ctx context.Context, docID uint) ([]models.VectorRecord, error)
}

// QueueRepository 策展队列仓库接口
type QueueRepository interface {
	Create(ctx context.Context, item *models.CurationQueueItem) error
	GetByID(ctx context.Context, itemID uint) (*models.CurationQueueItem, error)
	ExistsBySource(ctx context.Context, kbID, url string) (bool, error)
	ListByKBs(ctx context.Context, kbIDs []string, status string, page, limit int) ([]models.CurationQueueItem, int64, error)
	UpdateFields(ctx context.Context, itemID uint, updates map[string]interface{}) error
	// CompleteMatching 将匹配(kb_id, url)且未完成的条目标记为completed，返回影响行数
	CompleteMatching(ctx context.Context, kbID, url string) (int64, error)
}

// KnowledgeBaseRepository 知识库注册表仓库接口
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, kb *models.KnowledgeBase) error
	GetByID(ctx context.Context, kbID string) (*models.KnowledgeBase, error)
	List(ctx context.Context, includeInactive bool) ([]models.KnowledgeBase, error)
	Update(ctx context.Context, kbID string, updates map[string]interface{}) error
	Delete(ctx context.Context, kbID string) error
}

// UserRepository 用户仓库接口
type UserRepository interface {
	Create(ctx context.Context, user *models.UserProfile) error
	GetByID(ctx context.Context, userID uint) (*models.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	List(ctx context.Context, page, limit int) ([]models.UserProfile, int64, error)
	UpdateFields(ctx context.Context, userID uint, updates map[string]interface{}) error
}
