package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReviewQueueCache 审核队列的Redis缓存。client为nil时所有操作退化为未命中，
// 缓存在任何分块状态转换后失效。
type ReviewQueueCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReviewQueueCache 创建审核队列缓存
func NewReviewQueueCache(client *redis.Client, ttl time.Duration) *ReviewQueueCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ReviewQueueCache{client: client, ttl: ttl}
}

func (c *ReviewQueueCache) key(docID uint) string {
	return fmt.Sprintf("review_queue:%d", docID)
}

// Get 读取缓存的队列，未命中返回nil
func (c *ReviewQueueCache) Get(ctx context.Context, docID uint) []models.DocumentChunk {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := c.client.Get(ctx, c.key(docID)).Bytes()
	if err != nil {
		return nil
	}

	var chunks []models.DocumentChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil
	}
	return chunks
}

// Set 写入缓存，失败只记录
func (c *ReviewQueueCache) Set(ctx context.Context, docID uint, chunks []models.DocumentChunk) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(docID), data, c.ttl).Err(); err != nil {
		logger.Debug("review queue cache set failed", zap.Uint("documentID", docID), zap.Error(err))
	}
}

// Invalidate 删除文档的缓存队列
func (c *ReviewQueueCache) Invalidate(ctx context.Context, docID uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.key(docID)).Err(); err != nil {
		logger.Debug("review queue cache invalidation failed", zap.Uint("documentID", docID), zap.Error(err))
	}
}
