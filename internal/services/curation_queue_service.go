package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/repository"
	"go.uber.org/zap"
)

// CurationQueueService 策展队列。待摄取的外部来源清单，与文档工作流通过
// (kb_id, url)软关联，完成对账由文档工作流在Complete时触发。
type CurationQueueService struct {
	queue repository.QueueRepository
	kbs   repository.KnowledgeBaseRepository
}

// NewCurationQueueService 创建策展队列服务
func NewCurationQueueService(queue repository.QueueRepository, kbs repository.KnowledgeBaseRepository) *CurationQueueService {
	return &CurationQueueService{queue: queue, kbs: kbs}
}

// AddRequest 入队请求
type AddRequest struct {
	KBID  string
	URL   string
	Title string
	Notes string
}

// Add 将外部来源加入队列。同一(kb_id, url)只允许存在一条，重复入队返回冲突。
func (s *CurationQueueService) Add(ctx context.Context, sess *auth.Session, req AddRequest) (*models.CurationQueueItem, error) {
	if !sess.IsRole(models.RoleCurator) {
		return nil, errors.NewAccessDeniedError()
	}
	if !sess.CanAccessKB(req.KBID) {
		return nil, errors.NewAccessDeniedError()
	}

	if err := ValidateSourceURL(req.URL); err != nil {
		return nil, err
	}
	if req.URL == "" {
		return nil, errors.NewValidationError("url is required")
	}

	kb, err := s.kbs.GetByID(ctx, req.KBID)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown knowledge base: %s", req.KBID))
	}
	if !kb.IsActive {
		return nil, errors.NewValidationError(fmt.Sprintf("knowledge base %s is inactive", req.KBID))
	}

	exists, err := s.queue.ExistsBySource(ctx, req.KBID, req.URL)
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to check duplicate queue item").WithCause(err)
	}
	if exists {
		return nil, errors.NewBusinessError(errors.ErrCodeDuplicateSource,
			fmt.Sprintf("source %s is already queued for %s", req.URL, req.KBID))
	}

	item := &models.CurationQueueItem{
		KBID:   req.KBID,
		URL:    req.URL,
		Title:  req.Title,
		Notes:  req.Notes,
		Status: models.QueueStatusPending,
	}
	if err := s.queue.Create(ctx, item); err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to create queue item").WithCause(err)
	}

	logger.Info("curation queue item added",
		zap.Uint("itemID", item.ItemID),
		zap.String("kbID", item.KBID),
		zap.Uint("userID", sess.UserID))
	return item, nil
}

// List 按会话范围与状态列出队列条目。没有任何分配的curator看到空列表。
func (s *CurationQueueService) List(ctx context.Context, sess *auth.Session, status string, page, limit int) ([]models.CurationQueueItem, int64, error) {
	if !sess.IsRole(models.RoleCurator) {
		return nil, 0, errors.NewAccessDeniedError()
	}
	kbs, all := sess.ScopedKBs()
	if !all && len(kbs) == 0 {
		return []models.CurationQueueItem{}, 0, nil
	}
	return s.queue.ListByKBs(ctx, kbs, status, page, limit)
}

// Assign 领取队列条目：pending → in_progress，记录领取人。
// 已完成的条目不能再领取。
func (s *CurationQueueService) Assign(ctx context.Context, sess *auth.Session, itemID uint) error {
	if !sess.IsRole(models.RoleCurator) {
		return errors.NewAccessDeniedError()
	}

	item, err := s.queue.GetByID(ctx, itemID)
	if err != nil {
		return errors.NewNotFoundError("queue item")
	}
	if !sess.CanAccessKB(item.KBID) {
		return errors.NewAccessDeniedError()
	}
	if item.Status == models.QueueStatusCompleted {
		return errors.NewWorkflowError("queue item is already completed")
	}

	return s.queue.UpdateFields(ctx, itemID, map[string]interface{}{
		"status":      models.QueueStatusInProgress,
		"assigned_to": sess.UserID,
	})
}

// Complete 手工标记条目完成。正常路径由文档工作流对账触发，
// 这里覆盖来源无法摄取等需要人工关闭的情况。
func (s *CurationQueueService) Complete(ctx context.Context, sess *auth.Session, itemID uint) error {
	if !sess.IsRole(models.RoleCurator) {
		return errors.NewAccessDeniedError()
	}

	item, err := s.queue.GetByID(ctx, itemID)
	if err != nil {
		return errors.NewNotFoundError("queue item")
	}
	if !sess.CanAccessKB(item.KBID) {
		return errors.NewAccessDeniedError()
	}
	if item.Status == models.QueueStatusCompleted {
		return nil
	}

	now := time.Now()
	return s.queue.UpdateFields(ctx, itemID, map[string]interface{}{
		"status":       models.QueueStatusCompleted,
		"completed_at": &now,
	})
}
