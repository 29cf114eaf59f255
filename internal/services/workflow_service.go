package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/events"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/metrics"
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/repository"
	"go.uber.org/zap"
)

// documentTransitions 文档状态转换规则。failed只能从processing进入且为终态，
// 不提供自动重试，恢复手段是重新上传。
var documentTransitions = map[string][]string{
	models.DocumentStatusPending:    {models.DocumentStatusProcessing},
	models.DocumentStatusProcessing: {models.DocumentStatusReview, models.DocumentStatusFailed},
	models.DocumentStatusReview:     {models.DocumentStatusSubmitted},
	models.DocumentStatusSubmitted:  {models.DocumentStatusCompleted},
}

// WorkflowService 文档级状态机。pending → processing → review → submitted → completed，
// 每次转换都有守卫与副作用，并写入日志、指标与审计事件。
type WorkflowService struct {
	docs     repository.DocumentRepository
	chunks   repository.ChunkRepository
	queue    repository.QueueRepository
	producer *events.Producer
}

// NewWorkflowService 创建文档工作流服务
func NewWorkflowService(
	docs repository.DocumentRepository,
	chunks repository.ChunkRepository,
	queue repository.QueueRepository,
	producer *events.Producer,
) *WorkflowService {
	return &WorkflowService{
		docs:     docs,
		chunks:   chunks,
		queue:    queue,
		producer: producer,
	}
}

// CanTransition 检查是否允许从from转换到to
func (s *WorkflowService) CanTransition(from, to string) bool {
	for _, allowed := range documentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition 执行状态写入并记录日志、指标与审计事件。调用方负责守卫与副作用。
func (s *WorkflowService) transition(ctx context.Context, doc *models.Document, to string, actorID uint, extra map[string]interface{}) error {
	from := doc.ProcessingStatus
	if !s.CanTransition(from, to) {
		return errors.NewWorkflowError(fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	updates := map[string]interface{}{"processing_status": to}
	for k, v := range extra {
		updates[k] = v
	}

	if err := s.docs.UpdateFields(ctx, doc.DocumentID, updates); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to update document status").WithCause(err)
	}

	logger.Info("document status transitioned",
		zap.Uint("documentID", doc.DocumentID),
		zap.String("from", from),
		zap.String("to", to))
	metrics.DocumentTransitions.WithLabelValues(from, to).Inc()
	s.producer.PublishTransition(events.WorkflowEvent{
		EntityType: "document",
		EntityID:   doc.DocumentID,
		DocType:    doc.DocType,
		From:       from,
		To:         to,
		ActorID:    actorID,
	})

	doc.ProcessingStatus = to
	return nil
}

// StartProcessing pending → processing。记录请求的内容过滤器与开始时间。
func (s *WorkflowService) StartProcessing(ctx context.Context, docID uint, filters []string) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}

	var filtersJSON string
	if len(filters) > 0 {
		data, err := json.Marshal(filters)
		if err == nil {
			filtersJSON = string(data)
		}
	}

	now := time.Now()
	return s.transition(ctx, doc, models.DocumentStatusProcessing, 0, map[string]interface{}{
		"requested_filters":     filtersJSON,
		"processing_started_at": &now,
	})
}

// CompleteProcessing processing → review。仅在分块批次插入成功后调用，
// total_chunks取非过滤分块数，过滤数量一并记录以供审计。
func (s *WorkflowService) CompleteProcessing(ctx context.Context, docID uint, keptChunks, filteredChunks int) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}

	logger.Info("document chunking completed",
		zap.Uint("documentID", docID),
		zap.Int("kept", keptChunks),
		zap.Int("filtered", filteredChunks))

	return s.transition(ctx, doc, models.DocumentStatusReview, 0, map[string]interface{}{
		"total_chunks":    keptChunks,
		"filtered_chunks": filteredChunks,
		"error_message":   "",
	})
}

// FailProcessing processing → failed。记录失败原因，failed为终态。
func (s *WorkflowService) FailProcessing(ctx context.Context, docID uint, reason string) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}

	logger.Warn("document processing failed",
		zap.Uint("documentID", docID),
		zap.String("reason", reason))

	return s.transition(ctx, doc, models.DocumentStatusFailed, 0, map[string]interface{}{
		"error_message": reason,
	})
}

// blockingStatuses 阻塞提交的分块状态
var blockingStatuses = []string{
	models.ChunkStatusPending,
	models.ChunkStatusDraft,
	models.ChunkStatusEnriching,
}

// Submit review → submitted。由引擎而非调用方强制前置条件：
// 文档的每个分块都必须处于终态{approved, rejected, filtered}，
// 仍有pending/draft/enriching分块时拒绝并返回阻塞数量。
func (s *WorkflowService) Submit(ctx context.Context, sess *auth.Session, docID uint) error {
	if !sess.IsRole(models.RoleCurator) {
		return errors.NewAccessDeniedError()
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}
	if !sess.CanAccessKB(doc.DocType) {
		return errors.NewAccessDeniedError()
	}

	blocking, err := s.chunks.CountByStatuses(ctx, docID, blockingStatuses)
	if err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to count blocking chunks").WithCause(err)
	}
	if blocking > 0 {
		return errors.NewWorkflowError(
			fmt.Sprintf("%d chunks are still pending, draft or enriching", blocking)).
			WithDetails(map[string]interface{}{"blocking_chunks": blocking})
	}

	return s.transition(ctx, doc, models.DocumentStatusSubmitted, sess.UserID, nil)
}

// Complete submitted → completed。仅限admin。副作用：按(doc_type, source_url)
// 软关联将匹配的策展队列条目标记为completed，无匹配是正常情况。
func (s *WorkflowService) Complete(ctx context.Context, sess *auth.Session, docID uint) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}

	if err := s.transition(ctx, doc, models.DocumentStatusCompleted, sess.UserID, nil); err != nil {
		return err
	}

	s.reconcileQueue(ctx, doc)
	return nil
}

// reconcileQueue 文档完成后的显式对账步骤。软关联，对账失败只记录不回滚。
func (s *WorkflowService) reconcileQueue(ctx context.Context, doc *models.Document) {
	if doc.SourceURL == nil || *doc.SourceURL == "" {
		return
	}

	affected, err := s.queue.CompleteMatching(ctx, doc.DocType, *doc.SourceURL)
	if err != nil {
		logger.Error("curation queue reconciliation failed",
			zap.Uint("documentID", doc.DocumentID),
			zap.Error(err))
		return
	}
	if affected > 0 {
		logger.Info("curation queue items completed",
			zap.Uint("documentID", doc.DocumentID),
			zap.Int64("items", affected))
	}
}
