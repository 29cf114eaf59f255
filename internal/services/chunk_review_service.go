package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/events"
	"github.com/aihub/curation-go/internal/gateway"
	"github.com/aihub/curation-go/internal/knowledge"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/metrics"
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/repository"
	"go.uber.org/zap"
)

// ChunkReviewService 分块级审核工作流：富化、草稿、批准、驳回。
// 批准/驳回计数通过服务端原子自增写入文档，避免并发审核下的丢失更新。
type ChunkReviewService struct {
	docs        repository.DocumentRepository
	chunks      repository.ChunkRepository
	records     repository.VectorRecordRepository
	gw          *gateway.Gateway
	embedder    knowledge.Embedder
	vectorStore knowledge.VectorStore
	producer    *events.Producer
	cache       *ReviewQueueCache

	enrichDelay       time.Duration
	enrichTimeout     time.Duration
	defaultConfidence float64
}

// ChunkReviewOptions 审核服务配置
type ChunkReviewOptions struct {
	EnrichDelay       time.Duration
	EnrichTimeout     time.Duration
	DefaultConfidence float64
}

// NewChunkReviewService 创建分块审核服务
func NewChunkReviewService(
	docs repository.DocumentRepository,
	chunks repository.ChunkRepository,
	records repository.VectorRecordRepository,
	gw *gateway.Gateway,
	embedder knowledge.Embedder,
	vectorStore knowledge.VectorStore,
	producer *events.Producer,
	cache *ReviewQueueCache,
	opts ChunkReviewOptions,
) *ChunkReviewService {
	if opts.EnrichDelay <= 0 {
		opts.EnrichDelay = 500 * time.Millisecond
	}
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = 10 * time.Minute
	}
	if opts.DefaultConfidence <= 0 {
		opts.DefaultConfidence = 0.5
	}
	return &ChunkReviewService{
		docs:              docs,
		chunks:            chunks,
		records:           records,
		gw:                gw,
		embedder:          embedder,
		vectorStore:       vectorStore,
		producer:          producer,
		cache:             cache,
		enrichDelay:       opts.EnrichDelay,
		enrichTimeout:     opts.EnrichTimeout,
		defaultConfidence: opts.DefaultConfidence,
	}
}

// loadChunkForCurator 读取分块并校验curator对所属知识库的访问权
func (s *ChunkReviewService) loadChunkForCurator(ctx context.Context, sess *auth.Session, chunkID uint) (*models.DocumentChunk, *models.Document, error) {
	if !sess.IsRole(models.RoleCurator) {
		return nil, nil, errors.NewAccessDeniedError()
	}

	chunk, err := s.chunks.GetByID(ctx, chunkID)
	if err != nil {
		return nil, nil, errors.NewNotFoundError("chunk")
	}

	doc, err := s.docs.GetByID(ctx, chunk.DocumentID)
	if err != nil {
		return nil, nil, errors.NewNotFoundError("document")
	}
	if !sess.CanAccessKB(doc.DocType) {
		return nil, nil, errors.NewAccessDeniedError()
	}

	return chunk, doc, nil
}

// publishChunkTransition 记录分块状态转换
func (s *ChunkReviewService) publishChunkTransition(chunk *models.DocumentChunk, doc *models.Document, from, to string, actorID uint) {
	logger.Info("chunk status transitioned",
		zap.Uint("chunkID", chunk.ChunkID),
		zap.Uint("documentID", chunk.DocumentID),
		zap.String("from", from),
		zap.String("to", to))
	metrics.ChunkTransitions.WithLabelValues(from, to).Inc()
	s.producer.PublishTransition(events.WorkflowEvent{
		EntityType: "chunk",
		EntityID:   chunk.ChunkID,
		DocType:    doc.DocType,
		From:       from,
		To:         to,
		ActorID:    actorID,
	})
}

// EnrichChunk 富化单个分块：pending → enriching → pending。
// enriching通过比较交换充当单飞锁，同一分块同时只允许一次富化调用。
// 成功时元数据做字段级合并而非整体替换；失败时回退为pending且元数据不变，
// 富化失败不致命，不阻塞文档工作流。
func (s *ChunkReviewService) EnrichChunk(ctx context.Context, sess *auth.Session, chunkID uint) (*models.DocumentChunk, error) {
	chunk, doc, err := s.loadChunkForCurator(ctx, sess, chunkID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	locked, err := s.chunks.CompareAndSetStatus(ctx, chunkID, models.ChunkStatusPending, models.ChunkStatusEnriching,
		map[string]interface{}{"enrich_started_at": &now})
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to lock chunk for enrichment").WithCause(err)
	}
	if !locked {
		return nil, errors.NewBusinessError(errors.ErrCodeChunkNotReviewable,
			fmt.Sprintf("chunk %d is not pending (status=%s)", chunkID, chunk.ReviewStatus))
	}
	s.publishChunkTransition(chunk, doc, models.ChunkStatusPending, models.ChunkStatusEnriching, sess.UserID)

	incoming, ok := s.gw.Enrich(ctx, chunk.ChunkText, doc.DocType)
	if !ok {
		// 提供方失败：回退为pending，元数据保持原样
		metrics.GatewayFailures.WithLabelValues("enrich").Inc()
		if _, revertErr := s.chunks.CompareAndSetStatus(ctx, chunkID, models.ChunkStatusEnriching, models.ChunkStatusPending,
			map[string]interface{}{"enrich_started_at": nil}); revertErr != nil {
			logger.Error("failed to revert chunk after enrichment failure",
				zap.Uint("chunkID", chunkID), zap.Error(revertErr))
		}
		s.publishChunkTransition(chunk, doc, models.ChunkStatusEnriching, models.ChunkStatusPending, sess.UserID)
		s.cache.Invalidate(ctx, chunk.DocumentID)
		return s.chunks.GetByID(ctx, chunkID)
	}

	merged := chunk.Metadata().Merge(incoming)
	confidence := merged.DeriveConfidence(s.defaultConfidence)
	updatedAt := time.Now()

	if _, err := s.chunks.CompareAndSetStatus(ctx, chunkID, models.ChunkStatusEnriching, models.ChunkStatusPending,
		map[string]interface{}{
			"ai_metadata":         merged.ToJSON(),
			"confidence_score":    confidence,
			"metadata_updated_at": &updatedAt,
			"enrich_started_at":   nil,
		}); err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to store enrichment result").WithCause(err)
	}
	s.publishChunkTransition(chunk, doc, models.ChunkStatusEnriching, models.ChunkStatusPending, sess.UserID)
	s.cache.Invalidate(ctx, chunk.DocumentID)

	return s.chunks.GetByID(ctx, chunkID)
}

// EnrichDocument 批量富化文档的所有pending分块。调用间隔固定延迟以尊重提供方限流，
// 单个分块失败不中断批次。
func (s *ChunkReviewService) EnrichDocument(ctx context.Context, sess *auth.Session, docID uint) (int, error) {
	if !sess.IsRole(models.RoleCurator) {
		return 0, errors.NewAccessDeniedError()
	}

	queue, err := s.chunks.ListReviewQueue(ctx, docID)
	if err != nil {
		return 0, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to list pending chunks").WithCause(err)
	}

	enriched := 0
	for i, chunk := range queue {
		if i > 0 {
			select {
			case <-ctx.Done():
				return enriched, ctx.Err()
			case <-time.After(s.enrichDelay):
			}
		}
		if _, err := s.EnrichChunk(ctx, sess, chunk.ChunkID); err != nil {
			logger.Warn("batch enrichment skipped chunk",
				zap.Uint("chunkID", chunk.ChunkID), zap.Error(err))
			continue
		}
		enriched++
	}
	return enriched, nil
}

// SaveDraft 保存审核中间态：任何非终态分块 → draft。
// 存储curator笔记与元数据快照，不触碰批准/驳回计数。
func (s *ChunkReviewService) SaveDraft(ctx context.Context, sess *auth.Session, chunkID uint, notes string, metadata *models.ChunkMetadata) (*models.DocumentChunk, error) {
	chunk, doc, err := s.loadChunkForCurator(ctx, sess, chunkID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalChunkStatus(chunk.ReviewStatus) {
		return nil, errors.NewBusinessError(errors.ErrCodeChunkNotReviewable,
			fmt.Sprintf("chunk %d is already %s", chunkID, chunk.ReviewStatus))
	}

	updates := map[string]interface{}{
		"review_status": models.ChunkStatusDraft,
		"curator_notes": notes,
	}
	if metadata != nil {
		merged := chunk.Metadata().Merge(*metadata)
		now := time.Now()
		updates["ai_metadata"] = merged.ToJSON()
		updates["metadata_updated_at"] = &now
	}

	if err := s.chunks.UpdateFields(ctx, chunkID, updates); err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to save draft").WithCause(err)
	}
	s.publishChunkTransition(chunk, doc, chunk.ReviewStatus, models.ChunkStatusDraft, sess.UserID)
	s.cache.Invalidate(ctx, chunk.DocumentID)

	return s.chunks.GetByID(ctx, chunkID)
}

// Approve 批准分块：pending/draft → approved。副作用顺序固定：
// (a)盖审核人与时间戳 (b)创建唯一一条向量记录快照 (c)原子自增approved_chunks
// (d)尽力而为地生成嵌入——嵌入失败不回滚批准，批准在嵌入前已持久。
// filtered分块从不进入人工审核，也永远不可批准。
func (s *ChunkReviewService) Approve(ctx context.Context, sess *auth.Session, chunkID uint, notes string) (*models.DocumentChunk, error) {
	chunk, doc, err := s.loadChunkForCurator(ctx, sess, chunkID)
	if err != nil {
		return nil, err
	}

	if err := s.decide(ctx, sess, chunk, doc, models.ChunkStatusApproved, notes); err != nil {
		return nil, err
	}

	// 向量记录是批准时刻的快照，每个分块最多一条；写入失败记录为可恢复
	// 的不一致，批准本身不回滚。
	metadata := chunk.Metadata()
	if notes != "" {
		chunk.CuratorNotes = notes
	}
	record := &models.VectorRecord{
		ChunkID:         chunk.ChunkID,
		DocumentID:      chunk.DocumentID,
		KBID:            doc.DocType,
		Content:         chunk.ChunkText,
		Metadata:        metadata.ToJSON(),
		CuratorID:       sess.UserID,
		CuratorNotes:    chunk.CuratorNotes,
		EmbeddingStatus: models.EmbeddingStatusPending,
	}

	exists, err := s.records.ExistsByChunk(ctx, chunk.ChunkID)
	if err != nil {
		logger.Error("failed to check existing vector record",
			zap.Uint("chunkID", chunk.ChunkID), zap.Error(err))
	}
	if exists {
		logger.Warn("vector record already exists for chunk, skipping snapshot",
			zap.Uint("chunkID", chunk.ChunkID))
	} else if err := s.records.Create(ctx, record); err != nil {
		logger.Error("vector record creation failed after approval, recoverable inconsistency",
			zap.Uint("chunkID", chunk.ChunkID), zap.Error(err))
		record = nil
	}

	if err := s.docs.IncrementCounter(ctx, chunk.DocumentID, "approved_chunks"); err != nil {
		logger.Error("failed to increment approved counter",
			zap.Uint("documentID", chunk.DocumentID), zap.Error(err))
	}

	if record != nil {
		s.generateEmbedding(ctx, record)
	}

	return s.chunks.GetByID(ctx, chunkID)
}

// Reject 驳回分块：pending/draft → rejected。盖审核人与时间戳并原子自增
// rejected_chunks，不创建向量记录。
func (s *ChunkReviewService) Reject(ctx context.Context, sess *auth.Session, chunkID uint, notes string) (*models.DocumentChunk, error) {
	chunk, doc, err := s.loadChunkForCurator(ctx, sess, chunkID)
	if err != nil {
		return nil, err
	}

	if err := s.decide(ctx, sess, chunk, doc, models.ChunkStatusRejected, notes); err != nil {
		return nil, err
	}

	if err := s.docs.IncrementCounter(ctx, chunk.DocumentID, "rejected_chunks"); err != nil {
		logger.Error("failed to increment rejected counter",
			zap.Uint("documentID", chunk.DocumentID), zap.Error(err))
	}

	return s.chunks.GetByID(ctx, chunkID)
}

// decide 执行批准/驳回的状态写入。只有pending和draft可以进入终态判定，
// 比较交换保证单次生效——已终态的分块再判定不产生第二次副作用。
func (s *ChunkReviewService) decide(ctx context.Context, sess *auth.Session, chunk *models.DocumentChunk, doc *models.Document, decision, notes string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"reviewed_by": sess.UserID,
		"reviewed_at": &now,
	}
	if notes != "" {
		updates["curator_notes"] = notes
	}

	for _, from := range []string{models.ChunkStatusPending, models.ChunkStatusDraft} {
		ok, err := s.chunks.CompareAndSetStatus(ctx, chunk.ChunkID, from, decision, updates)
		if err != nil {
			return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to record review decision").WithCause(err)
		}
		if ok {
			s.publishChunkTransition(chunk, doc, from, decision, sess.UserID)
			s.cache.Invalidate(ctx, chunk.DocumentID)
			return nil
		}
	}

	return errors.NewBusinessError(errors.ErrCodeChunkNotReviewable,
		fmt.Sprintf("chunk %d is not reviewable (status=%s)", chunk.ChunkID, chunk.ReviewStatus))
}

// generateEmbedding 批准后的尽力而为嵌入生成。失败写入embedding_status=failed
// 并记录，不影响已持久的批准。
func (s *ChunkReviewService) generateEmbedding(ctx context.Context, record *models.VectorRecord) {
	if s.embedder == nil || !s.embedder.Ready() {
		return
	}

	embedding, err := s.embedder.Embed(ctx, record.Content)
	if err != nil {
		metrics.EmbeddingFailures.Inc()
		logger.Warn("embedding generation failed after approval",
			zap.Uint("chunkID", record.ChunkID), zap.Error(err))
		s.markEmbedding(ctx, record, models.EmbeddingStatusFailed)
		return
	}

	if s.vectorStore != nil && s.vectorStore.Ready() {
		if err := s.vectorStore.UpsertEntry(ctx, knowledge.VectorEntry{
			RecordID:   record.RecordID,
			ChunkID:    record.ChunkID,
			DocumentID: record.DocumentID,
			KBID:       record.KBID,
			Content:    record.Content,
			Embedding:  embedding,
		}); err != nil {
			metrics.EmbeddingFailures.Inc()
			logger.Warn("vector store upsert failed after approval",
				zap.Uint("chunkID", record.ChunkID), zap.Error(err))
			s.markEmbedding(ctx, record, models.EmbeddingStatusFailed)
			return
		}
	}

	s.markEmbedding(ctx, record, models.EmbeddingStatusCompleted)
}

func (s *ChunkReviewService) markEmbedding(ctx context.Context, record *models.VectorRecord, status string) {
	if err := s.records.UpdateEmbeddingStatus(ctx, record.RecordID, status); err != nil {
		logger.Error("failed to update embedding status",
			zap.Uint("recordID", record.RecordID), zap.Error(err))
	}
}

// ReviewQueue 审核队列视图：仅pending分块，按置信分升序（最不确定的优先）。
// draft/enriching/filtered/终态分块不出现在队列里但仍可单独寻址。
func (s *ChunkReviewService) ReviewQueue(ctx context.Context, sess *auth.Session, docID uint) ([]models.DocumentChunk, error) {
	if !sess.IsRole(models.RoleCurator) {
		return nil, errors.NewAccessDeniedError()
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, errors.NewNotFoundError("document")
	}
	if !sess.CanAccessKB(doc.DocType) {
		return nil, errors.NewAccessDeniedError()
	}

	if cached := s.cache.Get(ctx, docID); cached != nil {
		return cached, nil
	}

	queue, err := s.chunks.ListReviewQueue(ctx, docID)
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to list review queue").WithCause(err)
	}

	s.cache.Set(ctx, docID, queue)
	return queue, nil
}

// GetChunk 读取单个分块，curator范围校验同队列
func (s *ChunkReviewService) GetChunk(ctx context.Context, sess *auth.Session, chunkID uint) (*models.DocumentChunk, error) {
	chunk, _, err := s.loadChunkForCurator(ctx, sess, chunkID)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// ListChunks 列出文档全部分块（含filtered与终态），供审核详情页使用
func (s *ChunkReviewService) ListChunks(ctx context.Context, sess *auth.Session, docID uint) ([]models.DocumentChunk, error) {
	if !sess.IsRole(models.RoleCurator) {
		return nil, errors.NewAccessDeniedError()
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, errors.NewNotFoundError("document")
	}
	if !sess.CanAccessKB(doc.DocType) {
		return nil, errors.NewAccessDeniedError()
	}

	return s.chunks.ListByDocument(ctx, docID)
}

// ReclaimStuckEnriching 回收滞留在enriching超过超时时间的分块，回退为pending。
// 防止网关调用一去不回时分块永久卡死。
func (s *ChunkReviewService) ReclaimStuckEnriching(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.enrichTimeout)
	reclaimed, err := s.chunks.ReclaimStuckEnriching(ctx, cutoff)
	if err != nil {
		return 0, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to reclaim stuck chunks").WithCause(err)
	}
	if reclaimed > 0 {
		logger.Warn("reclaimed chunks stuck in enriching", zap.Int64("count", reclaimed))
	}
	return reclaimed, nil
}
