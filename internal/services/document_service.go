package services

import (
	"context"
	"fmt"
	"io"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/gateway"
	"github.com/aihub/curation-go/internal/knowledge"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/metrics"
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/repository"
	"go.uber.org/zap"
)

// ObjectStorage 文档服务需要的对象存储能力，storage.ObjectStore满足该接口
type ObjectStorage interface {
	Upload(ctx context.Context, docType, filename string, reader io.Reader, size int64) (string, error)
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// DocumentService 文档上传与处理管线。上传只做验证、存储与建行；
// 分块处理由工作流驱动，异步执行，不阻塞调用方。
type DocumentService struct {
	docs        repository.DocumentRepository
	chunks      repository.ChunkRepository
	kbs         repository.KnowledgeBaseRepository
	workflow    *WorkflowService
	gw          *gateway.Gateway
	store       ObjectStorage
	parsers     *knowledge.ParserRegistry
	vectorStore knowledge.VectorStore
	uploadCfg   config.FileUploadConfig
}

// NewDocumentService 创建文档服务
func NewDocumentService(
	docs repository.DocumentRepository,
	chunks repository.ChunkRepository,
	kbs repository.KnowledgeBaseRepository,
	workflow *WorkflowService,
	gw *gateway.Gateway,
	store ObjectStorage,
	parsers *knowledge.ParserRegistry,
	vectorStore knowledge.VectorStore,
	uploadCfg config.FileUploadConfig,
) *DocumentService {
	return &DocumentService{
		docs:        docs,
		chunks:      chunks,
		kbs:         kbs,
		workflow:    workflow,
		gw:          gw,
		store:       store,
		parsers:     parsers,
		vectorStore: vectorStore,
		uploadCfg:   uploadCfg,
	}
}

// UploadRequest 文档上传请求
type UploadRequest struct {
	DocType   string
	Title     string
	SourceURL string
	FileName  string
	FileSize  int64
	File      io.Reader
	Filters   []string
}

// Upload 上传文档。验证顺序固定：文件约束 → 知识库存在且激活 →
// (doc_type, source_url)查重，全部通过后才写对象存储并建行，status=pending。
func (s *DocumentService) Upload(ctx context.Context, sess *auth.Session, req UploadRequest) (*models.Document, error) {
	if !sess.IsRole(models.RoleUser) {
		return nil, errors.NewAccessDeniedError()
	}

	if err := ValidateUploadFile(s.uploadCfg, req.FileName, req.FileSize); err != nil {
		return nil, err
	}
	if err := ValidateSourceURL(req.SourceURL); err != nil {
		return nil, err
	}

	kb, err := s.kbs.GetByID(ctx, req.DocType)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown knowledge base: %s", req.DocType))
	}
	if !kb.IsActive {
		return nil, errors.NewValidationError(fmt.Sprintf("knowledge base %s is inactive", req.DocType))
	}

	// 同一外部来源不允许重复进入同一知识库，查重必须先于存储上传
	if req.SourceURL != "" {
		exists, err := s.docs.ExistsBySource(ctx, req.DocType, req.SourceURL)
		if err != nil {
			return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to check duplicate source").WithCause(err)
		}
		if exists {
			return nil, errors.NewBusinessError(errors.ErrCodeDuplicateSource,
				fmt.Sprintf("source %s already ingested into %s", req.SourceURL, req.DocType))
		}
	}

	objectName, err := s.store.Upload(ctx, req.DocType, req.FileName, req.File, req.FileSize)
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeUploadFailed, "failed to store file").WithCause(err)
	}

	doc := &models.Document{
		DocType:          req.DocType,
		Title:            req.Title,
		FileName:         req.FileName,
		FilePath:         objectName,
		FileSize:         req.FileSize,
		ProcessingStatus: models.DocumentStatusPending,
		UploadedBy:       sess.UserID,
	}
	if req.SourceURL != "" {
		doc.SourceURL = &req.SourceURL
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to create document").WithCause(err)
	}

	logger.Info("document uploaded",
		zap.Uint("documentID", doc.DocumentID),
		zap.String("docType", doc.DocType),
		zap.Uint("userID", sess.UserID))

	return doc, nil
}

// Process 驱动文档通过分块管线：pending → processing → review。
// 网关调用或分块插入期间的任何异常都让文档落入failed并记录原因，
// 分块批次在事务内插入，不留下不一致的部分行。
func (s *DocumentService) Process(ctx context.Context, docID uint, filters []string) error {
	if err := s.workflow.StartProcessing(ctx, docID, filters); err != nil {
		return err
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}

	content, err := s.extractContent(ctx, doc)
	if err != nil {
		return s.failWith(ctx, docID, fmt.Sprintf("content extraction failed: %v", err))
	}

	rawChunks, err := s.gw.Chunk(ctx, gateway.ChunkRequest{
		Content: content,
		DocType: doc.DocType,
		Filters: filters,
	})
	if err != nil {
		metrics.GatewayFailures.WithLabelValues("chunk").Inc()
		return s.failWith(ctx, docID, fmt.Sprintf("chunking failed: %v", err))
	}

	chunks := make([]models.DocumentChunk, 0, len(rawChunks))
	kept, filtered := 0, 0
	for _, raw := range rawChunks {
		chunk := models.DocumentChunk{
			DocumentID: docID,
			ChunkIndex: raw.Index,
			ChunkText:  raw.Text,
		}
		if raw.Filtered {
			// filtered只在插入时进入，之后永远不会再进入
			chunk.IsFiltered = true
			chunk.FilterReason = raw.FilterReason
			chunk.ReviewStatus = models.ChunkStatusFiltered
			filtered++
		} else {
			chunk.ReviewStatus = models.ChunkStatusPending
			kept++
		}
		chunks = append(chunks, chunk)
	}

	if kept == 0 {
		return s.failWith(ctx, docID, "all chunks were filtered, nothing to review")
	}

	if err := s.chunks.ReplaceBatch(ctx, docID, chunks); err != nil {
		return s.failWith(ctx, docID, fmt.Sprintf("chunk insertion failed: %v", err))
	}

	return s.workflow.CompleteProcessing(ctx, docID, kept, filtered)
}

// failWith 将文档置为failed并返回对应的业务错误
func (s *DocumentService) failWith(ctx context.Context, docID uint, reason string) error {
	if err := s.workflow.FailProcessing(ctx, docID, reason); err != nil {
		logger.Error("failed to mark document as failed",
			zap.Uint("documentID", docID), zap.Error(err))
	}
	return errors.NewExternalError(errors.ErrCodeGatewayFailed, reason)
}

// extractContent 从对象存储取回文件并提取文本
func (s *DocumentService) extractContent(ctx context.Context, doc *models.Document) (string, error) {
	reader, err := s.store.Download(ctx, doc.FilePath)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	return s.parsers.Parse(reader, doc.FileName)
}

// Get 读取文档，curator受知识库范围限制
func (s *DocumentService) Get(ctx context.Context, sess *auth.Session, docID uint) (*models.Document, error) {
	if !sess.IsRole(models.RoleUser) {
		return nil, errors.NewAccessDeniedError()
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, errors.NewNotFoundError("document")
	}

	if sess.IsRole(models.RoleCurator) && !sess.CanAccessKB(doc.DocType) {
		return nil, errors.NewAccessDeniedError()
	}
	if !sess.IsRole(models.RoleCurator) && doc.UploadedBy != sess.UserID {
		return nil, errors.NewAccessDeniedError()
	}

	return doc, nil
}

// List 按会话范围列出文档：admin全量，curator限分配的知识库。
// 没有任何分配的curator看到空列表，而不是全量。
func (s *DocumentService) List(ctx context.Context, sess *auth.Session, page, limit int) ([]models.Document, int64, error) {
	if !sess.IsRole(models.RoleCurator) {
		return nil, 0, errors.NewAccessDeniedError()
	}
	kbs, all := sess.ScopedKBs()
	if !all && len(kbs) == 0 {
		return []models.Document{}, 0, nil
	}
	return s.docs.ListByDocTypes(ctx, kbs, page, limit)
}

// Delete 删除文档及其级联分块与向量记录，仅限admin。
// 向量库清理是尽力而为的。
func (s *DocumentService) Delete(ctx context.Context, sess *auth.Session, docID uint) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return errors.NewNotFoundError("document")
	}

	if err := s.docs.Delete(ctx, docID); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to delete document").WithCause(err)
	}

	if s.vectorStore != nil && s.vectorStore.Ready() {
		if err := s.vectorStore.DeleteDocument(ctx, doc.DocType, docID); err != nil {
			logger.Warn("vector store cleanup failed",
				zap.Uint("documentID", docID), zap.Error(err))
		}
	}

	logger.Info("document deleted", zap.Uint("documentID", docID), zap.Uint("adminID", sess.UserID))
	return nil
}
