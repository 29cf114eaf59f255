package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/models"
	"github.com/aihub/curation-go/internal/repository"
	"go.uber.org/zap"
)

// KnowledgeBaseService 知识库注册表的维护。doc_type的合法取值来自该注册表，
// 增删改仅限admin，普通用户只能看到激活的知识库。
type KnowledgeBaseService struct {
	kbs repository.KnowledgeBaseRepository
}

// NewKnowledgeBaseService 创建知识库服务
func NewKnowledgeBaseService(kbs repository.KnowledgeBaseRepository) *KnowledgeBaseService {
	return &KnowledgeBaseService{kbs: kbs}
}

// List 列出知识库。admin可见全部，其余角色仅见激活的。
func (s *KnowledgeBaseService) List(ctx context.Context, sess *auth.Session) ([]models.KnowledgeBase, error) {
	if !sess.IsRole(models.RoleUser) {
		return nil, errors.NewAccessDeniedError()
	}
	return s.kbs.List(ctx, sess.IsAdmin())
}

// Get 读取单个知识库
func (s *KnowledgeBaseService) Get(ctx context.Context, sess *auth.Session, kbID string) (*models.KnowledgeBase, error) {
	if !sess.IsRole(models.RoleUser) {
		return nil, errors.NewAccessDeniedError()
	}

	kb, err := s.kbs.GetByID(ctx, kbID)
	if err != nil {
		return nil, errors.NewNotFoundError("knowledge base")
	}
	if !kb.IsActive && !sess.IsAdmin() {
		return nil, errors.NewNotFoundError("knowledge base")
	}
	return kb, nil
}

// Create 注册新知识库，仅限admin。kb_id是稳定标识，创建后不可变更。
func (s *KnowledgeBaseService) Create(ctx context.Context, sess *auth.Session, kbID, name, description string) (*models.KnowledgeBase, error) {
	if !sess.IsAdmin() {
		return nil, errors.NewAccessDeniedError()
	}

	kbID = strings.TrimSpace(kbID)
	if kbID == "" || strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("kb_id and name are required")
	}

	if _, err := s.kbs.GetByID(ctx, kbID); err == nil {
		return nil, errors.NewBusinessError(errors.ErrCodeConflict,
			fmt.Sprintf("knowledge base %s already exists", kbID))
	}

	kb := &models.KnowledgeBase{
		KBID:        kbID,
		Name:        name,
		Description: description,
		IsActive:    true,
	}
	if err := s.kbs.Create(ctx, kb); err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to create knowledge base").WithCause(err)
	}

	logger.Info("knowledge base created", zap.String("kbID", kbID), zap.Uint("adminID", sess.UserID))
	return kb, nil
}

// Update 更新名称、描述或激活状态，仅限admin。
// 停用知识库会阻止新上传，但不影响已在流转中的文档。
func (s *KnowledgeBaseService) Update(ctx context.Context, sess *auth.Session, kbID string, updates map[string]interface{}) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}

	allowed := map[string]bool{"name": true, "description": true, "is_active": true}
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowed[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return errors.NewValidationError("no updatable fields provided")
	}

	if _, err := s.kbs.GetByID(ctx, kbID); err != nil {
		return errors.NewNotFoundError("knowledge base")
	}
	if err := s.kbs.Update(ctx, kbID, filtered); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to update knowledge base").WithCause(err)
	}

	logger.Info("knowledge base updated", zap.String("kbID", kbID), zap.Uint("adminID", sess.UserID))
	return nil
}

// Delete 删除知识库注册项，仅限admin。历史文档行保留原doc_type不受影响。
func (s *KnowledgeBaseService) Delete(ctx context.Context, sess *auth.Session, kbID string) error {
	if !sess.IsAdmin() {
		return errors.NewAccessDeniedError()
	}

	if _, err := s.kbs.GetByID(ctx, kbID); err != nil {
		return errors.NewNotFoundError("knowledge base")
	}
	if err := s.kbs.Delete(ctx, kbID); err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "failed to delete knowledge base").WithCause(err)
	}

	logger.Info("knowledge base deleted", zap.String("kbID", kbID), zap.Uint("adminID", sess.UserID))
	return nil
}
