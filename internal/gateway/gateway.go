package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/logger"
	"github.com/aihub/curation-go/internal/models"
	"go.uber.org/zap"
)

// RawChunk 提供方返回的单个分块
type RawChunk struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	Filtered     bool   `json:"filtered"`
	FilterReason string `json:"filter_reason,omitempty"`
}

// ChunkRequest 分块请求
type ChunkRequest struct {
	Content string
	DocType string
	Filters []string
}

// Provider 分块/富化提供方接口。实现方可互换，调用方通过配置选择一次并注入，
// 调用点不做字符串分支。
type Provider interface {
	Name() string
	Chunk(ctx context.Context, req ChunkRequest) ([]RawChunk, error)
	Enrich(ctx context.Context, chunkText, docType string) (models.ChunkMetadata, error)
}

// NewProvider 根据配置选择提供方实现
func NewProvider(cfg config.AIConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}

// Gateway 在Provider之上实施调用方契约：
//   - Chunk失败时退化为确定性的句边界分块器，文档不会仅因提供方不可用而卡死；
//   - 空分块集视为处理失败而不是成功的空结果；
//   - Enrich对普通提供方错误不向调用方抛出，失败时返回固定的低置信默认元数据。
type Gateway struct {
	provider           Provider
	fallback           *SentenceChunker
	fallbackConfidence float64
}

// NewGateway 创建网关
func NewGateway(provider Provider, charBudget int, fallbackConfidence float64) *Gateway {
	return &Gateway{
		provider:           provider,
		fallback:           NewSentenceChunker(charBudget),
		fallbackConfidence: fallbackConfidence,
	}
}

// ProviderName 返回选定的提供方名称
func (g *Gateway) ProviderName() string {
	return g.provider.Name()
}

// Chunk 调用提供方分块，失败时使用兜底分块器。两条路径都产出空集时返回错误，
// 阻止文档进入review。
func (g *Gateway) Chunk(ctx context.Context, req ChunkRequest) ([]RawChunk, error) {
	chunks, err := g.provider.Chunk(ctx, req)
	if err != nil {
		logger.Warn("provider chunking failed, using sentence fallback",
			zap.String("provider", g.provider.Name()),
			zap.String("docType", req.DocType),
			zap.Error(err))
		chunks = g.fallback.Split(req.Content)
	}

	if len(chunks) == 0 {
		return nil, errors.NewExternalError(errors.ErrCodeEmptyChunkSet,
			"chunking produced zero chunks")
	}
	return chunks, nil
}

// Enrich 调用提供方富化。返回的bool表示提供方是否成功；失败时返回固定的
// 低置信默认元数据且不报错，由调用方决定是否采用。
func (g *Gateway) Enrich(ctx context.Context, chunkText, docType string) (models.ChunkMetadata, bool) {
	metadata, err := g.provider.Enrich(ctx, chunkText, docType)
	if err != nil {
		logger.Warn("provider enrichment failed",
			zap.String("provider", g.provider.Name()),
			zap.String("docType", docType),
			zap.Error(err))
		return DefaultMetadata(g.fallbackConfidence), false
	}
	return metadata, true
}

// DefaultMetadata 提供方失败时的固定低置信默认元数据
func DefaultMetadata(confidence float64) models.ChunkMetadata {
	return models.ChunkMetadata{
		Topic:      "general",
		Confidence: models.Float64Ptr(confidence),
	}
}
