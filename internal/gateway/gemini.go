package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// GeminiProvider 基于Google Gemini的分块/富化实现，复用与OpenAI相同的JSON契约
type GeminiProvider struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

// NewGeminiProvider 创建Gemini提供方
func NewGeminiProvider(cfg config.AIConfig) (*GeminiProvider, error) {
	key := strings.TrimSpace(cfg.GeminiAPIKey)
	if key == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	model, err := googleai.New(context.Background(),
		googleai.WithAPIKey(key),
		googleai.WithDefaultModel(cfg.ChunkModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Chunk(ctx context.Context, req ChunkRequest) ([]RawChunk, error) {
	prompt := chunkSystemPrompt(req.DocType, req.Filters) + "\n\nDocument:\n" + req.Content

	out, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt,
		llms.WithJSONMode(),
		llms.WithMaxTokens(p.maxTokens),
		llms.WithTemperature(p.temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini chunk request failed: %w", err)
	}

	return parseChunkJSON(out)
}

func (p *GeminiProvider) Enrich(ctx context.Context, chunkText, docType string) (models.ChunkMetadata, error) {
	prompt := enrichSystemPrompt(docType) + "\n\nChunk:\n" + chunkText

	out, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt,
		llms.WithJSONMode(),
		llms.WithMaxTokens(p.maxTokens),
		llms.WithTemperature(p.temperature),
	)
	if err != nil {
		return models.ChunkMetadata{}, fmt.Errorf("gemini enrich request failed: %w", err)
	}

	return parseMetadataJSON(out)
}
