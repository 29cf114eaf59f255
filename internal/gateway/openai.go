package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider 基于OpenAI Chat Completions的分块/富化实现
type OpenAIProvider struct {
	client      *openai.Client
	chunkModel  string
	enrichModel string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider 创建OpenAI提供方
func NewOpenAIProvider(cfg config.AIConfig) *OpenAIProvider {
	var client *openai.Client
	if key := strings.TrimSpace(cfg.OpenAIAPIKey); key != "" {
		client = openai.NewClient(key)
	}
	return &OpenAIProvider{
		client:      client,
		chunkModel:  cfg.ChunkModel,
		enrichModel: cfg.EnrichModel,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// chunkResponse 分块接口的JSON响应结构
type chunkResponse struct {
	Chunks []struct {
		Text         string `json:"text"`
		Filtered     bool   `json:"filtered"`
		FilterReason string `json:"filter_reason"`
	} `json:"chunks"`
}

func (p *OpenAIProvider) Chunk(ctx context.Context, req ChunkRequest) ([]RawChunk, error) {
	if p.client == nil {
		return nil, errors.New("openai client not configured")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.chunkModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: chunkSystemPrompt(req.DocType, req.Filters)},
			{Role: openai.ChatMessageRoleUser, Content: req.Content},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chunk request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	return parseChunkJSON(resp.Choices[0].Message.Content)
}

func (p *OpenAIProvider) Enrich(ctx context.Context, chunkText, docType string) (models.ChunkMetadata, error) {
	if p.client == nil {
		return models.ChunkMetadata{}, errors.New("openai client not configured")
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.enrichModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: enrichSystemPrompt(docType)},
			{Role: openai.ChatMessageRoleUser, Content: chunkText},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.ChunkMetadata{}, fmt.Errorf("openai enrich request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.ChunkMetadata{}, errors.New("openai returned no choices")
	}

	return parseMetadataJSON(resp.Choices[0].Message.Content)
}

// chunkSystemPrompt 分块提示词
func chunkSystemPrompt(docType string, filters []string) string {
	var b strings.Builder
	b.WriteString("You split healthcare documents into coherent chunks for curator review. ")
	fmt.Fprintf(&b, "The document belongs to the %q knowledge base. ", docType)
	if len(filters) > 0 {
		fmt.Fprintf(&b, "Mark chunks matching these content filters as filtered: %s. ", strings.Join(filters, ", "))
	}
	b.WriteString(`Respond with JSON: {"chunks":[{"text":"...","filtered":false,"filter_reason":""}]}`)
	return b.String()
}

// enrichSystemPrompt 富化提示词
func enrichSystemPrompt(docType string) string {
	return fmt.Sprintf("You annotate a healthcare document chunk from the %q knowledge base with topical metadata. "+
		`Respond with JSON: {"topic":"...","subtopic":"...","relevance_score":0.0,"use_cases":[],"key_concepts":[],"confidence":0.0}`, docType)
}

// parseChunkJSON 解析分块JSON响应并分配序号
func parseChunkJSON(raw string) ([]RawChunk, error) {
	var parsed chunkResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("invalid chunk response: %w", err)
	}

	chunks := make([]RawChunk, 0, len(parsed.Chunks))
	for _, c := range parsed.Chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		chunks = append(chunks, RawChunk{
			Index:        len(chunks),
			Text:         text,
			Filtered:     c.Filtered,
			FilterReason: c.FilterReason,
		})
	}
	return chunks, nil
}

// parseMetadataJSON 解析富化JSON响应，未建模字段收进Extra
func parseMetadataJSON(raw string) (models.ChunkMetadata, error) {
	cleaned := extractJSON(raw)

	var metadata models.ChunkMetadata
	if err := json.Unmarshal([]byte(cleaned), &metadata); err != nil {
		return models.ChunkMetadata{}, fmt.Errorf("invalid metadata response: %w", err)
	}

	// 已建模字段之外的键保留到Extra
	var all map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &all); err == nil {
		for _, known := range []string{"topic", "subtopic", "relevance_score", "use_cases", "key_concepts", "confidence", "extra"} {
			delete(all, known)
		}
		if len(all) > 0 {
			if metadata.Extra == nil {
				metadata.Extra = make(map[string]interface{}, len(all))
			}
			for k, v := range all {
				metadata.Extra[k] = v
			}
		}
	}

	return metadata, nil
}

// extractJSON 剥掉模型偶尔附加的markdown代码围栏
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
