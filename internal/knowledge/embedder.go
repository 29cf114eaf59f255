package knowledge

import (
	"context"
	"errors"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 默认占位实现，未配置嵌入服务时审批流跳过向量生成
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding provider not configured")
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

// maxEmbedInputRunes 单次嵌入的输入上限。审核通过的分块通常在千字级，
// 兜底分块器不截断超长单句，这里保证极端分块也不会超出模型输入窗口。
const maxEmbedInputRunes = 6000

// ChunkEmbedder 用OpenAI Embedding API为审核通过的分块生成向量。
// 向量维度在创建时确定，与Milvus集合的维度保持一致。
type ChunkEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

var chunkEmbeddingDims = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// NewChunkEmbedder 创建分块嵌入生成器，未配置密钥时退化为Noop
func NewChunkEmbedder(apiKey, model string) Embedder {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	dims, ok := chunkEmbeddingDims[model]
	if !ok {
		dims = 1536
	}

	return &ChunkEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dims:   dims,
	}
}

// Embed 生成分块内容的向量。输入先做空白归一与长度截断，
// 保证存进向量库的内容与实际嵌入的文本一致。
func (e *ChunkEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	input := prepareEmbedInput(text)
	if input == "" {
		return nil, errors.New("chunk content is empty")
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{input},
	}
	// v3系列支持服务端降维，ada-002不接受该参数
	if strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dims
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response empty")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	copy(vector, resp.Data[0].Embedding)
	return vector, nil
}

func (e *ChunkEmbedder) Dimensions() int {
	return e.dims
}

func (e *ChunkEmbedder) Ready() bool {
	return e.client != nil
}

// prepareEmbedInput 折叠空白并按rune截断到输入上限
func prepareEmbedInput(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	var prevSpace bool
	count := 0
	for _, r := range text {
		if count >= maxEmbedInputRunes {
			break
		}
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			b.WriteRune(' ')
			prevSpace = true
		} else {
			b.WriteRune(r)
			prevSpace = false
		}
		count++
	}

	return strings.TrimSpace(b.String())
}
