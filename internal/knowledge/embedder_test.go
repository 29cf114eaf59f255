package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChunkEmbedder_NoKeyFallsBackToNoop(t *testing.T) {
	embedder := NewChunkEmbedder("", "text-embedding-3-small")
	assert.False(t, embedder.Ready())
	assert.Equal(t, 0, embedder.Dimensions())

	_, err := embedder.Embed(context.Background(), "some chunk text")
	assert.Error(t, err)
}

func TestNewChunkEmbedder_ModelDimensions(t *testing.T) {
	assert.Equal(t, 3072, NewChunkEmbedder("key", "text-embedding-3-large").Dimensions())
	assert.Equal(t, 1536, NewChunkEmbedder("key", "").Dimensions())
	// 未知模型按默认维度处理
	assert.Equal(t, 1536, NewChunkEmbedder("key", "mystery-model").Dimensions())
}

func TestPrepareEmbedInput_NormalizesWhitespace(t *testing.T) {
	got := prepareEmbedInput("Blood  pressure\n\ntargets\tfor   adults.")
	assert.Equal(t, "Blood pressure targets for adults.", got)

	assert.Equal(t, "", prepareEmbedInput("   \n\t  "))
}

func TestPrepareEmbedInput_TruncatesOversizedChunk(t *testing.T) {
	long := strings.Repeat("血压管理 ", maxEmbedInputRunes)
	got := prepareEmbedInput(long)

	runes := []rune(got)
	assert.LessOrEqual(t, len(runes), maxEmbedInputRunes)
	assert.True(t, strings.HasPrefix(got, "血压管理"))
}
