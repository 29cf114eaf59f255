package gateway

import (
	"strings"
	"unicode"
)

// SentenceChunker 确定性的句边界贪心分块器。按句子累积到接近字符预算后截断，
// 作为AI分块失败时的兜底，不做任何内容过滤。
type SentenceChunker struct {
	charBudget int
}

// NewSentenceChunker 创建句边界分块器
func NewSentenceChunker(charBudget int) *SentenceChunker {
	if charBudget <= 0 {
		charBudget = 1000
	}
	return &SentenceChunker{charBudget: charBudget}
}

// Split 切分文本。超过预算的单句独立成块，不截断句子中部。
func (c *SentenceChunker) Split(text string) []RawChunk {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil
	}

	sentences := splitSentences(clean)
	var chunks []RawChunk
	var current strings.Builder

	flush := func() {
		chunkText := strings.TrimSpace(current.String())
		if chunkText != "" {
			chunks = append(chunks, RawChunk{
				Index: len(chunks),
				Text:  chunkText,
			})
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.charBudget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// splitSentences 按句末标点切分，保留标点
func splitSentences(s string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range s {
		current.WriteRune(r)
		if isSentenceEnd(r) {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', ';', '；':
		return true
	}
	return false
}

func normalizeWhitespace(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	var prevSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}
