package knowledge

import "context"

// VectorEntry 写入向量知识库的一条记录
type VectorEntry struct {
	RecordID   uint
	ChunkID    uint
	DocumentID uint
	KBID       string
	Content    string
	Embedding  []float32
}

// VectorStore 向量知识库抽象。批准的分块写入这里，工作流本身不做检索。
type VectorStore interface {
	UpsertEntry(ctx context.Context, entry VectorEntry) error
	DeleteDocument(ctx context.Context, kbID string, documentID uint) error
	Ready() bool
}

// NoopVectorStore 未配置向量库时的占位实现
type NoopVectorStore struct{}

func (n *NoopVectorStore) UpsertEntry(ctx context.Context, entry VectorEntry) error {
	return nil
}

func (n *NoopVectorStore) DeleteDocument(ctx context.Context, kbID string, documentID uint) error {
	return nil
}

func (n *NoopVectorStore) Ready() bool {
	return false
}
