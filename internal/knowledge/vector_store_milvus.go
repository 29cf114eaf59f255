package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aihub/curation-go/internal/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address          string
	Username         string
	Password         string
	CollectionPrefix string
	VectorSize       int
	Distance         string
	Database         string
	UseTLS           bool
	Timeout          time.Duration
}

type milvusVectorStore struct {
	milvusClient     client.Client
	collectionPrefix string
	vectorSize       int
	distance         string
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "kb_vectors"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient:     milvusClient,
		collectionPrefix: opts.CollectionPrefix,
		vectorSize:       opts.VectorSize,
		distance:         formatMilvusDistance(opts.Distance),
	}, nil
}

func formatMilvusDistance(value string) string {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return "IP"
	case "L2", "EUCLIDEAN":
		return "L2"
	default:
		return "COSINE"
	}
}

// collectionName 每个知识库一个集合，kb_id清洗为合法集合名
func (s *milvusVectorStore) collectionName(kbID string) string {
	sanitized := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, kbID)
	return fmt.Sprintf("%s_%s", s.collectionPrefix, sanitized)
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context, kbID string) error {
	name := s.collectionName(kbID)

	hasCollection, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    fmt.Sprintf("Approved chunks for knowledge base %s", kbID),
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "chunk_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "kb_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorSize),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	var indexErr error
	switch s.distance {
	case "IP":
		index, indexErr = entity.NewIndexHNSW(entity.IP, 8, 64)
	case "L2":
		index, indexErr = entity.NewIndexHNSW(entity.L2, 8, 64)
	default:
		index, indexErr = entity.NewIndexHNSW(entity.COSINE, 8, 64)
	}
	if indexErr != nil {
		return fmt.Errorf("failed to create index: %w", indexErr)
	}

	if err := s.milvusClient.CreateIndex(ctx, name, "vector", index, false); err != nil {
		// 索引创建失败不影响写入，只记录警告
		logger.Warn("failed to create milvus index", zap.String("collection", name), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) UpsertEntry(ctx context.Context, entry VectorEntry) error {
	if len(entry.Embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if len(entry.Embedding) != s.vectorSize {
		embedding := make([]float32, s.vectorSize)
		copy(embedding, entry.Embedding)
		entry.Embedding = embedding
	}

	if err := s.ensureCollection(ctx, entry.KBID); err != nil {
		return err
	}

	name := s.collectionName(entry.KBID)

	idColumn := entity.NewColumnInt64("id", []int64{int64(entry.RecordID)})
	chunkIDColumn := entity.NewColumnInt64("chunk_id", []int64{int64(entry.ChunkID)})
	documentIDColumn := entity.NewColumnInt64("document_id", []int64{int64(entry.DocumentID)})
	kbIDColumn := entity.NewColumnVarChar("kb_id", []string{entry.KBID})
	contentColumn := entity.NewColumnVarChar("content", []string{entry.Content})
	vectorColumn := entity.NewColumnFloatVector("vector", s.vectorSize, [][]float32{entry.Embedding})

	_, err := s.milvusClient.Insert(ctx, name, "", idColumn, chunkIDColumn, documentIDColumn, kbIDColumn, contentColumn, vectorColumn)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, name, false); err != nil {
		logger.Warn("failed to flush milvus collection", zap.String("collection", name), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) DeleteDocument(ctx context.Context, kbID string, documentID uint) error {
	if err := s.ensureCollection(ctx, kbID); err != nil {
		return err
	}

	name := s.collectionName(kbID)
	expr := fmt.Sprintf("document_id == %d", documentID)

	if err := s.milvusClient.Delete(ctx, name, "", expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, name, false); err != nil {
		logger.Warn("failed to flush after delete", zap.String("collection", name), zap.Error(err))
	}

	return nil
}

func (s *milvusVectorStore) Ready() bool {
	return s.milvusClient != nil
}
