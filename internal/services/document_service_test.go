package services

import (
	"context"
	"strings"
	"testing"

	"github.com/aihub/curation-go/internal/config"
	"github.com/aihub/curation-go/internal/errors"
	"github.com/aihub/curation-go/internal/gateway"
	"github.com/aihub/curation-go/internal/knowledge"
	"github.com/aihub/curation-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentEnv struct {
	*reviewEnv
	kbs   *fakeKBRepo
	store *fakeObjectStore
	docs2 *DocumentService
}

func newDocumentEnv() *documentEnv {
	env := &documentEnv{
		reviewEnv: newReviewEnv(),
		store:     newFakeObjectStore(),
		kbs: newFakeKBRepo(
			models.KnowledgeBase{KBID: "cardiology", Name: "Cardiology", IsActive: true},
			models.KnowledgeBase{KBID: "retired", Name: "Retired KB", IsActive: false},
		),
	}
	env.docs2 = NewDocumentService(
		env.docs, env.chunks, env.kbs, env.workflow,
		gateway.NewGateway(env.provider, 1000, 0.3),
		env.store, knowledge.NewParserRegistry(), env.vectors,
		config.FileUploadConfig{MaxSize: 1 << 20, AllowedTypes: []string{".txt", ".md", ".pdf"}},
	)
	return env
}

func uploadReq(content string) UploadRequest {
	return UploadRequest{
		DocType:  "cardiology",
		Title:    "Hypertension guideline",
		FileName: "guideline.txt",
		FileSize: int64(len(content)),
		File:     strings.NewReader(content),
	}
}

func TestDocumentUpload(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("First sentence. Second sentence."))
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusPending, doc.ProcessingStatus)
	assert.Equal(t, uint(3), doc.UploadedBy)
	assert.Nil(t, doc.SourceURL)
	assert.NotEmpty(t, doc.FilePath)
	assert.Equal(t, 1, env.store.uploads)
}

func TestDocumentUpload_UnknownOrInactiveKB(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	req := uploadReq("text")
	req.DocType = "neurology"
	_, err := env.docs2.Upload(ctx, userSession(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetAppError(err).Code)

	req = uploadReq("text")
	req.DocType = "retired"
	_, err = env.docs2.Upload(ctx, userSession(), req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetAppError(err).Code)

	// 验证失败时不写对象存储
	assert.Equal(t, 0, env.store.uploads)
}

func TestDocumentUpload_DuplicateSourceRejectedBeforeStorage(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	req := uploadReq("some text")
	req.SourceURL = "https://example.org/guideline"
	_, err := env.docs2.Upload(ctx, userSession(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, env.store.uploads)

	// 同(doc_type, source_url)再次上传：同步409，且查重先于存储写入
	dup := uploadReq("same source different file")
	dup.SourceURL = "https://example.org/guideline"
	_, err = env.docs2.Upload(ctx, userSession(), dup)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateSource, errors.GetAppError(err).Code)
	assert.Equal(t, 1, env.store.uploads)

	// 同source进另一知识库不算重复
	env.kbs.Create(ctx, &models.KnowledgeBase{KBID: "oncology", Name: "Oncology", IsActive: true})
	other := uploadReq("same source other kb")
	other.DocType = "oncology"
	other.SourceURL = "https://example.org/guideline"
	_, err = env.docs2.Upload(ctx, userSession(), other)
	assert.NoError(t, err)
}

func TestDocumentProcess_ChunksAndCounts(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("Clinical text for chunking."))
	require.NoError(t, err)

	env.provider.chunks = []gateway.RawChunk{
		{Index: 0, Text: "chunk one"},
		{Index: 1, Text: "chunk two"},
		{Index: 2, Text: "marketing blurb", Filtered: true, FilterReason: "marketing"},
		{Index: 3, Text: "chunk three"},
		{Index: 4, Text: "chunk four"},
	}

	err = env.docs2.Process(ctx, doc.DocumentID, []string{"marketing"})
	require.NoError(t, err)

	updated, _ := env.docs.GetByID(ctx, doc.DocumentID)
	assert.Equal(t, models.DocumentStatusReview, updated.ProcessingStatus)
	assert.Equal(t, 4, updated.TotalChunks)
	assert.Equal(t, 1, updated.FilteredChunks)

	chunks, _ := env.chunks.ListByDocument(ctx, doc.DocumentID)
	require.Len(t, chunks, 5)
	assert.Equal(t, models.ChunkStatusFiltered, chunks[2].ReviewStatus)
	assert.True(t, chunks[2].IsFiltered)
	assert.Equal(t, "marketing", chunks[2].FilterReason)

	// filtered分块不进审核队列
	queue, _ := env.chunks.ListReviewQueue(ctx, doc.DocumentID)
	assert.Len(t, queue, 4)
}

func TestDocumentProcess_AllFilteredFails(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("Nothing but ads."))
	require.NoError(t, err)

	env.provider.chunks = []gateway.RawChunk{
		{Index: 0, Text: "ad one", Filtered: true, FilterReason: "marketing"},
		{Index: 1, Text: "ad two", Filtered: true, FilterReason: "marketing"},
	}

	err = env.docs2.Process(ctx, doc.DocumentID, []string{"marketing"})
	require.Error(t, err)

	updated, _ := env.docs.GetByID(ctx, doc.DocumentID)
	assert.Equal(t, models.DocumentStatusFailed, updated.ProcessingStatus)
	assert.Contains(t, updated.ErrorMessage, "all chunks were filtered")
}

func TestDocumentProcess_FallbackWhenProviderDown(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("First sentence. Second sentence."))
	require.NoError(t, err)

	// 提供方失败但内容可分句：退化分块，文档照常进入review
	env.provider.chunkErr = assert.AnError
	err = env.docs2.Process(ctx, doc.DocumentID, nil)
	require.NoError(t, err)

	updated, _ := env.docs.GetByID(ctx, doc.DocumentID)
	assert.Equal(t, models.DocumentStatusReview, updated.ProcessingStatus)
	assert.Greater(t, updated.TotalChunks, 0)
}

func TestDocumentProcess_RequiresPendingStatus(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("text"))
	require.NoError(t, err)
	env.docs.UpdateFields(ctx, doc.DocumentID, map[string]interface{}{
		"processing_status": models.DocumentStatusReview,
	})

	err = env.docs2.Process(ctx, doc.DocumentID, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeWorkflowViolation, errors.GetAppError(err).Code)
}

func TestDocumentGet_ScopeRules(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("text"))
	require.NoError(t, err)

	// 上传者本人可见
	got, err := env.docs2.Get(ctx, userSession(), doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, doc.DocumentID, got.DocumentID)

	// 其他普通用户不可见
	stranger := userSession()
	stranger.UserID = 99
	_, err = env.docs2.Get(ctx, stranger, doc.DocumentID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAccessDenied, errors.GetAppError(err).Code)

	// curator受知识库范围约束
	_, err = env.docs2.Get(ctx, curatorSession("cardiology"), doc.DocumentID)
	assert.NoError(t, err)
	_, err = env.docs2.Get(ctx, curatorSession("oncology"), doc.DocumentID)
	assert.Error(t, err)
}

func TestDocumentList_ScopedToAssignedKBs(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	_, err := env.docs2.Upload(ctx, userSession(), uploadReq("text"))
	require.NoError(t, err)

	// admin全量，范围内curator可见
	docs, total, err := env.docs2.List(ctx, adminSession(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, docs, 1)

	_, total, err = env.docs2.List(ctx, curatorSession("cardiology"), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// 没有任何分配的curator看到空列表，而不是全量
	docs, total, err = env.docs2.List(ctx, curatorSession(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, docs)

	_, _, err = env.docs2.List(ctx, userSession(), 1, 20)
	require.Error(t, err)
}

func TestDocumentDelete_AdminOnlyWithVectorCleanup(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()

	doc, err := env.docs2.Upload(ctx, userSession(), uploadReq("text"))
	require.NoError(t, err)

	err = env.docs2.Delete(ctx, curatorSession("cardiology"), doc.DocumentID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAccessDenied, errors.GetAppError(err).Code)

	err = env.docs2.Delete(ctx, adminSession(), doc.DocumentID)
	require.NoError(t, err)

	_, err = env.docs.GetByID(ctx, doc.DocumentID)
	assert.Error(t, err)
	assert.Contains(t, env.vectors.deleted, doc.DocumentID)
}

// TestFullCurationLifecycle 覆盖完整生命周期：上传 → 处理 → 逐块审核 →
// 提交 → 完成，并验证策展队列的软关联对账。
func TestFullCurationLifecycle(t *testing.T) {
	env := newDocumentEnv()
	ctx := context.Background()
	curator := curatorSession("cardiology")
	admin := adminSession()

	source := "https://example.org/hypertension"
	queueSvc := NewCurationQueueService(env.queue, env.kbs)
	item, err := queueSvc.Add(ctx, curator, AddRequest{
		KBID:  "cardiology",
		URL:   source,
		Title: "Hypertension guideline",
	})
	require.NoError(t, err)

	req := uploadReq("Clinical content to curate.")
	req.SourceURL = source
	doc, err := env.docs2.Upload(ctx, userSession(), req)
	require.NoError(t, err)

	env.provider.chunks = []gateway.RawChunk{
		{Index: 0, Text: "chunk one"},
		{Index: 1, Text: "chunk two"},
		{Index: 2, Text: "spam", Filtered: true, FilterReason: "marketing"},
	}
	require.NoError(t, env.docs2.Process(ctx, doc.DocumentID, []string{"marketing"}))

	queue, err := env.review.ReviewQueue(ctx, curator, doc.DocumentID)
	require.NoError(t, err)
	require.Len(t, queue, 2)

	_, err = env.review.Approve(ctx, curator, queue[0].ChunkID, "")
	require.NoError(t, err)
	_, err = env.review.Approve(ctx, curator, queue[1].ChunkID, "")
	require.NoError(t, err)

	require.NoError(t, env.workflow.Submit(ctx, curator, doc.DocumentID))
	require.NoError(t, env.workflow.Complete(ctx, admin, doc.DocumentID))

	final, _ := env.docs.GetByID(ctx, doc.DocumentID)
	assert.Equal(t, models.DocumentStatusCompleted, final.ProcessingStatus)
	assert.Equal(t, 2, final.ApprovedChunks)
	assert.Equal(t, 2, final.TotalChunks)
	assert.Equal(t, 1, final.FilteredChunks)

	// 队列条目随文档完成被对账
	reconciled, _ := env.queue.GetByID(ctx, item.ItemID)
	assert.Equal(t, models.QueueStatusCompleted, reconciled.Status)

	// 每个批准分块恰好一条向量记录
	records, _ := env.records.ListByDocument(ctx, doc.DocumentID)
	assert.Len(t, records, 2)
}
