package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aihub/curation-go/internal/auth"
	"github.com/aihub/curation-go/internal/gateway"
	"github.com/aihub/curation-go/internal/knowledge"
	"github.com/aihub/curation-go/internal/models"
)

// 服务层测试使用内存仓库替身，行为对齐gorm实现的语义。

func curatorSession(kbs ...string) *auth.Session {
	return &auth.Session{UserID: 2, Username: "curator", Role: models.RoleCurator, IsActive: true, AssignedKBs: kbs}
}

func adminSession() *auth.Session {
	return &auth.Session{UserID: 1, Username: "admin", Role: models.RoleAdmin, IsActive: true}
}

func userSession() *auth.Session {
	return &auth.Session{UserID: 3, Username: "user", Role: models.RoleUser, IsActive: true}
}

// fakeDocumentRepo 文档仓库内存替身
type fakeDocumentRepo struct {
	mu     sync.Mutex
	nextID uint
	docs   map[uint]*models.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{nextID: 1, docs: make(map[uint]*models.Document)}
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.DocumentID = r.nextID
	r.nextID++
	copied := *doc
	r.docs[doc.DocumentID] = &copied
	return nil
}

func (r *fakeDocumentRepo) GetByID(ctx context.Context, docID uint) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %d not found", docID)
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentRepo) ExistsBySource(ctx context.Context, docType, sourceURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.DocType == docType && doc.SourceURL != nil && *doc.SourceURL == sourceURL {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDocumentRepo) ListByDocTypes(ctx context.Context, docTypes []string, page, limit int) ([]models.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Document
	for _, doc := range r.docs {
		if len(docTypes) > 0 {
			found := false
			for _, dt := range docTypes {
				if doc.DocType == dt {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		result = append(result, *doc)
	}
	return result, int64(len(result)), nil
}

func (r *fakeDocumentRepo) UpdateFields(ctx context.Context, docID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return fmt.Errorf("document %d not found", docID)
	}
	for k, v := range updates {
		switch k {
		case "processing_status":
			doc.ProcessingStatus = v.(string)
		case "total_chunks":
			doc.TotalChunks = v.(int)
		case "filtered_chunks":
			doc.FilteredChunks = v.(int)
		case "error_message":
			doc.ErrorMessage = v.(string)
		case "requested_filters":
			doc.RequestedFilters = v.(string)
		case "processing_started_at":
			if ts, ok := v.(*time.Time); ok {
				doc.ProcessingStartedAt = ts
			}
		}
	}
	return nil
}

func (r *fakeDocumentRepo) IncrementCounter(ctx context.Context, docID uint, column string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[docID]
	if !ok {
		return fmt.Errorf("document %d not found", docID)
	}
	switch column {
	case "approved_chunks":
		doc.ApprovedChunks++
	case "rejected_chunks":
		doc.RejectedChunks++
	default:
		return fmt.Errorf("counter column not allowed: %s", column)
	}
	return nil
}

func (r *fakeDocumentRepo) Delete(ctx context.Context, docID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, docID)
	return nil
}

// fakeChunkRepo 分块仓库内存替身。CompareAndSetStatus模拟
// UPDATE ... WHERE review_status = from 的单次生效语义。
type fakeChunkRepo struct {
	mu     sync.Mutex
	nextID uint
	chunks map[uint]*models.DocumentChunk
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{nextID: 1, chunks: make(map[uint]*models.DocumentChunk)}
}

func (r *fakeChunkRepo) ReplaceBatch(ctx context.Context, docID uint, chunks []models.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, chunk := range r.chunks {
		if chunk.DocumentID == docID {
			delete(r.chunks, id)
		}
	}
	for i := range chunks {
		chunks[i].ChunkID = r.nextID
		r.nextID++
		copied := chunks[i]
		r.chunks[copied.ChunkID] = &copied
	}
	return nil
}

func (r *fakeChunkRepo) GetByID(ctx context.Context, chunkID uint) (*models.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.chunks[chunkID]
	if !ok {
		return nil, fmt.Errorf("chunk %d not found", chunkID)
	}
	copied := *chunk
	return &copied, nil
}

func (r *fakeChunkRepo) ListByDocument(ctx context.Context, docID uint) ([]models.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.DocumentChunk
	for _, chunk := range r.chunks {
		if chunk.DocumentID == docID {
			result = append(result, *chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChunkIndex < result[j].ChunkIndex })
	return result, nil
}

func (r *fakeChunkRepo) ListReviewQueue(ctx context.Context, docID uint) ([]models.DocumentChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.DocumentChunk
	for _, chunk := range r.chunks {
		if chunk.DocumentID == docID && chunk.ReviewStatus == models.ChunkStatusPending {
			result = append(result, *chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ConfidenceScore != result[j].ConfidenceScore {
			return result[i].ConfidenceScore < result[j].ConfidenceScore
		}
		return result[i].ChunkIndex < result[j].ChunkIndex
	})
	return result, nil
}

func (r *fakeChunkRepo) CountByStatuses(ctx context.Context, docID uint, statuses []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, chunk := range r.chunks {
		if chunk.DocumentID != docID {
			continue
		}
		for _, status := range statuses {
			if chunk.ReviewStatus == status {
				count++
				break
			}
		}
	}
	return count, nil
}

func applyChunkUpdates(chunk *models.DocumentChunk, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "review_status":
			chunk.ReviewStatus = v.(string)
		case "curator_notes":
			chunk.CuratorNotes = v.(string)
		case "ai_metadata":
			chunk.AIMetadata = v.(string)
		case "confidence_score":
			chunk.ConfidenceScore = v.(float64)
		case "reviewed_by":
			id := v.(uint)
			chunk.ReviewedBy = &id
		case "reviewed_at":
			chunk.ReviewedAt = v.(*time.Time)
		case "metadata_updated_at":
			chunk.MetadataUpdatedAt = v.(*time.Time)
		case "enrich_started_at":
			if ts, ok := v.(*time.Time); ok {
				chunk.EnrichStartedAt = ts
			} else {
				chunk.EnrichStartedAt = nil
			}
		}
	}
}

func (r *fakeChunkRepo) UpdateFields(ctx context.Context, chunkID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.chunks[chunkID]
	if !ok {
		return fmt.Errorf("chunk %d not found", chunkID)
	}
	applyChunkUpdates(chunk, updates)
	return nil
}

func (r *fakeChunkRepo) CompareAndSetStatus(ctx context.Context, chunkID uint, from, to string, extra map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.chunks[chunkID]
	if !ok {
		return false, nil
	}
	if chunk.ReviewStatus != from {
		return false, nil
	}
	chunk.ReviewStatus = to
	applyChunkUpdates(chunk, extra)
	return true, nil
}

func (r *fakeChunkRepo) ReclaimStuckEnriching(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reclaimed int64
	for _, chunk := range r.chunks {
		if chunk.ReviewStatus == models.ChunkStatusEnriching &&
			chunk.EnrichStartedAt != nil && chunk.EnrichStartedAt.Before(olderThan) {
			chunk.ReviewStatus = models.ChunkStatusPending
			chunk.EnrichStartedAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

// fakeRecordRepo 向量记录仓库内存替身
type fakeRecordRepo struct {
	mu      sync.Mutex
	nextID  uint
	records []*models.VectorRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{nextID: 1}
}

func (r *fakeRecordRepo) Create(ctx context.Context, record *models.VectorRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.RecordID = r.nextID
	r.nextID++
	copied := *record
	r.records = append(r.records, &copied)
	return nil
}

func (r *fakeRecordRepo) ExistsByChunk(ctx context.Context, chunkID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.ChunkID == chunkID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRecordRepo) UpdateEmbeddingStatus(ctx context.Context, recordID uint, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.RecordID == recordID {
			record.EmbeddingStatus = status
			return nil
		}
	}
	return fmt.Errorf("record %d not found", recordID)
}

func (r *fakeRecordRepo) ListByDocument(ctx context.Context, docID uint) ([]models.VectorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.VectorRecord
	for _, record := range r.records {
		if record.DocumentID == docID {
			result = append(result, *record)
		}
	}
	return result, nil
}

// fakeQueueRepo 策展队列仓库内存替身
type fakeQueueRepo struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*models.CurationQueueItem
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{nextID: 1, items: make(map[uint]*models.CurationQueueItem)}
}

func (r *fakeQueueRepo) Create(ctx context.Context, item *models.CurationQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ItemID = r.nextID
	r.nextID++
	copied := *item
	r.items[item.ItemID] = &copied
	return nil
}

func (r *fakeQueueRepo) GetByID(ctx context.Context, itemID uint) (*models.CurationQueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return nil, fmt.Errorf("queue item %d not found", itemID)
	}
	copied := *item
	return &copied, nil
}

func (r *fakeQueueRepo) ExistsBySource(ctx context.Context, kbID, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.KBID == kbID && item.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeQueueRepo) ListByKBs(ctx context.Context, kbIDs []string, status string, page, limit int) ([]models.CurationQueueItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.CurationQueueItem
	for _, item := range r.items {
		if status != "" && item.Status != status {
			continue
		}
		if len(kbIDs) > 0 {
			found := false
			for _, kb := range kbIDs {
				if item.KBID == kb {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		result = append(result, *item)
	}
	return result, int64(len(result)), nil
}

func (r *fakeQueueRepo) UpdateFields(ctx context.Context, itemID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return fmt.Errorf("queue item %d not found", itemID)
	}
	for k, v := range updates {
		switch k {
		case "status":
			item.Status = v.(string)
		case "assigned_to":
			id := v.(uint)
			item.AssignedTo = &id
		case "completed_at":
			item.CompletedAt = v.(*time.Time)
		}
	}
	return nil
}

func (r *fakeQueueRepo) CompleteMatching(ctx context.Context, kbID, url string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	now := time.Now()
	for _, item := range r.items {
		if item.KBID == kbID && item.URL == url && item.Status != models.QueueStatusCompleted {
			item.Status = models.QueueStatusCompleted
			item.CompletedAt = &now
			affected++
		}
	}
	return affected, nil
}

// fakeKBRepo 知识库注册表内存替身
type fakeKBRepo struct {
	mu  sync.Mutex
	kbs map[string]*models.KnowledgeBase
}

func newFakeKBRepo(kbs ...models.KnowledgeBase) *fakeKBRepo {
	repo := &fakeKBRepo{kbs: make(map[string]*models.KnowledgeBase)}
	for i := range kbs {
		copied := kbs[i]
		repo.kbs[copied.KBID] = &copied
	}
	return repo
}

func (r *fakeKBRepo) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *kb
	r.kbs[kb.KBID] = &copied
	return nil
}

func (r *fakeKBRepo) GetByID(ctx context.Context, kbID string) (*models.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kb, ok := r.kbs[kbID]
	if !ok {
		return nil, fmt.Errorf("knowledge base %s not found", kbID)
	}
	copied := *kb
	return &copied, nil
}

func (r *fakeKBRepo) List(ctx context.Context, includeInactive bool) ([]models.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.KnowledgeBase
	for _, kb := range r.kbs {
		if !includeInactive && !kb.IsActive {
			continue
		}
		result = append(result, *kb)
	}
	return result, nil
}

func (r *fakeKBRepo) Update(ctx context.Context, kbID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kb, ok := r.kbs[kbID]
	if !ok {
		return fmt.Errorf("knowledge base %s not found", kbID)
	}
	for k, v := range updates {
		switch k {
		case "name":
			kb.Name = v.(string)
		case "description":
			kb.Description = v.(string)
		case "is_active":
			kb.IsActive = v.(bool)
		}
	}
	return nil
}

func (r *fakeKBRepo) Delete(ctx context.Context, kbID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.kbs, kbID)
	return nil
}

// fakeUserRepo 用户仓库内存替身
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.UserProfile
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[uint]*models.UserProfile)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.UserID = r.nextID
	r.nextID++
	copied := *user
	r.users[user.UserID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, userID uint) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d not found", userID)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", username)
}

func (r *fakeUserRepo) List(ctx context.Context, page, limit int) ([]models.UserProfile, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.UserProfile
	for _, user := range r.users {
		result = append(result, *user)
	}
	return result, int64(len(result)), nil
}

func (r *fakeUserRepo) UpdateFields(ctx context.Context, userID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	for k, v := range updates {
		switch k {
		case "role":
			user.Role = v.(string)
		case "is_active":
			user.IsActive = v.(bool)
		case "assigned_kbs":
			user.AssignedKBs = v.(string)
		}
	}
	return nil
}

// testProvider 可编程的分块/富化提供方
type testProvider struct {
	chunks    []gateway.RawChunk
	chunkErr  error
	metadata  models.ChunkMetadata
	enrichErr error
	enriches  int
}

func (p *testProvider) Name() string { return "test" }

func (p *testProvider) Chunk(ctx context.Context, req gateway.ChunkRequest) ([]gateway.RawChunk, error) {
	return p.chunks, p.chunkErr
}

func (p *testProvider) Enrich(ctx context.Context, chunkText, docType string) (models.ChunkMetadata, error) {
	p.enriches++
	return p.metadata, p.enrichErr
}

// fakeObjectStore 对象存储内存替身
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) Upload(ctx context.Context, docType, filename string, reader io.Reader, size int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.uploads++
	name := fmt.Sprintf("%s/object-%d-%s", docType, s.uploads, filename)
	s.objects[name] = data
	return name, nil
}

func (s *fakeObjectStore) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fakeEmbedder 固定向量的嵌入替身
type fakeEmbedder struct {
	fail bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, fmt.Errorf("embedding provider unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) Dimensions() int { return 3 }
func (e *fakeEmbedder) Ready() bool     { return true }

// fakeVectorStore 记录写入的向量库替身
type fakeVectorStore struct {
	mu      sync.Mutex
	entries []knowledge.VectorEntry
	deleted []uint
}

func (s *fakeVectorStore) UpsertEntry(ctx context.Context, entry knowledge.VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeVectorStore) DeleteDocument(ctx context.Context, kbID string, documentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, documentID)
	return nil
}

func (s *fakeVectorStore) Ready() bool { return true }
