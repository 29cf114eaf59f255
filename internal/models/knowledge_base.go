package models

import (
	"time"
)

// KnowledgeBase 知识库注册表。doc_type取值来自该表，由管理员维护，不是硬编码常量。
type KnowledgeBase struct {
	KBID        string    `gorm:"primaryKey;column:kb_id;size:50" json:"kb_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"column:is_active;default:true;not null" json:"is_active"`
	CreateTime  time.Time `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime  time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_base"
}

// 向量记录嵌入状态
const (
	EmbeddingStatusPending   = "pending"
	EmbeddingStatusCompleted = "completed"
	EmbeddingStatusFailed    = "failed"
)

// VectorRecord 知识库向量记录。分块批准时创建一次，内容为批准时刻的快照，
// 此后工作流不再修改（纠错通过重新上传与重新批准完成）。
type VectorRecord struct {
	RecordID        uint      `gorm:"primaryKey;column:record_id" json:"record_id"`
	ChunkID         uint      `gorm:"column:chunk_id;not null;uniqueIndex" json:"chunk_id"`
	DocumentID      uint      `gorm:"column:document_id;not null;index" json:"document_id"`
	KBID            string    `gorm:"column:kb_id;size:50;not null;index" json:"kb_id"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Metadata        string    `gorm:"type:jsonb" json:"-"`
	CuratorID       uint      `gorm:"column:curator_id;not null" json:"curator_id"`
	CuratorNotes    string    `gorm:"type:text;column:curator_notes" json:"curator_notes,omitempty"`
	EmbeddingStatus string    `gorm:"column:embedding_status;size:20;default:pending;not null" json:"embedding_status"`
	CreateTime      time.Time `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
}

func (VectorRecord) TableName() string {
	return "vector_record"
}

// 策展队列状态
const (
	QueueStatusPending    = "pending"
	QueueStatusInProgress = "in_progress"
	QueueStatusCompleted  = "completed"
)

// CurationQueueItem 策展队列条目。与Document之间通过(kb_id, url)软关联，
// 没有外键，孤儿条目是预期内的。
type CurationQueueItem struct {
	ItemID      uint       `gorm:"primaryKey;column:item_id" json:"item_id"`
	KBID        string     `gorm:"column:kb_id;size:50;not null;uniqueIndex:uniq_queue_source,priority:1" json:"kb_id"`
	URL         string     `gorm:"size:1000;not null;uniqueIndex:uniq_queue_source,priority:2" json:"url"`
	Title       string     `gorm:"size:300" json:"title"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	Status      string     `gorm:"size:20;default:pending;not null;index" json:"status"`
	AssignedTo  *uint      `gorm:"column:assigned_to" json:"assigned_to,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreateTime  time.Time  `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime  time.Time  `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

func (CurationQueueItem) TableName() string {
	return "curation_queue"
}
