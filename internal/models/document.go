package models

import (
	"time"
)

// 文档处理状态
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReview     = "review"
	DocumentStatusSubmitted  = "submitted"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// 分块审核状态
const (
	ChunkStatusPending   = "pending"
	ChunkStatusApproved  = "approved"
	ChunkStatusRejected  = "rejected"
	ChunkStatusFiltered  = "filtered"
	ChunkStatusEnriching = "enriching"
	ChunkStatusDraft     = "draft"
)

// Document 待审核文档表
type Document struct {
	DocumentID          uint       `gorm:"primaryKey;column:document_id" json:"document_id"`
	DocType             string     `gorm:"column:doc_type;size:50;not null;index;uniqueIndex:uniq_doc_source,priority:1" json:"doc_type"`
	Title               string     `gorm:"size:300;not null" json:"title"`
	SourceURL           *string    `gorm:"column:source_url;size:1000;uniqueIndex:uniq_doc_source,priority:2" json:"source_url,omitempty"`
	FileName            string     `gorm:"column:file_name;size:300" json:"file_name"`
	FilePath            string     `gorm:"column:file_path;size:500" json:"file_path"`
	FileSize            int64      `gorm:"column:file_size;default:0" json:"file_size"`
	ProcessingStatus    string     `gorm:"column:processing_status;size:20;default:pending;not null;index" json:"processing_status"`
	TotalChunks         int        `gorm:"column:total_chunks;default:0;not null" json:"total_chunks"`
	ApprovedChunks      int        `gorm:"column:approved_chunks;default:0;not null" json:"approved_chunks"`
	RejectedChunks      int        `gorm:"column:rejected_chunks;default:0;not null" json:"rejected_chunks"`
	FilteredChunks      int        `gorm:"column:filtered_chunks;default:0;not null" json:"filtered_chunks"`
	ErrorMessage        string     `gorm:"type:text;column:error_message" json:"error_message,omitempty"`
	RequestedFilters    string     `gorm:"type:text;column:requested_filters" json:"requested_filters,omitempty"` // JSON数组
	UploadedBy          uint       `gorm:"column:uploaded_by;not null;index" json:"uploaded_by"`
	ProcessingStartedAt *time.Time `gorm:"column:processing_started_at" json:"processing_started_at,omitempty"`
	CreateTime          time.Time  `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime          time.Time  `gorm:"column:update_time;autoUpdateTime" json:"update_time"`

	Chunks []DocumentChunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Document) TableName() string {
	return "document"
}

// IsTerminalChunkStatus 判断分块是否处于终态（不再阻塞文档提交）
func IsTerminalChunkStatus(status string) bool {
	switch status {
	case ChunkStatusApproved, ChunkStatusRejected, ChunkStatusFiltered:
		return true
	}
	return false
}

// DocumentChunk 文档分块表
type DocumentChunk struct {
	ChunkID           uint       `gorm:"primaryKey;column:chunk_id" json:"chunk_id"`
	DocumentID        uint       `gorm:"column:document_id;not null;index" json:"document_id"`
	ChunkIndex        int        `gorm:"column:chunk_index;not null" json:"chunk_index"`
	ChunkText         string     `gorm:"type:text;column:chunk_text;not null" json:"chunk_text"`
	IsFiltered        bool       `gorm:"column:is_filtered;default:false;not null" json:"is_filtered"`
	FilterReason      string     `gorm:"column:filter_reason;size:200" json:"filter_reason,omitempty"`
	ReviewStatus      string     `gorm:"column:review_status;size:20;default:pending;not null;index" json:"review_status"`
	AIMetadata        string     `gorm:"type:jsonb;column:ai_metadata" json:"-"`
	ConfidenceScore   float64    `gorm:"column:confidence_score;default:0" json:"confidence_score"`
	CuratorNotes      string     `gorm:"type:text;column:curator_notes" json:"curator_notes,omitempty"`
	ReviewedBy        *uint      `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	EnrichStartedAt   *time.Time `gorm:"column:enrich_started_at" json:"-"`
	MetadataUpdatedAt *time.Time `gorm:"column:metadata_updated_at" json:"metadata_updated_at,omitempty"`
	CreateTime        time.Time  `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime        time.Time  `gorm:"column:update_time;autoUpdateTime" json:"update_time"`

	Document Document `gorm:"foreignKey:DocumentID" json:"-"`
}

func (DocumentChunk) TableName() string {
	return "document_chunk"
}

// Metadata 反序列化ai_metadata字段，字段为空时返回零值结构
func (c *DocumentChunk) Metadata() ChunkMetadata {
	return ParseChunkMetadata(c.AIMetadata)
}
