package models

import (
	"encoding/json"
)

// ChunkMetadata 分块的AI富化元数据。
// 字段为可选，未富化时整体为空；Extra承载提供方返回的未建模字段。
type ChunkMetadata struct {
	Topic          string                 `json:"topic,omitempty"`
	Subtopic       string                 `json:"subtopic,omitempty"`
	RelevanceScore *float64               `json:"relevance_score,omitempty"`
	UseCases       []string               `json:"use_cases,omitempty"`
	KeyConcepts    []string               `json:"key_concepts,omitempty"`
	Confidence     *float64               `json:"confidence,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// IsZero 判断元数据是否为空
func (m ChunkMetadata) IsZero() bool {
	return m.Topic == "" && m.Subtopic == "" && m.RelevanceScore == nil &&
		len(m.UseCases) == 0 && len(m.KeyConcepts) == 0 && m.Confidence == nil &&
		len(m.Extra) == 0
}

// Merge 合并新元数据：非零标量字段覆盖旧值，非空切片覆盖旧值，
// Extra按键取并集且新值优先。返回合并结果，不修改接收者。
func (m ChunkMetadata) Merge(incoming ChunkMetadata) ChunkMetadata {
	merged := m

	if incoming.Topic != "" {
		merged.Topic = incoming.Topic
	}
	if incoming.Subtopic != "" {
		merged.Subtopic = incoming.Subtopic
	}
	if incoming.RelevanceScore != nil {
		merged.RelevanceScore = incoming.RelevanceScore
	}
	if len(incoming.UseCases) > 0 {
		merged.UseCases = incoming.UseCases
	}
	if len(incoming.KeyConcepts) > 0 {
		merged.KeyConcepts = incoming.KeyConcepts
	}
	if incoming.Confidence != nil {
		merged.Confidence = incoming.Confidence
	}

	if len(incoming.Extra) > 0 {
		union := make(map[string]interface{}, len(m.Extra)+len(incoming.Extra))
		for k, v := range m.Extra {
			union[k] = v
		}
		for k, v := range incoming.Extra {
			union[k] = v
		}
		merged.Extra = union
	}

	return merged
}

// DeriveConfidence 推导置信分：优先显式confidence，其次relevance_score，
// 两者都缺失时使用传入的默认值。
func (m ChunkMetadata) DeriveConfidence(fallback float64) float64 {
	if m.Confidence != nil {
		return *m.Confidence
	}
	if m.RelevanceScore != nil {
		return *m.RelevanceScore
	}
	return fallback
}

// ToJSON 序列化为JSON字符串，空元数据序列化为空串
func (m ChunkMetadata) ToJSON() string {
	if m.IsZero() {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseChunkMetadata 反序列化元数据，非法或空输入返回零值
func ParseChunkMetadata(raw string) ChunkMetadata {
	var m ChunkMetadata
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

// Float64Ptr 构造float64指针，便于填充可选分数字段
func Float64Ptr(v float64) *float64 {
	return &v
}
