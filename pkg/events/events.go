// Package events 定义了发往 Kafka 的文档生命周期事件结构。
package events

import "time"

// 文档生命周期事件类型。
const (
	DocumentIngested = "document_ingested"
	DocumentDeleted  = "document_deleted"
	DocumentsCleared = "documents_cleared"
)

// DocumentEvent 描述一次文档生命周期变更，供下游系统订阅。
type DocumentEvent struct {
	Type       string    `json:"type"`
	DocID      string    `json:"doc_id,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
