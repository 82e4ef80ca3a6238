// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DocumentRecord 对应于数据库中的 document_records 表。
// 它是 doc_id 到上传元数据的显式存储：随服务启动创建，仅由摄取/删除
// 操作修改，避免把文档注册表藏在进程内存里。
type DocumentRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocID        string    `gorm:"type:varchar(64);not null;uniqueIndex;column:doc_id" json:"doc_id"`
	FileName     string    `gorm:"type:varchar(255);not null;column:file_name" json:"filename"`
	TotalPages   int       `gorm:"not null;default:1;column:total_pages" json:"pages"`
	ChunkCount   int       `gorm:"not null;default:0;column:chunk_count" json:"chunks"`
	ExtractError string    `gorm:"type:text;column:extract_error" json:"extract_error,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentRecord) TableName() string {
	return "document_records"
}
