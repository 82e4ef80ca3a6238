// Package model 包含了应用的数据模型定义。
package model

// Chunk 是最小的可引用文本单元：某一页上的一个段落。
// (doc_id, page, paragraph) 三元组唯一标识一个分块；分块创建后不可变，
// 只随所属文档整体删除。
type Chunk struct {
	Page      int    `json:"page"`      // 1 起始；无页概念的格式恒为 1
	Paragraph int    `json:"paragraph"` // 1 起始；PDF/图片按页重置，其余全文递增
	Text      string `json:"text"`
	Citation  string `json:"citation"` // 例如 "Page 2, Para 3" 或 "Para 3"
}

// Document 是一次摄取产生的全部可引用分块。
// 提取失败时 Chunks 为空且 ExtractError 记录诊断信息，由调用方决定
// 是否按局部失败处理，不向摄取边界外抛出。
type Document struct {
	DocID        string  `json:"doc_id"`
	FileName     string  `json:"filename"`
	TotalPages   int     `json:"total_pages"`
	Chunks       []Chunk `json:"chunks"`
	ExtractError string  `json:"error,omitempty"`
}

// EsChunk 定义了存储在 Elasticsearch 中的分块文档结构。
// 文档 ID 为稳定组合键 "{docId}_{page}_{paragraph}"。
type EsChunk struct {
	ChunkKey     string    `json:"chunk_key"`
	DocID        string    `json:"doc_id"`
	Page         int       `json:"page"`
	Paragraph    int       `json:"paragraph"`
	Citation     string    `json:"citation"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// SearchHit 是单次查询中某个分块的命中投影，附带相关性得分。
// 仅在查询流程内部流转，从不落盘。
type SearchHit struct {
	DocID       string  `json:"doc_id"`
	Page        int     `json:"page"`
	Paragraph   int     `json:"paragraph"`
	Citation    string  `json:"citation"`
	TextContent string  `json:"text"`
	Score       float64 `json:"relevance_score"`
}
