// Package pipeline 实现了文档摄取的编排流程。
// 摄取是同步的：上传请求返回时文档要么已可检索，要么已失败，
// 不存在后台补索引的中间状态。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"

	"doc-theme-go/internal/chunker"
	"doc-theme-go/internal/model"
	"doc-theme-go/internal/repository"
	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/events"
	"doc-theme-go/pkg/kafka"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/storage"
	"doc-theme-go/pkg/token"
)

// UploadedFile 描述一份摄取成功的文档。
type UploadedFile struct {
	DocID    string `json:"doc_id"`
	FileName string `json:"filename"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
}

// Processor 接口定义了单份文档的摄取操作。
type Processor interface {
	// Ingest 摄取一份文档：分块、存原件、登记元数据、写入向量索引。
	// 返回错误表示该文档摄取失败，对同批其余文档没有影响。
	Ingest(ctx context.Context, fileName string, data []byte) (*UploadedFile, error)
}

type processor struct {
	chunker       chunker.Chunker
	vectorService service.VectorService
	documentRepo  repository.DocumentRepository
	bucketName    string
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(ck chunker.Chunker, vectorService service.VectorService, documentRepo repository.DocumentRepository, bucketName string) Processor {
	return &processor{
		chunker:       ck,
		vectorService: vectorService,
		documentRepo:  documentRepo,
		bucketName:    bucketName,
	}
}

// newDocID 在摄取边界生成文档 ID，下游各层把它当作不透明标识。
func newDocID() string {
	return "DOC_" + token.GenerateRandomString(4)
}

// Ingest 执行完整的摄取流程。
func (p *processor) Ingest(ctx context.Context, fileName string, data []byte) (*UploadedFile, error) {
	format := chunker.DetectFormat(fileName)
	if format == chunker.FormatUnsupported {
		return nil, fmt.Errorf("%w: %s", chunker.ErrUnsupportedFormat, fileName)
	}

	docID := newDocID()
	log.Infof("[Pipeline] 开始摄取文档, docID: %s, file: %s, format: %s", docID, fileName, format)

	// 步骤1: 保存原始文件。原件只作留档，保存失败不阻断摄取。
	if err := storage.PutOriginal(ctx, p.bucketName, docID, data, contentTypeOf(fileName)); err != nil {
		log.Warnf("[Pipeline] 保存原始文件失败, docID: %s, error: %v", docID, err)
	}

	// 步骤2: 分块提取。
	doc, err := p.chunker.Process(ctx, data, format, docID, fileName)
	if err != nil {
		return nil, err
	}
	if doc.ExtractError != "" || len(doc.Chunks) == 0 {
		// 提取失败也登记元数据，保留诊断信息供排查。
		p.recordIngest(doc, 0)
		if doc.ExtractError != "" {
			return nil, errors.New(doc.ExtractError)
		}
		return nil, fmt.Errorf("no extractable content in %s", fileName)
	}

	// 步骤3: 向量化并写入索引。
	indexed, err := p.vectorService.AddDocument(ctx, doc)
	if err != nil {
		log.Errorf("[Pipeline] 文档写入索引失败, docID: %s, error: %v", docID, err)
		// 回滚已写入的部分分块，避免半索引的文档参与检索。
		if _, cleanupErr := p.vectorService.DeleteDocument(ctx, docID); cleanupErr != nil {
			log.Warnf("[Pipeline] 清理部分索引失败, docID: %s, error: %v", docID, cleanupErr)
		}
		return nil, fmt.Errorf("failed to add to vector database: %w", err)
	}

	// 步骤4: 登记文档元数据。
	p.recordIngest(doc, indexed)

	kafka.PublishDocumentEvent(events.DocumentEvent{
		Type:       events.DocumentIngested,
		DocID:      docID,
		FileName:   fileName,
		ChunkCount: indexed,
	})

	log.Infof("[Pipeline] 文档摄取完成, docID: %s, pages: %d, chunks: %d", docID, doc.TotalPages, indexed)
	return &UploadedFile{
		DocID:    docID,
		FileName: fileName,
		Pages:    doc.TotalPages,
		Chunks:   indexed,
	}, nil
}

// recordIngest 登记摄取结果，元数据写入失败只记日志。
func (p *processor) recordIngest(doc *model.Document, chunkCount int) {
	record := &model.DocumentRecord{
		DocID:        doc.DocID,
		FileName:     doc.FileName,
		TotalPages:   doc.TotalPages,
		ChunkCount:   chunkCount,
		ExtractError: doc.ExtractError,
	}
	if err := p.documentRepo.Create(record); err != nil {
		log.Errorf("[Pipeline] 登记文档元数据失败, docID: %s, error: %v", doc.DocID, err)
	}
}

// contentTypeOf 按扩展名推断内容类型。
func contentTypeOf(fileName string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(fileName)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
