package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"doc-theme-go/internal/model"
	"doc-theme-go/internal/repository"
	"doc-theme-go/pkg/events"
	"doc-theme-go/pkg/kafka"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/storage"
)

// ErrDocumentNotFound 表示要操作的文档不存在。
var ErrDocumentNotFound = repository.ErrDocumentNotFound

// llmProbeTTL 探活结果的缓存时长，避免高频健康轮询放大生成调用。
const llmProbeTTL = 30 * time.Second

// HealthStatus 是健康检查的结果。
type HealthStatus struct {
	Status         string `json:"status"`
	DocumentsCount int    `json:"documents_count"`
	LLMConfigured  bool   `json:"llm_configured"`
}

// DocumentService 接口定义了文档管理操作。
type DocumentService interface {
	// List 返回所有已摄取文档的元数据。
	List(ctx context.Context) ([]model.DocumentRecord, error)
	// Delete 删除单个文档：索引分块、元数据记录与存储的原始文件。
	Delete(ctx context.Context, docID string) (int64, error)
	// Clear 清空全部文档并重置索引。
	Clear(ctx context.Context) error
	// Health 报告文档数量并探活生成能力。
	Health(ctx context.Context) HealthStatus
}

type documentService struct {
	vectorService VectorService
	documentRepo  repository.DocumentRepository
	llmClient     llm.Client
	bucketName    string

	probeMu sync.Mutex
	probeAt time.Time
	probeOK bool
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(vectorService VectorService, documentRepo repository.DocumentRepository, llmClient llm.Client, bucketName string) DocumentService {
	return &documentService{
		vectorService: vectorService,
		documentRepo:  documentRepo,
		llmClient:     llmClient,
		bucketName:    bucketName,
	}
}

// List 返回所有已摄取文档的元数据。
func (s *documentService) List(ctx context.Context) ([]model.DocumentRecord, error) {
	return s.documentRepo.FindAll()
}

// Delete 删除单个文档，返回删除的分块数。
// 索引与元数据必须一致删除；原始文件删除失败只记日志。
func (s *documentService) Delete(ctx context.Context, docID string) (int64, error) {
	record, err := s.documentRepo.FindByDocID(docID)
	if err != nil {
		return 0, err
	}

	deleted, err := s.vectorService.DeleteDocument(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document from index: %w", err)
	}

	if err := s.documentRepo.DeleteByDocID(docID); err != nil && !errors.Is(err, repository.ErrDocumentNotFound) {
		return deleted, fmt.Errorf("failed to delete document record: %w", err)
	}

	if err := storage.RemoveOriginal(ctx, s.bucketName, docID); err != nil {
		log.Warnf("[DocumentService] 删除原始文件失败, docID: %s, error: %v", docID, err)
	}

	kafka.PublishDocumentEvent(events.DocumentEvent{
		Type:     events.DocumentDeleted,
		DocID:    docID,
		FileName: record.FileName,
	})

	log.Infof("[DocumentService] 文档已删除, docID: %s, chunks: %d", docID, deleted)
	return deleted, nil
}

// Clear 清空全部文档并重置索引。
func (s *documentService) Clear(ctx context.Context) error {
	records, err := s.documentRepo.FindAll()
	if err != nil {
		return fmt.Errorf("failed to list document records: %w", err)
	}

	if err := s.vectorService.Reset(ctx); err != nil {
		return err
	}
	if err := s.documentRepo.DeleteAll(); err != nil {
		return fmt.Errorf("failed to clear document records: %w", err)
	}

	for _, record := range records {
		if err := storage.RemoveOriginal(ctx, s.bucketName, record.DocID); err != nil {
			log.Warnf("[DocumentService] 删除原始文件失败, docID: %s, error: %v", record.DocID, err)
		}
	}

	kafka.PublishDocumentEvent(events.DocumentEvent{Type: events.DocumentsCleared})

	log.Infof("[DocumentService] 已清空全部文档, count: %d", len(records))
	return nil
}

// Health 报告文档数量并用一次最小补全探活生成能力。
func (s *documentService) Health(ctx context.Context) HealthStatus {
	count, err := s.documentRepo.Count()
	if err != nil {
		log.Warnf("[DocumentService] 健康检查统计文档数失败: %v", err)
		count = 0
	}

	return HealthStatus{
		Status:         "healthy",
		DocumentsCount: int(count),
		LLMConfigured:  s.probeLLM(ctx),
	}
}

// probeLLM 探活生成能力，结果在 llmProbeTTL 内复用。
func (s *documentService) probeLLM(ctx context.Context) bool {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	if !s.probeAt.IsZero() && time.Since(s.probeAt) < llmProbeTTL {
		return s.probeOK
	}

	ok := false
	if response, err := s.llmClient.Complete(ctx, "Say hello"); err == nil && response != "" {
		ok = true
	} else if err != nil {
		log.Warnf("[DocumentService] 生成能力探活失败: %v", err)
	}

	s.probeAt = time.Now()
	s.probeOK = ok
	return ok
}
