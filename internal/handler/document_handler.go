package handler

import (
	"errors"
	"fmt"
	"net/http"

	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 结构体定义了文档管理相关的处理器。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// List 返回所有已摄取文档的元数据。
func (h *DocumentHandler) List(c *gin.Context) {
	records, err := h.documentService.List(c.Request.Context())
	if err != nil {
		log.Errorf("[DocumentHandler] 获取文档列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	documents := make([]gin.H, 0, len(records))
	for _, record := range records {
		documents = append(documents, gin.H{
			"doc_id":   record.DocID,
			"filename": record.FileName,
			"pages":    record.TotalPages,
			"chunks":   record.ChunkCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"documents":   documents,
		"total_count": len(documents),
	})
}

// Delete 删除单个文档。
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("docId")

	deleted, err := h.documentService.Delete(c.Request.Context(), docID)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("document %s not found", docID)})
			return
		}
		log.Errorf("[DocumentHandler] 删除文档失败, docID: %s, error: %v", docID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        fmt.Sprintf("Document %s deleted", docID),
		"deleted_chunks": deleted,
	})
}

// Clear 清空全部文档。
func (h *DocumentHandler) Clear(c *gin.Context) {
	if err := h.documentService.Clear(c.Request.Context()); err != nil {
		log.Errorf("[DocumentHandler] 清空文档失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All documents cleared",
	})
}

// Health 处理健康检查请求。
func (h *DocumentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.documentService.Health(c.Request.Context()))
}
