// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"doc-theme-go/internal/pipeline"
	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// FailedFile 描述一份摄取失败的文档及原因。
type FailedFile struct {
	FileName string `json:"filename"`
	Error    string `json:"error"`
}

// UploadHandler 结构体定义了文档上传相关的处理器。
type UploadHandler struct {
	processor     pipeline.Processor
	vectorService service.VectorService
	maxFileSize   int64
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(processor pipeline.Processor, vectorService service.VectorService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		processor:     processor,
		vectorService: vectorService,
		maxFileSize:   maxFileSize,
	}
}

// Upload 处理多文件上传请求。
// 批内各文件互相独立：逐个摄取，失败的文件带原因返回，不影响其余文件。
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		log.Warnf("[UploadHandler] 解析 multipart 表单失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	log.Infof("[UploadHandler] 收到上传请求, files: %d", len(files))

	uploaded := make([]pipeline.UploadedFile, 0, len(files))
	failed := make([]FailedFile, 0)

	for _, fileHeader := range files {
		if fileHeader.Size > h.maxFileSize {
			failed = append(failed, FailedFile{
				FileName: fileHeader.Filename,
				Error:    fmt.Sprintf("file exceeds size limit of %d bytes", h.maxFileSize),
			})
			continue
		}

		data, err := readMultipartFile(fileHeader)
		if err != nil {
			failed = append(failed, FailedFile{FileName: fileHeader.Filename, Error: err.Error()})
			continue
		}

		result, err := h.processor.Ingest(c.Request.Context(), fileHeader.Filename, data)
		if err != nil {
			log.Warnf("[UploadHandler] 文件摄取失败, file: %s, error: %v", fileHeader.Filename, err)
			failed = append(failed, FailedFile{FileName: fileHeader.Filename, Error: err.Error()})
			continue
		}
		uploaded = append(uploaded, *result)
	}

	totalDocuments, err := h.vectorService.CountDocuments(c.Request.Context())
	if err != nil {
		log.Warnf("[UploadHandler] 统计文档总数失败: %v", err)
	}

	log.Infof("[UploadHandler] 上传处理完成, uploaded: %d, failed: %d", len(uploaded), len(failed))
	c.JSON(http.StatusOK, gin.H{
		"uploaded":        uploaded,
		"failed":          failed,
		"total_documents": totalDocuments,
	})
}

// readMultipartFile 打开并完整读取一个上传文件。
func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
