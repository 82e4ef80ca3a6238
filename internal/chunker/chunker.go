// Package chunker 将原始文档分解为有序的可引用文本分块。
package chunker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/ocr"
)

// ErrUnsupportedFormat 表示摄取了不支持的文件类型，对该次摄取是致命的。
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format 是支持的文档格式的封闭枚举。
// 新增格式时必须同时扩展 DetectFormat 与 Process 的分派，编译期即可发现遗漏。
type Format int

const (
	FormatUnsupported Format = iota
	FormatPDF
	FormatImage
	FormatDocx
	FormatText
)

// String 返回格式的可读名称。
func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatImage:
		return "image"
	case FormatDocx:
		return "docx"
	case FormatText:
		return "text"
	default:
		return "unsupported"
	}
}

// DetectFormat 根据文件扩展名判断文档格式。
func DetectFormat(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".png", ".jpg", ".jpeg", ".tiff", ".bmp":
		return FormatImage
	case ".docx":
		return FormatDocx
	case ".txt":
		return FormatText
	default:
		return FormatUnsupported
	}
}

// Chunker 定义了文档分块器的接口。
type Chunker interface {
	// Process 把原始字节按格式解析为有序分块序列。
	// 不支持的格式返回 ErrUnsupportedFormat；其余任何提取失败（文件损坏、
	// OCR 出错、解码失败）都产出零分块的 Document 并在 ExtractError 中记录
	// 诊断信息，不向摄取边界外抛出。
	Process(ctx context.Context, data []byte, format Format, docID, fileName string) (*model.Document, error)
}

type chunker struct {
	ocrClient ocr.Client
	// scannedThreshold PDF 页面原生文本少于该字符数时判定为扫描页。
	scannedThreshold int
}

// New 创建一个新的 Chunker 实例。
func New(ocrClient ocr.Client, scannedThreshold int) Chunker {
	return &chunker{
		ocrClient:        ocrClient,
		scannedThreshold: scannedThreshold,
	}
}

// Process 按格式分派到具体的提取实现。
func (c *chunker) Process(ctx context.Context, data []byte, format Format, docID, fileName string) (*model.Document, error) {
	log.Infof("[Chunker] 开始处理文档, docID: %s, format: %s, size: %d", docID, format, len(data))

	switch format {
	case FormatPDF:
		return c.processPDF(ctx, data, docID, fileName), nil
	case FormatImage:
		return c.processImage(ctx, data, docID, fileName), nil
	case FormatDocx:
		return c.processDocx(data, docID, fileName), nil
	case FormatText:
		return c.processText(data, docID, fileName), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}
}

// processText 处理纯文本：按空行切分段落并全文顺序编号。
func (c *chunker) processText(data []byte, docID, fileName string) *model.Document {
	doc := &model.Document{DocID: docID, FileName: fileName, TotalPages: 1}

	paragraphs := splitParagraphs(string(data))
	for i, para := range paragraphs {
		doc.Chunks = append(doc.Chunks, model.Chunk{
			Page:      1,
			Paragraph: i + 1,
			Text:      para,
			Citation:  paragraphCitation(i + 1),
		})
	}
	return doc
}

// splitParagraphs 按空行边界切分文本，去除首尾空白并丢弃空段落。
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(normalized, "\n\n")

	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// pageCitation 返回有页概念格式的引用标签，对相同输入恒定。
func pageCitation(page, paragraph int) string {
	return fmt.Sprintf("Page %d, Para %d", page, paragraph)
}

// paragraphCitation 返回无页概念格式的引用标签。
func paragraphCitation(paragraph int) string {
	return fmt.Sprintf("Para %d", paragraph)
}

// appendPageChunks 把单页文本切分为按页重置编号的分块并追加到文档。
func appendPageChunks(doc *model.Document, page int, pageText string) {
	for i, para := range splitParagraphs(pageText) {
		doc.Chunks = append(doc.Chunks, model.Chunk{
			Page:      page,
			Paragraph: i + 1,
			Text:      para,
			Citation:  pageCitation(page, i+1),
		})
	}
}

// failedDocument 产出一份零分块、带错误描述的文档。
func failedDocument(docID, fileName string, err error) *model.Document {
	log.Errorf("[Chunker] 文档提取失败, docID: %s, error: %v", docID, err)
	return &model.Document{
		DocID:        docID,
		FileName:     fileName,
		Chunks:       nil,
		ExtractError: err.Error(),
	}
}
