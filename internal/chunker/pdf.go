package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// processPDF 逐页提取 PDF 文本，疑似扫描页走 OCR 兜底。
// 每页裁成单页 PDF 后先提取内嵌文本层，文本短于阈值时判定为扫描页，
// 同一份单页字节再走 OCR 重新识别。段落编号按页重置。
func (c *chunker) processPDF(ctx context.Context, data []byte, docID, fileName string) *model.Document {
	workDir, err := os.MkdirTemp("", "chunker-pdf-*")
	if err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("创建临时目录失败: %w", err))
	}
	defer os.RemoveAll(workDir)

	pdfFile := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(pdfFile, data, 0o644); err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("写入临时 PDF 失败: %w", err))
	}

	conf := pdfmodel.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(pdfFile)
	if err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("读取 PDF 失败: %w", err))
	}
	pageCount := pdfCtx.PageCount

	doc := &model.Document{DocID: docID, FileName: fileName, TotalPages: pageCount}
	for page := 1; page <= pageCount; page++ {
		pageBytes, err := trimPage(pdfFile, workDir, page, conf)
		if err != nil {
			log.Warnf("[Chunker] 裁剪 PDF 第 %d 页失败, docID: %s, error: %v", page, docID, err)
			continue
		}

		if text := c.pdfPageText(ctx, pageBytes, page); text != "" {
			appendPageChunks(doc, page, text)
		}
	}

	log.Infof("[Chunker] PDF 处理完成, docID: %s, pages: %d, chunks: %d", docID, pageCount, len(doc.Chunks))
	return doc
}

// pdfPageText 返回单页 PDF 的文本内容。
// 文本层提取便宜而 OCR 昂贵，所以先取文本层探测：文本短于阈值时判定为
// 扫描页，再对同一页走 OCR。误判（真文本被当成扫描页）只是多跑一次
// OCR，不丢内容；OCR 失败时保留文本层结果。
func (c *chunker) pdfPageText(ctx context.Context, pageBytes []byte, page int) string {
	text := ""
	if native, err := c.ocrClient.ExtractPDFText(ctx, pageBytes); err != nil {
		log.Warnf("[Chunker] PDF 第 %d 页文本层提取失败: %v", page, err)
	} else {
		text = strings.TrimSpace(native)
	}

	if len(text) >= c.scannedThreshold {
		return text
	}

	ocrText, err := c.ocrClient.RecognizePDF(ctx, pageBytes)
	if err != nil {
		log.Warnf("[Chunker] PDF 第 %d 页 OCR 失败: %v", page, err)
		return text
	}
	return strings.TrimSpace(ocrText)
}

// trimPage 裁出指定页为单页 PDF 并返回其字节。
func trimPage(pdfFile, workDir string, page int, conf *pdfmodel.Configuration) ([]byte, error) {
	pageFile := filepath.Join(workDir, fmt.Sprintf("page_%d.pdf", page))
	if err := api.TrimFile(pdfFile, pageFile, []string{strconv.Itoa(page)}, conf); err != nil {
		return nil, fmt.Errorf("裁剪第 %d 页失败: %w", page, err)
	}
	return os.ReadFile(pageFile)
}
