// Package ocr 提供了基于 Apache Tika 服务器的文字识别客户端。
// Tika 服务器内置 Tesseract 集成，对图片与扫描版 PDF 均可识别。
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"doc-theme-go/internal/config"
)

// Client 定义了 OCR 能力的接口。识别失败返回 error，
// 识别成功但页面无文字时返回空字符串，两者都不会使调用方崩溃。
type Client interface {
	// RecognizeImage 识别一张图片中的文字。
	RecognizeImage(ctx context.Context, image []byte) (string, error)
	// ExtractPDFText 只提取 PDF 内嵌文本层的纯文本，不触发 OCR。
	ExtractPDFText(ctx context.Context, pdf []byte) (string, error)
	// RecognizePDF 以纯 OCR 策略识别一份 PDF（通常为裁出的单页）中的文字。
	RecognizePDF(ctx context.Context, pdf []byte) (string, error)
}

type tikaClient struct {
	serverURL string
	language  string
	client    *http.Client
}

// NewClient 创建一个新的 Tika OCR 客户端实例。
func NewClient(cfg config.OCRConfig) Client {
	return &tikaClient{
		serverURL: cfg.ServerURL,
		language:  cfg.Language,
		client:    &http.Client{},
	}
}

// RecognizeImage 将图片提交给 Tika 并返回识别出的纯文本。
func (c *tikaClient) RecognizeImage(ctx context.Context, image []byte) (string, error) {
	return c.extract(ctx, image, "image/png", nil)
}

// ExtractPDFText 禁用 OCR，只取 PDF 的内嵌文本层。
// 扫描版 PDF 没有文本层，此时返回（接近）空串，由调用方决定是否转走 OCR。
func (c *tikaClient) ExtractPDFText(ctx context.Context, pdf []byte) (string, error) {
	return c.extract(ctx, pdf, "application/pdf", map[string]string{
		"X-Tika-PDFOcrStrategy": "no_ocr",
	})
}

// RecognizePDF 强制 Tika 对 PDF 逐页渲染后 OCR，忽略其内嵌文本层。
func (c *tikaClient) RecognizePDF(ctx context.Context, pdf []byte) (string, error) {
	return c.extract(ctx, pdf, "application/pdf", map[string]string{
		"X-Tika-PDFOcrStrategy": "ocr_only",
	})
}

func (c *tikaClient) extract(ctx context.Context, data []byte, contentType string, extraHeaders map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建 Tika 请求失败: %w", err)
	}

	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentType)
	if c.language != "" {
		req.Header.Set("X-Tika-OCRLanguage", c.language)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Tika 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika 返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %w", err)
	}
	return buf.String(), nil
}
