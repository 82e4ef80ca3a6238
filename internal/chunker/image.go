package chunker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/log"

	// 注册常见图片格式的解码器。
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// processImage 对图片做灰度化和二值化预处理后整图 OCR 一次。
// 图片没有页概念，页号恒为 1，段落全图顺序编号。
func (c *chunker) processImage(ctx context.Context, data []byte, docID, fileName string) *model.Document {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("解码图片失败: %w", err))
	}

	binarized := binarize(grayscale(img))

	var buf bytes.Buffer
	if err := png.Encode(&buf, binarized); err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("编码预处理图片失败: %w", err))
	}

	text, err := c.ocrClient.RecognizeImage(ctx, buf.Bytes())
	if err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("图片 OCR 失败: %w", err))
	}

	doc := &model.Document{DocID: docID, FileName: fileName, TotalPages: 1}
	appendPageChunks(doc, 1, text)

	log.Infof("[Chunker] 图片处理完成, docID: %s, chunks: %d", docID, len(doc.Chunks))
	return doc
}

// grayscale 把任意图像转为灰度图。
func grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// binarize 用 Otsu 自动全局阈值把灰度图二值化，改善 OCR 识别率。
func binarize(gray *image.Gray) *image.Gray {
	threshold := otsuThreshold(gray)

	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// otsuThreshold 计算使类间方差最大的灰度阈值。
func otsuThreshold(gray *image.Gray) uint8 {
	var histogram [256]int
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 128
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			histogram[gray.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for i, count := range histogram {
		sum += float64(i) * float64(count)
	}

	var sumB, wB float64
	var maxVariance float64
	var threshold uint8

	for i := 0; i < 256; i++ {
		wB += float64(histogram[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}

		sumB += float64(i) * float64(histogram[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF

		variance := wB * wF * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(i)
		}
	}
	return threshold
}
