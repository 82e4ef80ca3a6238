package chunker

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/log"
)

// processDocx 解包 docx 并遍历 word/document.xml，按 w:p 元素切分段落。
// docx 是流式排版，没有稳定的页概念，引用只带段落号。
func (c *chunker) processDocx(data []byte, docID, fileName string) *model.Document {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("解包 docx 失败: %w", err))
	}

	var docXML io.ReadCloser
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return failedDocument(docID, fileName, fmt.Errorf("打开 word/document.xml 失败: %w", err))
			}
			break
		}
	}
	if docXML == nil {
		return failedDocument(docID, fileName, fmt.Errorf("docx 缺少 word/document.xml"))
	}
	defer docXML.Close()

	paragraphs, err := extractDocxParagraphs(docXML)
	if err != nil {
		return failedDocument(docID, fileName, fmt.Errorf("解析 word/document.xml 失败: %w", err))
	}

	doc := &model.Document{DocID: docID, FileName: fileName, TotalPages: 1}
	for i, para := range paragraphs {
		doc.Chunks = append(doc.Chunks, model.Chunk{
			Page:      1,
			Paragraph: i + 1,
			Text:      para,
			Citation:  paragraphCitation(i + 1),
		})
	}

	log.Infof("[Chunker] docx 处理完成, docID: %s, chunks: %d", docID, len(doc.Chunks))
	return doc
}

// extractDocxParagraphs 流式解析文档 XML，收集每个 w:p 内全部 w:t 的文本。
// 空段落（纯排版占位）直接丢弃，保证段落号连续落在有内容的段落上。
func extractDocxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	inParagraph := false
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inParagraph {
					current.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inParagraph = false
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}
	return paragraphs, nil
}
