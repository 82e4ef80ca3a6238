package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"
)

// AnswerService 接口定义了单文档答案抽取的操作。
type AnswerService interface {
	// Extract 基于单个文档命中的分块回答查询。
	// 生成调用或解析失败只影响该文档的结果，从不返回错误。
	Extract(ctx context.Context, query, docID, fileName string, hits []model.SearchHit) model.DocumentAnswer
}

type answerService struct {
	llmClient llm.Client
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client) AnswerService {
	return &answerService{llmClient: llmClient}
}

// extractResult 是生成模型约定的抽取输出结构。
type extractResult struct {
	HasAnswer      bool   `json:"has_answer"`
	Answer         string `json:"answer"`
	RelevantChunks []int  `json:"relevant_chunks"`
}

// Extract 对单个文档执行答案抽取，按层级兜底解析生成输出：
// JSON 解析成功 → 哨兵值匹配 → 原始文本兜底。
func (s *answerService) Extract(ctx context.Context, query, docID, fileName string, hits []model.SearchHit) model.DocumentAnswer {
	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		texts = append(texts, hit.TextContent)
	}
	docText := strings.Join(texts, "\n\n")

	prompt := buildExtractPrompt(query, docID, docText)

	response, err := s.llmClient.Complete(ctx, prompt)
	if err != nil {
		log.Errorf("[AnswerService] 文档答案抽取失败, docID: %s, error: %v", docID, err)
		return model.DocumentAnswer{
			DocID:     docID,
			FileName:  fileName,
			HasAnswer: false,
			Answer:    fmt.Sprintf("Error processing document: %v", err),
		}
	}

	result := parseExtractResponse(response)

	answer := model.DocumentAnswer{
		DocID:     docID,
		FileName:  fileName,
		HasAnswer: result.HasAnswer,
		Answer:    result.Answer,
	}
	if result.HasAnswer {
		answer.Citation = joinCitations(hits, result.RelevantChunks)
	}
	return answer
}

// parseExtractResponse 分层解析生成输出。
func parseExtractResponse(response string) extractResult {
	var result extractResult
	if err := json.Unmarshal([]byte(stripMarkdownFences(response)), &result); err == nil {
		return result
	}

	if strings.Contains(response, model.NoRelevantInfo) {
		return extractResult{
			HasAnswer:      false,
			Answer:         model.NoRelevantInfo,
			RelevantChunks: []int{},
		}
	}

	// 原始文本兜底：整段输出当作答案，默认引用第一个分块。
	return extractResult{
		HasAnswer:      true,
		Answer:         response,
		RelevantChunks: []int{0},
	}
}

// joinCitations 拼接支撑分块的引用，越界下标直接跳过。
// 全部越界时退回第一个分块的引用。
func joinCitations(hits []model.SearchHit, indices []int) string {
	if len(hits) == 0 {
		return ""
	}
	if len(indices) == 0 {
		indices = []int{0}
	}

	citations := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(hits) {
			citations = append(citations, hits[idx].Citation)
		}
	}
	if len(citations) == 0 {
		return hits[0].Citation
	}
	return strings.Join(citations, ", ")
}

// stripMarkdownFences 去掉生成输出外层的 markdown 代码围栏。
func stripMarkdownFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// buildExtractPrompt 构造单文档答案抽取提示词。
func buildExtractPrompt(query, docID, docText string) string {
	return fmt.Sprintf(`Based on the following document content, answer the user's question.
If the document contains relevant information, provide a clear answer.
If the document doesn't contain relevant information, respond with "NO_RELEVANT_INFO".

Document ID: %s
Document Content:
%s

Question: %s

Provide your answer in the following JSON format:
{
    "has_answer": true/false,
    "answer": "your answer here or NO_RELEVANT_INFO",
    "relevant_chunks": [list of chunk indices that support the answer]
}`, docID, docText, query)
}
