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

// 主题合成各层兜底的固定文案。
const (
	noRelevantSynthesis = "No relevant information found across the documents for this query."
	genericSynthesis    = "Multiple documents provide information about this topic. Please see individual document answers for details."
)

// ThemeService 接口定义了跨文档主题合成的操作。
type ThemeService interface {
	// Synthesize 对存活的文档答案做主题聚类与总述合成。
	// 没有存活答案时直接返回固定总述，不发起任何生成调用；
	// 生成或解析失败逐层兜底，从不返回错误。
	Synthesize(ctx context.Context, query string, answers []model.DocumentAnswer) model.ThemeAnalysis
}

type themeService struct {
	llmClient llm.Client
}

// NewThemeService 创建一个新的 ThemeService 实例。
func NewThemeService(llmClient llm.Client) ThemeService {
	return &themeService{llmClient: llmClient}
}

// Synthesize 执行主题合成。
func (s *themeService) Synthesize(ctx context.Context, query string, answers []model.DocumentAnswer) model.ThemeAnalysis {
	relevant := survivingAnswers(answers)
	if len(relevant) == 0 {
		return model.ThemeAnalysis{
			Themes:           []model.Theme{},
			OverallSynthesis: noRelevantSynthesis,
		}
	}

	var contextBuilder strings.Builder
	for _, answer := range relevant {
		fmt.Fprintf(&contextBuilder, "Document %s: %s\n\n", answer.DocID, answer.Answer)
	}

	prompt := buildThemePrompt(query, contextBuilder.String())

	response, err := s.llmClient.Complete(ctx, prompt)
	if err != nil {
		log.Errorf("[ThemeService] 主题合成生成调用失败, 走兜底主题: %v", err)
		return s.fallbackAnalysis(ctx, query, relevant)
	}

	var analysis model.ThemeAnalysis
	if err := json.Unmarshal([]byte(stripMarkdownFences(response)), &analysis); err != nil {
		log.Warnf("[ThemeService] 主题合成输出解析失败, 走兜底主题: %v", err)
		return s.fallbackAnalysis(ctx, query, relevant)
	}
	if analysis.Themes == nil {
		analysis.Themes = []model.Theme{}
	}
	return analysis
}

// survivingAnswers 过滤出真正有答案的文档：哨兵值不算答案。
func survivingAnswers(answers []model.DocumentAnswer) []model.DocumentAnswer {
	relevant := make([]model.DocumentAnswer, 0, len(answers))
	for _, answer := range answers {
		if answer.HasAnswer && answer.Answer != model.NoRelevantInfo {
			relevant = append(relevant, answer)
		}
	}
	return relevant
}

// fallbackAnalysis 把所有存活文档并入单个兜底主题。
func (s *themeService) fallbackAnalysis(ctx context.Context, query string, relevant []model.DocumentAnswer) model.ThemeAnalysis {
	docIDs := make([]string, 0, len(relevant))
	for _, answer := range relevant {
		docIDs = append(docIDs, answer.DocID)
	}

	synthesis := s.simpleSynthesis(ctx, relevant)

	return model.ThemeAnalysis{
		Themes: []model.Theme{
			{
				ThemeName:         "Main Theme",
				Description:       fmt.Sprintf("Information related to: %s", query),
				SupportingDocs:    docIDs,
				SynthesizedAnswer: synthesis,
			},
		},
		OverallSynthesis: synthesis,
	}
}

// simpleSynthesis 对答案文本做一次简化总述，再失败则退回固定文案。
func (s *themeService) simpleSynthesis(ctx context.Context, relevant []model.DocumentAnswer) string {
	texts := make([]string, 0, len(relevant))
	for _, answer := range relevant {
		texts = append(texts, answer.Answer)
	}

	prompt := fmt.Sprintf(`Provide a brief synthesis of the following information:
%s

Keep it concise and coherent, highlighting the main points.`, strings.Join(texts, " "))

	response, err := s.llmClient.Complete(ctx, prompt)
	if err != nil {
		log.Errorf("[ThemeService] 简化总述生成失败, 退回固定文案: %v", err)
		return genericSynthesis
	}
	return strings.TrimSpace(response)
}

// buildThemePrompt 构造跨文档主题识别提示词。
func buildThemePrompt(query, answersContext string) string {
	return fmt.Sprintf(`Analyze the following answers from different documents and identify common themes.
Group similar information together and provide a synthesized response.

Original Query: %s

Document Answers:
%s

Provide your analysis in the following JSON format:
{
    "themes": [
        {
            "theme_name": "Give a concise, meaningful name for this theme",
            "description": "Description of what this theme covers",
            "supporting_documents": ["DOC001", "DOC002"],
            "synthesized_answer": "Combined answer for this theme"
        }
    ],
    "overall_synthesis": "Overall summary combining all themes"
}

Requirements:
- Identify 1-3 main themes maximum
- Each theme should have at least 2 supporting documents (if possible)
- Provide clear, coherent synthesized answers
- Reference specific document IDs`, query, answersContext)
}
