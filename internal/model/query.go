package model

// NoRelevantInfo 是生成模型约定的"无相关信息"哨兵值。
// 它与真实回答文本严格区分：出现该值即视为该文档没有答案。
const NoRelevantInfo = "NO_RELEVANT_INFO"

// DocumentAnswer 是单个文档针对一次查询的抽取结果，仅在查询流程内存在。
type DocumentAnswer struct {
	DocID     string `json:"doc_id"`
	FileName  string `json:"filename"`
	HasAnswer bool   `json:"has_answer"`
	Answer    string `json:"answer"`
	Citation  string `json:"citation"` // 支撑分块引用的逗号拼接
}

// Theme 是一次查询中跨文档聚类出的主题，每次查询重新生成，从不持久化。
type Theme struct {
	ThemeName         string   `json:"theme_name"`
	Description       string   `json:"description"`
	SupportingDocs    []string `json:"supporting_documents"`
	SynthesizedAnswer string   `json:"synthesized_answer"`
}

// ThemeAnalysis 是主题聚合阶段的完整输出。
type ThemeAnalysis struct {
	Themes           []Theme `json:"themes"`
	OverallSynthesis string  `json:"overall_synthesis"`
}

// QueryResult 是一次查询的完整响应结构。
type QueryResult struct {
	Query             string           `json:"query"`
	IndividualAnswers []DocumentAnswer `json:"individual_answers"`
	Themes            []Theme          `json:"themes"`
	Synthesis         string           `json:"synthesis"`
}
