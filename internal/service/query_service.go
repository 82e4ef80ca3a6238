package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"doc-theme-go/internal/model"
	"doc-theme-go/internal/repository"
	"doc-theme-go/pkg/log"
)

// noDocumentsSynthesis 是零命中时的固定总述，此时不发起任何生成调用。
const noDocumentsSynthesis = "No relevant documents found for your query."

// ErrEmptyQuery 表示查询文本为空。
var ErrEmptyQuery = errors.New("query cannot be empty")

// QueryService 接口定义了查询编排操作：检索、逐文档抽取、主题合成。
type QueryService interface {
	// Query 执行一次完整查询并返回结构化结果。
	Query(ctx context.Context, query string) (*model.QueryResult, error)
	// QueryStream 同 Query，但每个文档抽取完成时通过 onAnswer 推送一次。
	// 回调串行执行，推送顺序取决于各文档抽取完成的先后。
	QueryStream(ctx context.Context, query string, onAnswer func(model.DocumentAnswer)) (*model.QueryResult, error)
	// History 返回最近的查询结果，最新的在前。
	History(ctx context.Context, limit int) ([]model.QueryResult, error)
}

type queryService struct {
	vectorService VectorService
	answerService AnswerService
	themeService  ThemeService
	documentRepo  repository.DocumentRepository
	historyRepo   repository.QueryHistoryRepository
	searchLimit   int
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(
	vectorService VectorService,
	answerService AnswerService,
	themeService ThemeService,
	documentRepo repository.DocumentRepository,
	historyRepo repository.QueryHistoryRepository,
	searchLimit int,
) QueryService {
	return &queryService{
		vectorService: vectorService,
		answerService: answerService,
		themeService:  themeService,
		documentRepo:  documentRepo,
		historyRepo:   historyRepo,
		searchLimit:   searchLimit,
	}
}

// Query 执行一次完整查询。
func (s *queryService) Query(ctx context.Context, query string) (*model.QueryResult, error) {
	return s.QueryStream(ctx, query, nil)
}

// QueryStream 执行一次完整查询并逐文档推送抽取结果。
func (s *queryService) QueryStream(ctx context.Context, query string, onAnswer func(model.DocumentAnswer)) (*model.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	log.Infof("[QueryService] 开始处理查询: '%s'", query)

	hits := s.vectorService.Search(ctx, query, s.searchLimit)
	if len(hits) == 0 {
		log.Infof("[QueryService] 查询零命中: '%s'", query)
		result := &model.QueryResult{
			Query:             query,
			IndividualAnswers: []model.DocumentAnswer{},
			Themes:            []model.Theme{},
			Synthesis:         noDocumentsSynthesis,
		}
		s.saveHistory(ctx, result)
		return result, nil
	}

	// 按检索顺序分组：文档首个命中出现的位置决定它的顺位。
	docOrder, docGroups := groupHitsByDoc(hits)
	fileNames := s.resolveFileNames(docOrder)

	log.Infof("[QueryService] 命中 %d 个分块, 涉及 %d 个文档, 开始并行抽取", len(hits), len(docOrder))

	// 逐文档并行抽取，各文档完全独立，单个失败不影响其余。
	extracted := make([]model.DocumentAnswer, len(docOrder))
	var wg sync.WaitGroup
	var callbackMu sync.Mutex
	for i, docID := range docOrder {
		wg.Add(1)
		go func(i int, docID string) {
			defer wg.Done()
			answer := s.answerService.Extract(ctx, query, docID, fileNames[docID], docGroups[docID])
			extracted[i] = answer

			if onAnswer != nil && answer.HasAnswer {
				callbackMu.Lock()
				onAnswer(answer)
				callbackMu.Unlock()
			}
		}(i, docID)
	}
	wg.Wait()

	individualAnswers := make([]model.DocumentAnswer, 0, len(extracted))
	for _, answer := range extracted {
		if answer.HasAnswer {
			individualAnswers = append(individualAnswers, answer)
		}
	}

	analysis := s.themeService.Synthesize(ctx, query, extracted)

	result := &model.QueryResult{
		Query:             query,
		IndividualAnswers: individualAnswers,
		Themes:            analysis.Themes,
		Synthesis:         analysis.OverallSynthesis,
	}
	s.saveHistory(ctx, result)

	log.Infof("[QueryService] 查询处理完成: '%s', answers: %d, themes: %d", query, len(individualAnswers), len(result.Themes))
	return result, nil
}

// History 返回最近的查询结果。
func (s *queryService) History(ctx context.Context, limit int) ([]model.QueryResult, error) {
	return s.historyRepo.Recent(ctx, limit)
}

// groupHitsByDoc 把命中按文档分组，并保留文档在检索结果中的首现顺序。
func groupHitsByDoc(hits []model.SearchHit) ([]string, map[string][]model.SearchHit) {
	var docOrder []string
	docGroups := make(map[string][]model.SearchHit)
	for _, hit := range hits {
		if _, ok := docGroups[hit.DocID]; !ok {
			docOrder = append(docOrder, hit.DocID)
		}
		docGroups[hit.DocID] = append(docGroups[hit.DocID], hit)
	}
	return docOrder, docGroups
}

// resolveFileNames 从元数据库解析文档的原始文件名，缺失时用 "Unknown"。
func (s *queryService) resolveFileNames(docIDs []string) map[string]string {
	fileNames := make(map[string]string, len(docIDs))
	for _, docID := range docIDs {
		fileNames[docID] = "Unknown"
	}

	records, err := s.documentRepo.FindAll()
	if err != nil {
		log.Warnf("[QueryService] 查询文档元数据失败, 文件名将使用 'Unknown': %v", err)
		return fileNames
	}
	for _, record := range records {
		if _, ok := fileNames[record.DocID]; ok {
			fileNames[record.DocID] = record.FileName
		}
	}
	return fileNames
}

// saveHistory 把查询结果写入历史，失败只记日志。
func (s *queryService) saveHistory(ctx context.Context, result *model.QueryResult) {
	if s.historyRepo == nil {
		return
	}
	if err := s.historyRepo.Append(ctx, result); err != nil {
		log.Warnf("[QueryService] 保存查询历史失败: %v", err)
	}
}
