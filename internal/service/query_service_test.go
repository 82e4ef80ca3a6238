package service

import (
	"context"
	"sync"
	"testing"

	"doc-theme-go/internal/model"
	"doc-theme-go/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVectorService 是测试用的检索层桩实现。
type fakeVectorService struct {
	hits []model.SearchHit
}

func (f *fakeVectorService) AddDocument(ctx context.Context, doc *model.Document) (int, error) {
	return len(doc.Chunks), nil
}

func (f *fakeVectorService) Search(ctx context.Context, query string, limit int) []model.SearchHit {
	return f.hits
}

func (f *fakeVectorService) DeleteDocument(ctx context.Context, docID string) (int64, error) {
	return 0, nil
}

func (f *fakeVectorService) Reset(ctx context.Context) error { return nil }

func (f *fakeVectorService) CountDocuments(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeVectorService) ListDocIDs(ctx context.Context) ([]string, error) { return nil, nil }

// fakeAnswerService 按 doc_id 返回预置答案。
type fakeAnswerService struct {
	mu      sync.Mutex
	answers map[string]model.DocumentAnswer
	seen    map[string][]model.SearchHit
}

func (f *fakeAnswerService) Extract(ctx context.Context, query, docID, fileName string, hits []model.SearchHit) model.DocumentAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string][]model.SearchHit)
	}
	f.seen[docID] = hits

	answer, ok := f.answers[docID]
	if !ok {
		answer = model.DocumentAnswer{DocID: docID, HasAnswer: false, Answer: model.NoRelevantInfo}
	}
	answer.FileName = fileName
	return answer
}

// fakeThemeService 记录收到的答案并返回固定分析。
type fakeThemeService struct {
	received []model.DocumentAnswer
	analysis model.ThemeAnalysis
}

func (f *fakeThemeService) Synthesize(ctx context.Context, query string, answers []model.DocumentAnswer) model.ThemeAnalysis {
	f.received = answers
	return f.analysis
}

// fakeDocumentRepo 是内存版的文档元数据仓库。
type fakeDocumentRepo struct {
	records []model.DocumentRecord
}

func (f *fakeDocumentRepo) Create(record *model.DocumentRecord) error { return nil }

func (f *fakeDocumentRepo) FindByDocID(docID string) (*model.DocumentRecord, error) {
	for i := range f.records {
		if f.records[i].DocID == docID {
			return &f.records[i], nil
		}
	}
	return nil, repository.ErrDocumentNotFound
}

func (f *fakeDocumentRepo) FindAll() ([]model.DocumentRecord, error) { return f.records, nil }

func (f *fakeDocumentRepo) DeleteByDocID(docID string) error { return nil }

func (f *fakeDocumentRepo) DeleteAll() error { return nil }

func (f *fakeDocumentRepo) Count() (int64, error) { return int64(len(f.records)), nil }

// fakeHistoryRepo 记录写入的查询历史。
type fakeHistoryRepo struct {
	appended []model.QueryResult
}

func (f *fakeHistoryRepo) Append(ctx context.Context, result *model.QueryResult) error {
	f.appended = append(f.appended, *result)
	return nil
}

func (f *fakeHistoryRepo) Recent(ctx context.Context, limit int) ([]model.QueryResult, error) {
	return f.appended, nil
}

func (f *fakeHistoryRepo) Clear(ctx context.Context) error { return nil }

func newTestQueryService(hits []model.SearchHit, answers map[string]model.DocumentAnswer) (QueryService, *fakeThemeService, *fakeHistoryRepo, *fakeAnswerService) {
	vectorStub := &fakeVectorService{hits: hits}
	answerStub := &fakeAnswerService{answers: answers}
	themeStub := &fakeThemeService{analysis: model.ThemeAnalysis{
		Themes:           []model.Theme{{ThemeName: "T1"}},
		OverallSynthesis: "synth",
	}}
	docRepo := &fakeDocumentRepo{records: []model.DocumentRecord{
		{DocID: "DOC_1", FileName: "one.pdf"},
		{DocID: "DOC_2", FileName: "two.txt"},
	}}
	historyRepo := &fakeHistoryRepo{}

	svc := NewQueryService(vectorStub, answerStub, themeStub, docRepo, historyRepo, 50)
	return svc, themeStub, historyRepo, answerStub
}

func TestQueryEmptyRejected(t *testing.T) {
	svc, _, _, _ := newTestQueryService(nil, nil)

	_, err := svc.Query(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestQueryZeroHitsShortCircuits(t *testing.T) {
	svc, themeStub, historyRepo, _ := newTestQueryService([]model.SearchHit{}, nil)

	result, err := svc.Query(context.Background(), "nothing indexed")
	require.NoError(t, err)

	assert.Equal(t, "nothing indexed", result.Query)
	assert.Empty(t, result.IndividualAnswers)
	assert.Empty(t, result.Themes)
	assert.Equal(t, "No relevant documents found for your query.", result.Synthesis)
	// 零命中不触发主题合成，但仍计入查询历史。
	assert.Nil(t, themeStub.received)
	assert.Len(t, historyRepo.appended, 1)
}

func TestQueryGroupsHitsByDocumentInRetrievalOrder(t *testing.T) {
	hits := []model.SearchHit{
		{DocID: "DOC_2", Citation: "Para 1", TextContent: "b1"},
		{DocID: "DOC_1", Citation: "Page 1, Para 1", TextContent: "a1"},
		{DocID: "DOC_2", Citation: "Para 4", TextContent: "b2"},
	}
	answers := map[string]model.DocumentAnswer{
		"DOC_1": {DocID: "DOC_1", HasAnswer: true, Answer: "answer a"},
		"DOC_2": {DocID: "DOC_2", HasAnswer: true, Answer: "answer b"},
	}
	svc, _, _, answerStub := newTestQueryService(hits, answers)

	result, err := svc.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, result.IndividualAnswers, 2)

	// DOC_2 的首个命中排在前面，所以它的答案也排在前面。
	assert.Equal(t, "DOC_2", result.IndividualAnswers[0].DocID)
	assert.Equal(t, "two.txt", result.IndividualAnswers[0].FileName)
	assert.Equal(t, "DOC_1", result.IndividualAnswers[1].DocID)
	assert.Equal(t, "one.pdf", result.IndividualAnswers[1].FileName)

	// 每个文档收到且仅收到自己的分块。
	require.Len(t, answerStub.seen["DOC_2"], 2)
	assert.Equal(t, "b1", answerStub.seen["DOC_2"][0].TextContent)
	assert.Equal(t, "b2", answerStub.seen["DOC_2"][1].TextContent)
	require.Len(t, answerStub.seen["DOC_1"], 1)
}

func TestQueryFiltersAnswersWithoutContent(t *testing.T) {
	hits := []model.SearchHit{
		{DocID: "DOC_1", TextContent: "a"},
		{DocID: "DOC_2", TextContent: "b"},
	}
	answers := map[string]model.DocumentAnswer{
		"DOC_1": {DocID: "DOC_1", HasAnswer: true, Answer: "found"},
		// DOC_2 落在兜底：has_answer=false 的文档不出现在结果里
	}
	svc, themeStub, _, _ := newTestQueryService(hits, answers)

	result, err := svc.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, result.IndividualAnswers, 1)
	assert.Equal(t, "DOC_1", result.IndividualAnswers[0].DocID)

	// 主题合成收到的是全部抽取结果，过滤由它自己负责。
	assert.Len(t, themeStub.received, 2)
}

func TestQueryUsesThemeAnalysis(t *testing.T) {
	hits := []model.SearchHit{{DocID: "DOC_1", TextContent: "a"}}
	answers := map[string]model.DocumentAnswer{
		"DOC_1": {DocID: "DOC_1", HasAnswer: true, Answer: "found"},
	}
	svc, _, historyRepo, _ := newTestQueryService(hits, answers)

	result, err := svc.Query(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, result.Themes, 1)
	assert.Equal(t, "T1", result.Themes[0].ThemeName)
	assert.Equal(t, "synth", result.Synthesis)
	assert.Len(t, historyRepo.appended, 1)
}

func TestQueryStreamPushesAnswers(t *testing.T) {
	hits := []model.SearchHit{
		{DocID: "DOC_1", TextContent: "a"},
		{DocID: "DOC_2", TextContent: "b"},
	}
	answers := map[string]model.DocumentAnswer{
		"DOC_1": {DocID: "DOC_1", HasAnswer: true, Answer: "found one"},
		"DOC_2": {DocID: "DOC_2", HasAnswer: true, Answer: "found two"},
	}
	svc, _, _, _ := newTestQueryService(hits, answers)

	var streamed []model.DocumentAnswer
	result, err := svc.QueryStream(context.Background(), "q", func(answer model.DocumentAnswer) {
		streamed = append(streamed, answer)
	})
	require.NoError(t, err)

	// 推送的集合与最终结果一致，顺序取决于完成先后。
	assert.Len(t, streamed, 2)
	assert.Len(t, result.IndividualAnswers, 2)
}

func TestHistoryReturnsRecentResults(t *testing.T) {
	svc, _, historyRepo, _ := newTestQueryService([]model.SearchHit{}, nil)
	historyRepo.appended = []model.QueryResult{{Query: "earlier"}}

	results, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "earlier", results[0].Query)
}
