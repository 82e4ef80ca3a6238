package service

import (
	"context"
	"errors"
	"testing"

	"doc-theme-go/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestHealthReportsDocumentCount(t *testing.T) {
	llmStub := &fakeLLMClient{responses: []string{"hello"}}
	docRepo := &fakeDocumentRepo{records: []model.DocumentRecord{
		{DocID: "DOC_1", FileName: "one.pdf"},
		{DocID: "DOC_2", FileName: "two.txt"},
	}}
	svc := NewDocumentService(&fakeVectorService{}, docRepo, llmStub, "bucket")

	status := svc.Health(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 2, status.DocumentsCount)
	assert.True(t, status.LLMConfigured)
}

func TestHealthCachesLLMProbe(t *testing.T) {
	llmStub := &fakeLLMClient{responses: []string{"hello"}}
	svc := NewDocumentService(&fakeVectorService{}, &fakeDocumentRepo{}, llmStub, "bucket")

	first := svc.Health(context.Background())
	second := svc.Health(context.Background())

	assert.True(t, first.LLMConfigured)
	assert.True(t, second.LLMConfigured)
	// 缓存期内重复健康检查不追加生成调用。
	assert.Equal(t, 1, llmStub.calls)
}

func TestHealthReportsLLMUnavailable(t *testing.T) {
	llmStub := &fakeLLMClient{err: errors.New("provider down")}
	svc := NewDocumentService(&fakeVectorService{}, &fakeDocumentRepo{}, llmStub, "bucket")

	status := svc.Health(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.LLMConfigured)
}
