// Package service 提供了文档研究与主题识别的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/embedding"
	"doc-theme-go/pkg/es"
	"doc-theme-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// VectorService 接口定义了分块向量索引的操作。
// 它是检索层的唯一入口：写入、kNN 检索、按文档删除与整体重置。
type VectorService interface {
	// AddDocument 向量化并索引文档的全部分块，返回成功索引的分块数。
	// 零分块的文档是空操作，返回 (0, nil)。
	AddDocument(ctx context.Context, doc *model.Document) (int, error)
	// Search 对查询做 kNN 检索，按相关性降序返回至多 limit 条命中。
	// 检索层任何失败都降级为空结果，不让查询流程整体失败。
	Search(ctx context.Context, query string, limit int) []model.SearchHit
	// DeleteDocument 删除指定文档的全部分块，返回删除的分块数。
	DeleteDocument(ctx context.Context, docID string) (int64, error)
	// Reset 销毁并重建索引。
	Reset(ctx context.Context) error
	// CountDocuments 返回索引中不同文档的数量。
	CountDocuments(ctx context.Context) (int, error)
	// ListDocIDs 返回索引中所有不同的文档 ID。
	ListDocIDs(ctx context.Context) ([]string, error)
}

type vectorService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	indexName       string
	dims            int
	modelVersion    string
}

// NewVectorService 创建一个新的 VectorService 实例。
func NewVectorService(embeddingClient embedding.Client, esClient *elasticsearch.Client, indexName string, dims int, modelVersion string) VectorService {
	return &vectorService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		indexName:       indexName,
		dims:            dims,
		modelVersion:    modelVersion,
	}
}

// chunkKey 返回分块的稳定组合键，重复摄取同一分块时覆盖而不是重复。
func chunkKey(docID string, page, paragraph int) string {
	return fmt.Sprintf("%s_%d_%d", docID, page, paragraph)
}

// AddDocument 向量化并索引文档的全部分块。
func (s *vectorService) AddDocument(ctx context.Context, doc *model.Document) (int, error) {
	if len(doc.Chunks) == 0 {
		log.Warnf("[VectorService] 文档没有可索引的分块, docID: %s", doc.DocID)
		return 0, nil
	}

	log.Infof("[VectorService] 开始索引文档, docID: %s, chunks: %d", doc.DocID, len(doc.Chunks))

	indexed := 0
	for _, chunk := range doc.Chunks {
		vector, err := s.embeddingClient.CreateEmbedding(ctx, chunk.Text)
		if err != nil {
			return indexed, fmt.Errorf("failed to embed chunk %s: %w", chunkKey(doc.DocID, chunk.Page, chunk.Paragraph), err)
		}

		esChunk := model.EsChunk{
			ChunkKey:     chunkKey(doc.DocID, chunk.Page, chunk.Paragraph),
			DocID:        doc.DocID,
			Page:         chunk.Page,
			Paragraph:    chunk.Paragraph,
			Citation:     chunk.Citation,
			TextContent:  chunk.Text,
			Vector:       vector,
			ModelVersion: s.modelVersion,
		}
		if err := es.IndexChunk(ctx, s.indexName, esChunk); err != nil {
			return indexed, fmt.Errorf("failed to index chunk %s: %w", esChunk.ChunkKey, err)
		}
		indexed++
	}

	log.Infof("[VectorService] 文档索引完成, docID: %s, indexed: %d", doc.DocID, indexed)
	return indexed, nil
}

// Search 对查询做 kNN 检索。
func (s *vectorService) Search(ctx context.Context, query string, limit int) []model.SearchHit {
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[VectorService] 向量化查询失败, 降级为空结果: %v", err)
		return []model.SearchHit{}
	}

	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   queryVector,
			"k":              limit,
			"num_candidates": limit * 4,
		},
		"size":    limit,
		"_source": []string{"doc_id", "page", "paragraph", "citation", "text_content"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		log.Errorf("[VectorService] 序列化 Elasticsearch 查询失败: %v", err)
		return []model.SearchHit{}
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[VectorService] Elasticsearch 检索请求失败, 降级为空结果: %v", err)
		return []model.SearchHit{}
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return []model.SearchHit{}
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[VectorService] 解析 Elasticsearch 响应失败: %v", err)
		return []model.SearchHit{}
	}

	hits := make([]model.SearchHit, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		hits = append(hits, model.SearchHit{
			DocID:       hit.Source.DocID,
			Page:        hit.Source.Page,
			Paragraph:   hit.Source.Paragraph,
			Citation:    hit.Source.Citation,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
		})
	}

	log.Infof("[VectorService] 检索完成, query: '%s', hits: %d", query, len(hits))
	return hits
}

// DeleteDocument 删除指定文档的全部分块。
func (s *vectorService) DeleteDocument(ctx context.Context, docID string) (int64, error) {
	deleted, err := es.DeleteByDocID(ctx, s.indexName, docID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for document %s: %w", docID, err)
	}
	log.Infof("[VectorService] 已删除文档分块, docID: %s, deleted: %d", docID, deleted)
	return deleted, nil
}

// Reset 销毁并重建索引。
func (s *vectorService) Reset(ctx context.Context) error {
	if err := es.ResetIndex(ctx, s.indexName, s.dims); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	log.Infof("[VectorService] 索引已重置: %s", s.indexName)
	return nil
}

// CountDocuments 通过 cardinality 聚合统计索引中不同文档的数量。
func (s *vectorService) CountDocuments(ctx context.Context) (int, error) {
	query := `{"size":0,"aggs":{"doc_count":{"cardinality":{"field":"doc_id"}}}}`

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(bytes.NewReader([]byte(query))),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Aggregations struct {
			DocCount struct {
				Value int `json:"value"`
			} `json:"doc_count"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return esResponse.Aggregations.DocCount.Value, nil
}

// ListDocIDs 通过 terms 聚合列出索引中所有不同的文档 ID。
func (s *vectorService) ListDocIDs(ctx context.Context) ([]string, error) {
	query := `{"size":0,"aggs":{"doc_ids":{"terms":{"field":"doc_id","size":10000}}}}`

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(bytes.NewReader([]byte(query))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list document ids: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Aggregations struct {
			DocIDs struct {
				Buckets []struct {
					Key string `json:"key"`
				} `json:"buckets"`
			} `json:"doc_ids"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode doc id response: %w", err)
	}

	docIDs := make([]string, 0, len(esResponse.Aggregations.DocIDs.Buckets))
	for _, bucket := range esResponse.Aggregations.DocIDs.Buckets {
		docIDs = append(docIDs, bucket.Key)
	}
	return docIDs, nil
}
