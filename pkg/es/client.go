// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"doc-theme-go/internal/config"
	"doc-theme-go/internal/model"
	"doc-theme-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并确保分块索引存在。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return CreateIndexIfNotExists(esCfg.IndexName, dims)
}

// chunkMapping 返回分块索引的 mapping。
// 向量字段使用 cosine 相似度，维度与 embedding 配置一致；
// doc_id/citation 用 keyword 以支持精确过滤与聚合。
func chunkMapping(dims int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_key": { "type": "keyword" },
				"doc_id": { "type": "keyword" },
				"page": { "type": "integer" },
				"paragraph": { "type": "integer" },
				"citation": { "type": "keyword" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)
}

// CreateIndexIfNotExists 检查索引是否存在，如果不存在则创建它。
func CreateIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(chunkMapping(dims))),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexChunk 将单个分块索引到 Elasticsearch，文档 ID 使用稳定组合键。
func IndexChunk(ctx context.Context, indexName string, chunk model.EsChunk) error {
	docBytes, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: chunk.ChunkKey,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true", // add 返回后必须立即可检索
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引分块到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index chunk")
	}
	return nil
}

// DeleteByDocID 删除指定 doc_id 的全部分块，返回删除的条数。
func DeleteByDocID(ctx context.Context, indexName, docID string) (int64, error) {
	query := fmt.Sprintf(`{"query":{"term":{"doc_id":%q}}}`, docID)

	res, err := ESClient.DeleteByQuery(
		[]string{indexName},
		strings.NewReader(query),
		ESClient.DeleteByQuery.WithContext(ctx),
		ESClient.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("按 doc_id 删除分块出错: %s", res.String())
		return 0, errors.New("failed to delete chunks by doc_id")
	}

	var body struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Deleted, nil
}

// ResetIndex 销毁并重建整个索引，所有已索引文档随之丢失。
func ResetIndex(ctx context.Context, indexName string, dims int) error {
	res, err := ESClient.Indices.Delete(
		[]string{indexName},
		ESClient.Indices.Delete.WithContext(ctx),
		ESClient.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("删除索引 '%s' 出错: %s", indexName, res.String())
		return errors.New("failed to delete index")
	}

	return CreateIndexIfNotExists(indexName, dims)
}
