// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"doc-theme-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const queryHistoryKey = "query:history"

// QueryHistoryRepository 定义了查询历史记录的操作接口。
type QueryHistoryRepository interface {
	Append(ctx context.Context, result *model.QueryResult) error
	Recent(ctx context.Context, limit int) ([]model.QueryResult, error)
	Clear(ctx context.Context) error
}

type redisQueryHistoryRepository struct {
	redisClient *redis.Client
	// maxSize 历史列表保留的最近条数上限。
	maxSize int
}

// NewQueryHistoryRepository 创建一个新的 QueryHistoryRepository 实例。
func NewQueryHistoryRepository(redisClient *redis.Client, maxSize int) QueryHistoryRepository {
	return &redisQueryHistoryRepository{redisClient: redisClient, maxSize: maxSize}
}

// Append 把一次查询结果追加到历史列表头部，并裁掉超出上限的旧记录。
func (r *redisQueryHistoryRepository) Append(ctx context.Context, result *model.QueryResult) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal query result: %w", err)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, queryHistoryKey, jsonData)
	pipe.LTrim(ctx, queryHistoryKey, 0, int64(r.maxSize-1))
	pipe.Expire(ctx, queryHistoryKey, 7*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append query history: %w", err)
	}
	return nil
}

// Recent 返回最近的若干条查询结果，最新的在前。
func (r *redisQueryHistoryRepository) Recent(ctx context.Context, limit int) ([]model.QueryResult, error) {
	if limit <= 0 || limit > r.maxSize {
		limit = r.maxSize
	}
	entries, err := r.redisClient.LRange(ctx, queryHistoryKey, 0, int64(limit-1)).Result()
	if err == redis.Nil {
		return []model.QueryResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}

	results := make([]model.QueryResult, 0, len(entries))
	for _, entry := range entries {
		var result model.QueryResult
		if err := json.Unmarshal([]byte(entry), &result); err != nil {
			// 跳过损坏的条目，不让历史接口整体失败。
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// Clear 清空查询历史。
func (r *redisQueryHistoryRepository) Clear(ctx context.Context) error {
	return r.redisClient.Del(ctx, queryHistoryKey).Err()
}
