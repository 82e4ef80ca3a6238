// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"

	"doc-theme-go/internal/config"
	"doc-theme-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		if err := MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	}

	log.Info("MinIO 客户端初始化成功")
}

// originalObjectName 返回原始文件在桶内的对象名。
func originalObjectName(docID string) string {
	return fmt.Sprintf("originals/%s", docID)
}

// PutOriginal 保存一份文档的原始字节，以 doc_id 作为对象键。
func PutOriginal(ctx context.Context, bucketName, docID string, data []byte, contentType string) error {
	if MinioClient == nil {
		return fmt.Errorf("minio client not initialized")
	}
	_, err := MinioClient.PutObject(ctx, bucketName, originalObjectName(docID),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// RemoveOriginal 删除一份文档的原始字节。对象不存在时不视为错误。
func RemoveOriginal(ctx context.Context, bucketName, docID string) error {
	if MinioClient == nil {
		return fmt.Errorf("minio client not initialized")
	}
	return MinioClient.RemoveObject(ctx, bucketName, originalObjectName(docID), minio.RemoveObjectOptions{})
}
