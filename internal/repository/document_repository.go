// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"

	"doc-theme-go/internal/model"

	"gorm.io/gorm"
)

// ErrDocumentNotFound 表示指定的文档记录不存在。
var ErrDocumentNotFound = errors.New("document record not found")

// DocumentRepository 接口定义了文档元数据的持久化操作。
// 向量与文本分块存在 Elasticsearch 里，这里只登记文档级的摄取结果，
// 供列表与删除操作查询。
type DocumentRepository interface {
	Create(record *model.DocumentRecord) error
	FindByDocID(docID string) (*model.DocumentRecord, error)
	FindAll() ([]model.DocumentRecord, error)
	DeleteByDocID(docID string) error
	DeleteAll() error
	Count() (int64, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中登记一条文档摄取记录。
func (r *documentRepository) Create(record *model.DocumentRecord) error {
	return r.db.Create(record).Error
}

// FindByDocID 根据文档 ID 检索摄取记录。
func (r *documentRepository) FindByDocID(docID string) (*model.DocumentRecord, error) {
	var record model.DocumentRecord
	err := r.db.Where("doc_id = ?", docID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindAll 按摄取时间正序返回所有文档记录。
func (r *documentRepository) FindAll() ([]model.DocumentRecord, error) {
	var records []model.DocumentRecord
	err := r.db.Order("created_at asc").Find(&records).Error
	return records, err
}

// DeleteByDocID 删除指定文档的摄取记录。
func (r *documentRepository) DeleteByDocID(docID string) error {
	result := r.db.Where("doc_id = ?", docID).Delete(&model.DocumentRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteAll 清空所有文档记录。
func (r *documentRepository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&model.DocumentRecord{}).Error
}

// Count 返回已登记的文档总数。
func (r *documentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.DocumentRecord{}).Count(&count).Error
	return count, err
}
