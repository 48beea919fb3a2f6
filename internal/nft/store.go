package nft

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound 未找到匹配文档
var ErrNotFound = errors.New("nft: document not found")

// Finder 查询协作方契约
// fields 为包含式投影，调用方只请求会读取的字段
type Finder interface {
	FindByChainIDAndAddress(ctx context.Context, chainID, address string, fields []string) (Document, error)
}

// allowedFields 可投影字段白名单（防止任意列名进入 SQL）
var allowedFields = map[string]bool{
	"chain_id":    true,
	"address":     true,
	"name":        true,
	"marketcap":   true,
	"floorprice":  true,
	"assets":      true,
	"image_url":   true,
	"description": true,
	"category":    true,
	"blockchain":  true,
}

// Store NFT 集合存储
type Store struct {
	db *gorm.DB
}

// NewStore 创建存储
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate 建表
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Collection{})
}

// FindByChainIDAndAddress 按链 ID 与地址查询集合，返回请求字段的投影
// 未命中返回 ErrNotFound
func (s *Store) FindByChainIDAndAddress(ctx context.Context, chainID, address string, fields []string) (Document, error) {
	selected := make([]string, 0, len(fields))
	for _, f := range fields {
		if !allowedFields[f] {
			return nil, fmt.Errorf("nft: unknown field %q", f)
		}
		selected = append(selected, f)
	}
	if len(selected) == 0 {
		selected = DefaultFields
	}

	doc := Document{}
	err := s.db.WithContext(ctx).
		Model(&Collection{}).
		Select(selected).
		Where("chain_id = ? AND address = ?", chainID, address).
		Take(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return doc, nil
}

// Count 集合总数
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Collection{}).Count(&count).Error
	return count, err
}

// Keys 返回全部 (chain_id, address) 对，用于布隆过滤器预热
func (s *Store) Keys(ctx context.Context) ([][2]string, error) {
	var rows []Collection
	err := s.db.WithContext(ctx).
		Model(&Collection{}).
		Select("chain_id", "address").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	keys := make([][2]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, [2]string{r.ChainID, r.Address})
	}
	return keys, nil
}

// CreateInBatches 批量写入集合
func (s *Store) CreateInBatches(ctx context.Context, rows []Collection, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, batchSize).Error
}
