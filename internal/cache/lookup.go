package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/logger"
)

// CachedFinder 查询读穿缓存
// 组合三层防护：布隆过滤器挡掉必然不存在的键（防穿透），
// singleflight 合并同键并发查询（防击穿），命中结果写入缓存
type CachedFinder struct {
	next  nft.Finder
	cache Cache
	ttl   time.Duration
	log   logger.Logger

	group singleflight.Group

	filterMu sync.RWMutex
	filter   *bloom.BloomFilter // nil 则禁用
}

// NewCachedFinder 创建读穿缓存
// c 为 nil 时只保留 singleflight 与布隆过滤器
func NewCachedFinder(next nft.Finder, c Cache, ttl time.Duration, log logger.Logger) *CachedFinder {
	return &CachedFinder{
		next:  next,
		cache: c,
		ttl:   ttl,
		log:   log,
	}
}

// SeedBloom 用已知键集合初始化布隆过滤器
// capacity 为预估键数量，fpRate 为可接受误判率
func (f *CachedFinder) SeedBloom(keys [][2]string, capacity uint, fpRate float64) {
	if capacity == 0 {
		return
	}

	filter := bloom.NewWithEstimates(capacity, fpRate)
	for _, k := range keys {
		filter.AddString(bloomKey(k[0], k[1]))
	}

	f.filterMu.Lock()
	f.filter = filter
	f.filterMu.Unlock()

	f.log.Info("bloom filter seeded", zap.Int("keys", len(keys)))
}

// AddKey 登记新增键（新集合入库后调用，避免被过滤器误杀）
func (f *CachedFinder) AddKey(chainID, address string) {
	f.filterMu.RLock()
	filter := f.filter
	f.filterMu.RUnlock()

	if filter != nil {
		// BloomFilter 本身不是并发安全的，写操作需要独占
		f.filterMu.Lock()
		f.filter.AddString(bloomKey(chainID, address))
		f.filterMu.Unlock()
	}
}

// FindByChainIDAndAddress 实现 nft.Finder
func (f *CachedFinder) FindByChainIDAndAddress(ctx context.Context, chainID, address string, fields []string) (nft.Document, error) {
	// 布隆过滤器：不在集合中的键必然不存在，直接短路
	f.filterMu.RLock()
	filter := f.filter
	f.filterMu.RUnlock()
	if filter != nil && !filter.TestString(bloomKey(chainID, address)) {
		return nil, nft.ErrNotFound
	}

	key := lookupKey(chainID, address, fields)

	// 先查缓存
	if f.cache != nil {
		var doc nft.Document
		if err := f.cache.Get(ctx, key, &doc); err == nil {
			return doc, nil
		}
	}

	// singleflight 合并同键并发回源
	v, err, _ := f.group.Do(key, func() (any, error) {
		doc, err := f.next.FindByChainIDAndAddress(ctx, chainID, address, fields)
		if err != nil {
			return nil, err
		}

		if f.cache != nil {
			if err := f.cache.Set(ctx, key, doc, f.ttl); err != nil {
				// 缓存写失败不影响查询结果
				f.log.Warn("failed to cache lookup result", zap.String("key", key), zap.Error(err))
			}
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(nft.Document), nil
}

// bloomKey 布隆过滤器键
func bloomKey(chainID, address string) string {
	return chainID + ":" + address
}

// lookupKey 缓存键（含投影字段，避免不同投影互相污染）
func lookupKey(chainID, address string, fields []string) string {
	return "lookup:" + chainID + ":" + address + ":" + strings.Join(fields, ",")
}
