package nft

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tokmz/datafeed/pkg/logger"
)

// MigrateOptions 迁移选项
type MigrateOptions struct {
	Auto      bool   // 未开启时直接跳过
	Source    string // 原始数据 JSON 文件路径
	BatchSize int    // 批量写入大小
}

// rawRecord 原始数据记录
// chain_id 在历史数据里既有数字也有字符串，统一转为字符串
type rawRecord struct {
	ChainID     json.Number `json:"chain_id"`
	Address     string      `json:"address"`
	Name        string      `json:"name"`
	Marketcap   float64     `json:"marketcap"`
	Floorprice  float64     `json:"floorprice"`
	Assets      int64       `json:"assets"`
	ImageURL    string      `json:"image_url"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Blockchain  string      `json:"blockchain"`
}

// Migrate 将原始数据文件批量导入存储
// 仅在开启自动迁移、且存量行数少于原始数据条数时执行
// 迁移失败只记录日志，不阻断服务启动
func Migrate(ctx context.Context, store *Store, opts MigrateOptions, log logger.Logger) error {
	if !opts.Auto {
		log.Info("migration disabled, skipping")
		return nil
	}

	records, err := loadRawRecords(opts.Source)
	if err != nil {
		log.Error("no raw data found for migration", zap.String("source", opts.Source), zap.Error(err))
		return err
	}
	if len(records) == 0 {
		log.Error("no raw data found for migration", zap.String("source", opts.Source))
		return nil
	}

	existing, err := store.Count(ctx)
	if err != nil {
		log.Error("failed to count existing documents", zap.Error(err))
		return err
	}

	log.Info("migration check",
		zap.Int("raw", len(records)),
		zap.Int64("existing", existing),
	)

	if int64(len(records)) <= existing {
		log.Info("existing data up to date, skipping migration")
		return nil
	}

	rows := make([]Collection, 0, len(records))
	for _, r := range records {
		rows = append(rows, Collection{
			ChainID:     r.ChainID.String(),
			Address:     r.Address,
			Name:        r.Name,
			Marketcap:   r.Marketcap,
			Floorprice:  r.Floorprice,
			Assets:      r.Assets,
			ImageURL:    r.ImageURL,
			Description: r.Description,
			Category:    r.Category,
			Blockchain:  r.Blockchain,
		})
	}

	if err := store.CreateInBatches(ctx, rows, opts.BatchSize); err != nil {
		log.Error("migration failed", zap.Error(err))
		return err
	}

	log.Info("migration completed", zap.Int("inserted", len(rows)))
	return nil
}

// loadRawRecords 读取原始数据文件
func loadRawRecords(path string) ([]rawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw data file: %w", err)
	}

	var records []rawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse raw data file: %w", err)
	}

	return records, nil
}
