package nft

import "time"

// 允许查询的指标名
const (
	MetricMarketcap  = "marketcap"
	MetricAssets     = "assets"
	MetricFloorprice = "floorprice"
)

// MetricNames 允许的指标名集合
var MetricNames = []string{MetricMarketcap, MetricAssets, MetricFloorprice}

// IsMetricName 检查是否为允许的指标名
func IsMetricName(name string) bool {
	switch name {
	case MetricMarketcap, MetricAssets, MetricFloorprice:
		return true
	default:
		return false
	}
}

// Collection NFT 集合记录
type Collection struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	ChainID     string  `gorm:"column:chain_id;index" json:"chain_id"`
	Address     string  `gorm:"uniqueIndex" json:"address"`
	Name        string  `json:"name"`
	Marketcap   float64 `json:"marketcap"`
	Floorprice  float64 `json:"floorprice"`
	Assets      int64   `json:"assets"`
	ImageURL    string  `gorm:"column:image_url" json:"image_url"`
	Description string  `json:"description"`
	Category    string  `gorm:"default:''" json:"category"`
	Blockchain  string  `json:"blockchain"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName 表名
func (Collection) TableName() string {
	return "collections"
}

// Document 查询投影结果，键为字段名
// 始终只包含请求的字段，内部主键不对外暴露
type Document map[string]any

// DefaultFields 默认展示字段投影
var DefaultFields = []string{"name", "image_url", "description"}

// SelectedFields 根据指标名返回投影字段
// 指标为空时返回默认展示字段
func SelectedFields(metricName string) []string {
	if metricName != "" {
		return []string{metricName}
	}
	return DefaultFields
}
