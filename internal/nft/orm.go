package nft

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

// DBConfig 数据库连接配置
type DBConfig struct {
	Driver          string        // 数据库类型: mysql, postgres, sqlite, sqlserver
	DSN             string        // 主库 DSN
	Replicas        []string      // 从库 DSN 列表（只读，可选）
	MaxIdleConns    int           // 最大空闲连接数
	MaxOpenConns    int           // 最大打开连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        int           // 日志级别 (1:Silent 2:Error 3:Warn 4:Info)
	SlowThreshold   time.Duration // 慢查询阈值
}

// OpenDB 创建 GORM 数据库实例
func OpenDB(cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	gormConfig := &gorm.Config{
		PrepareStmt: true,
		Logger:      newDBLogger(cfg),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	}

	dialector, err := getDialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// 配置读写分离
	if len(cfg.Replicas) > 0 {
		if err := setupReplicas(db, cfg); err != nil {
			return nil, fmt.Errorf("failed to setup read-write split: %w", err)
		}
	}

	return db, nil
}

// getDialector 根据数据库类型返回对应的 Dialector
func getDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "sqlserver":
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// newDBLogger 创建 GORM 日志记录器
func newDBLogger(cfg *DBConfig) logger.Interface {
	level := cfg.LogLevel
	if level == 0 {
		level = 3 // Warn
	}
	slow := cfg.SlowThreshold
	if slow == 0 {
		slow = 200 * time.Millisecond
	}
	return logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.LogLevel(level),
			IgnoreRecordNotFoundError: true,
		},
	)
}

// setupReplicas 配置读写分离
func setupReplicas(db *gorm.DB, cfg *DBConfig) error {
	replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
	for _, dsn := range cfg.Replicas {
		dialector, err := getDialector(cfg.Driver, dsn)
		if err != nil {
			return err
		}
		replicas = append(replicas, dialector)
	}

	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}))
}
