package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tokmz/datafeed/internal/api"
	"github.com/tokmz/datafeed/internal/cache"
	"github.com/tokmz/datafeed/internal/config"
	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/internal/server"
	"github.com/tokmz/datafeed/internal/stream"
	"github.com/tokmz/datafeed/internal/ws"
	"github.com/tokmz/datafeed/pkg/logger"
	"github.com/tokmz/datafeed/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "datafeed:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// 配置文件变更时只热更新日志级别，其余配置需重启生效
	loader.Watch(func(updated *config.Config) {
		log.SetLevel(logger.ParseLevel(updated.Log.Level))
		log.Info("log level updated", zap.String("level", updated.Log.Level))
	})

	if cfg.Tracing.Enabled {
		if _, err := tracing.NewTracerProvider(&tracing.Config{
			ServiceName:      "datafeed",
			Environment:      cfg.Tracing.Environment,
			ExporterType:     cfg.Tracing.Exporter,
			ExporterEndpoint: cfg.Tracing.Endpoint,
			Insecure:         cfg.Tracing.Insecure,
			SamplingRate:     cfg.Tracing.SamplingRate,
			SamplingType:     "parent_based",
			Enabled:          true,
		}); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() { _ = tracing.Shutdown(context.Background()) }()
	}

	db, err := nft.OpenDB(&nft.DBConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		Replicas:        cfg.Database.Replicas,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
		SlowThreshold:   cfg.Database.SlowThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	store := nft.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// 原始数据导入失败不阻止启动，已有数据仍可服务
	if err := nft.Migrate(ctx, store, nft.MigrateOptions{
		Auto:      cfg.Migration.Auto,
		Source:    cfg.Migration.Source,
		BatchSize: cfg.Migration.BatchSize,
	}, log); err != nil {
		log.Warn("raw data migration failed", zap.Error(err))
	}

	finder, err := newFinder(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	hub, err := ws.NewHub(&ws.Config{
		APIKey:            cfg.Auth.APIKey,
		Path:              cfg.WS.Path,
		MaxConnections:    ws.DefaultConfig().MaxConnections,
		MaxMessageSize:    cfg.WS.MaxMessageSize,
		HeartbeatInterval: cfg.WS.HeartbeatInterval,
		PongWait:          cfg.WS.PongWait,
		WriteWait:         cfg.WS.WriteWait,
		SendQueueSize:     cfg.WS.SendQueueSize,
		ReadBufferSize:    ws.DefaultConfig().ReadBufferSize,
		WriteBufferSize:   ws.DefaultConfig().WriteBufferSize,
		AllowAllOrigins:   cfg.WS.AllowAllOrigins,
	}, finder, log)
	if err != nil {
		return fmt.Errorf("failed to create websocket hub: %w", err)
	}

	if cfg.Stream.Enabled {
		consumer, err := stream.NewConsumer(&stream.Config{
			Brokers: cfg.Stream.Brokers,
			Topic:   cfg.Stream.Topic,
			Group:   cfg.Stream.Group,
		}, hub.Broadcaster(), log)
		if err != nil {
			return fmt.Errorf("failed to create stream consumer: %w", err)
		}
		consumer.Start()
		defer func() { _ = consumer.Stop() }()
	}

	rest := api.NewRouter(api.RouterConfig{
		APIKey:        cfg.Auth.APIKey,
		ServiceName:   "datafeed",
		EnableTracing: cfg.Tracing.Enabled,
	}, finder, log)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, rest, hub, cfg.WS.Path, log)

	return srv.Run(ctx)
}

// newLogger 根据配置构建日志实例
func newLogger(cfg config.LogConfig) (logger.Logger, error) {
	logCfg := &logger.Config{
		Level:   logger.ParseLevel(cfg.Level),
		Format:  logger.Format(cfg.Format),
		Console: cfg.Console,
		File:    cfg.File,
	}
	if !logCfg.Format.IsValid() {
		logCfg.Format = logger.JSONFormat
	}
	if cfg.File != "" && cfg.Rotate {
		logCfg.Rotate = &logger.RotateConfig{Filename: cfg.File}
	}
	return logger.New(logCfg)
}

// newFinder 按配置装配查询链路：布隆过滤器 + 缓存 + singleflight + 数据库
func newFinder(ctx context.Context, cfg *config.Config, store *nft.Store, log logger.Logger) (nft.Finder, error) {
	if cfg.Cache.Driver == "none" {
		return store, nil
	}

	var c cache.Cache
	if cfg.Cache.Driver != "" {
		var err error
		c, err = cache.New(&cache.Config{
			Driver:     cfg.Cache.Driver,
			KeyPrefix:  cfg.Cache.KeyPrefix,
			DefaultTTL: cfg.Cache.TTL,
			Redis: &cache.RedisConfig{
				Addr:     cfg.Cache.Addr,
				Username: cfg.Cache.Username,
				Password: cfg.Cache.Password,
				DB:       cfg.Cache.DB,
				PoolSize: cfg.Cache.PoolSize,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
	}

	cached := cache.NewCachedFinder(store, c, cfg.Cache.TTL, log)

	if cfg.Cache.BloomCapacity > 0 {
		keys, err := store.Keys(ctx)
		if err != nil {
			log.Warn("failed to seed bloom filter", zap.Error(err))
		} else {
			cached.SeedBloom(keys, cfg.Cache.BloomCapacity, cfg.Cache.BloomFPRate)
		}
	}

	return cached, nil
}
