package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/logger"
)

// Update 一条指标更新事件
type Update struct {
	ChainID    string  `json:"chain_id"`
	Address    string  `json:"address"`
	MetricName string  `json:"metric_name"`
	Value      float64 `json:"value"`
}

// Room 返回该更新对应的房间标识
func (u Update) Room() string {
	return u.ChainID + ":" + u.Address
}

// Sink 更新事件的投递目标
// 由 WebSocket 扇出层实现：房间投递 + 全局投递
type Sink interface {
	BroadcastRoom(roomID string, payload []byte)
	BroadcastAll(payload []byte)
}

// Config 消费者配置
type Config struct {
	Brokers []string // Kafka 地址
	Topic   string   // 主题
	Group   string   // 消费组
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("stream: at least one broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("stream: topic is required")
	}
	if c.Group == "" {
		return fmt.Errorf("stream: consumer group is required")
	}
	return nil
}

// Consumer 指标更新消费者
// 从 Kafka 消费集合指标更新并扇出到对应房间与全局
type Consumer struct {
	group sarama.ConsumerGroup
	topic string
	sink  Sink
	log   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Uint64
	failed    atomic.Uint64
}

// NewConsumer 创建消费者
func NewConsumer(cfg *Config, sink Sink, log logger.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("stream: sink is required")
	}
	if log == nil {
		log = logger.Default()
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.Group, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("stream: failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		group:  group,
		topic:  cfg.Topic,
		sink:   sink,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start 启动消费循环
func (c *Consumer) Start() {
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.log.Error("consumer group error", zap.Error(err))
		}
	}()

	go func() {
		defer c.wg.Done()
		for {
			// Consume 在 rebalance 后返回，需要循环重入
			if err := c.group.Consume(c.ctx, []string{c.topic}, c); err != nil {
				c.log.Error("consume session failed", zap.Error(err))
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
}

// Stop 停止消费并等待退出
func (c *Consumer) Stop() error {
	c.cancel()
	err := c.group.Close()
	c.wg.Wait()

	c.log.Info("stream consumer stopped",
		zap.Uint64("processed", c.processed.Load()),
		zap.Uint64("failed", c.failed.Load()),
	)
	return err
}

// Stats 返回已处理与失败的消息数
func (c *Consumer) Stats() (processed, failed uint64) {
	return c.processed.Load(), c.failed.Load()
}

// Setup 实现 sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sess sarama.ConsumerGroupSession) error {
	c.log.Info("consumer session started",
		zap.Any("claims", sess.Claims()),
	)
	return nil
}

// Cleanup 实现 sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 实现 sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.handleMessage(msg)
			sess.MarkMessage(msg, "")
		}
	}
}

// handleMessage 处理一条更新消息
// 格式错误或指标未知的消息记录后丢弃，不中断消费
func (c *Consumer) handleMessage(msg *sarama.ConsumerMessage) {
	var update Update
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		c.failed.Add(1)
		c.log.Warn("failed to unmarshal update",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	if update.ChainID == "" || update.Address == "" || !nft.IsMetricName(update.MetricName) {
		c.failed.Add(1)
		c.log.Warn("discarding invalid update",
			zap.String("chain_id", update.ChainID),
			zap.String("address", update.Address),
			zap.String("metric_name", update.MetricName),
		)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"metric_name": update.MetricName,
		"value":       update.Value,
	})
	if err != nil {
		c.failed.Add(1)
		return
	}

	// 集合房间与全局各投递一次
	c.sink.BroadcastRoom(update.Room(), payload)
	c.sink.BroadcastAll(payload)
	c.processed.Add(1)

	c.log.Debug("update fanned out",
		zap.String("room", update.Room()),
		zap.String("metric_name", update.MetricName),
		zap.Float64("value", update.Value),
	)
}
