package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/BerniceZTT/leadops/metrics"
	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"
)

// AlertIngester 接收检测事件的服务
type AlertIngester interface {
	IngestAlert(ctx context.Context, event models.DetectorEvent, source string) (*models.DuplicateAlert, bool, error)
}

// ConsumerConfig 检测事件消费者配置
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// 存储错误时原地重试的退避区间
const (
	retryInitialBackoff = 500 * time.Millisecond
	retryMaxBackoff     = 30 * time.Second
)

// Consumer 消费重复检测服务推送的事件
type Consumer struct {
	reader     *kafka.Reader
	ingester   AlertIngester
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewConsumer 创建检测事件消费者
func NewConsumer(cfg ConsumerConfig, ingester AlertIngester) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:     reader,
		ingester:   ingester,
		backoff:    retryInitialBackoff,
		maxBackoff: retryMaxBackoff,
	}
}

// Start 开始消费
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	utils.Logger.Info().Str("topic", c.reader.Config().Topic).Msg("Kafka消费者已启动")
	return nil
}

// Stop 停止消费并关闭连接
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				utils.Logger.Info().Msg("Kafka消费循环退出")
				return
			}
			utils.Logger.Error().Err(err).Msg("拉取消息失败")
			continue
		}

		// 位移只向前推进，失败的消息必须在拉取下一条之前处理完
		if !c.processWithRetry(ctx, msg) {
			utils.Logger.Info().Int64("offset", msg.Offset).Msg("Kafka消费循环退出，消息未提交")
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			utils.Logger.Error().Err(err).Int64("offset", msg.Offset).Msg("提交消息失败")
		}
	}
}

// processWithRetry 存储错误时按指数退避重试同一条消息，直到成功或 ctx 取消。
// 返回 false 表示 ctx 已取消，消息未处理完。
func (c *Consumer) processWithRetry(ctx context.Context, msg kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		if c.handleMessage(ctx, msg) {
			return true
		}
		utils.Logger.Warn().
			Int64("offset", msg.Offset).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("检测事件处理失败，稍后重试")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		wait *= 2
		if c.maxBackoff > 0 && wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
}

// handleMessage 处理单条消息，返回是否提交位移。
// 无法解析或校验失败的消息直接提交，存储错误不提交。
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) bool {
	log := utils.Logger.With().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	var event models.DetectorEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.RecordIngest(metrics.SourceKafka, metrics.OutcomeInvalidInput)
		log.Warn().Err(err).Msg("无法解析检测事件，跳过")
		return true
	}

	alert, created, err := c.ingester.IngestAlert(ctx, event, metrics.SourceKafka)
	switch {
	case err == nil:
		log.Debug().Str("alertId", alert.ID).Bool("created", created).Msg("检测事件处理完成")
		return true
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNotFound):
		log.Warn().Err(err).Msg("检测事件无效，跳过")
		return true
	default:
		log.Error().Err(err).Msg("检测事件处理失败")
		return false
	}
}
