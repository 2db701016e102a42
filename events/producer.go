package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/utils"
)

// EventResolutionApplied 处理记录事件类型
const EventResolutionApplied = "duplicate_alert.resolved"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig 处理记录发布者配置
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Producer 将处理记录发布到 Kafka，供通知和审计服务消费
type Producer struct {
	writer messageWriter
	topic  string
}

// ResolutionEvent 发布到 Kafka 的消息体
type ResolutionEvent struct {
	EventType  string             `json:"event_type"`
	Resolution *models.Resolution `json:"resolution"`
	Timestamp  time.Time          `json:"timestamp"`
}

// NewProducer 创建处理记录发布者
func NewProducer(cfg ProducerConfig) *Producer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		topic:  cfg.Topic,
	}
}

// Close 关闭发布者
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishResolution 发布处理记录，以预警ID作为消息键保证同一预警的消息有序
func (p *Producer) PublishResolution(ctx context.Context, res *models.Resolution) error {
	msg, err := buildResolutionMessage(p.topic, res, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		utils.Logger.Error().Err(err).Str("alertId", res.AlertID).Msg("发布处理记录失败")
		return err
	}

	utils.Logger.Debug().
		Str("alertId", res.AlertID).
		Str("action", string(res.Action)).
		Msg("已发布处理记录")
	return nil
}

func buildResolutionMessage(topic string, res *models.Resolution, now time.Time) (kafka.Message, error) {
	data, err := json.Marshal(ResolutionEvent{
		EventType:  EventResolutionApplied,
		Resolution: res,
		Timestamp:  now,
	})
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(res.AlertID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventResolutionApplied)},
			{Key: "action", Value: []byte(res.Action)},
			{Key: "schema_version", Value: []byte("1.0")},
		},
	}, nil
}
