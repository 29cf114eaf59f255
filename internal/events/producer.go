package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/curation-go/internal/logger"
	"go.uber.org/zap"
)

// WorkflowEvent 工作流审计事件，记录文档与分块的每次状态转换
type WorkflowEvent struct {
	EntityType string    `json:"entity_type"` // document / chunk
	EntityID   uint      `json:"entity_id"`
	DocType    string    `json:"doc_type,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    uint      `json:"actor_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Producer Kafka事件生产者。未启用时为nil，所有方法nil安全，
// 事件发布是尽力而为的，失败不影响工作流。
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

var globalProducer *Producer

// InitProducer 初始化Kafka生产者
func InitProducer(brokers []string, topic string) error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}

	globalProducer = &Producer{
		producer: producer,
		topic:    topic,
	}

	logger.Info("kafka producer initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return nil
}

// GetProducer 获取全局生产者实例，未初始化时返回nil
func GetProducer() *Producer {
	return globalProducer
}

// PublishTransition 发布一次状态转换事件，失败只记录不返回
func (p *Producer) PublishTransition(event WorkflowEvent) {
	if p == nil || p.producer == nil {
		return
	}

	event.Timestamp = time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn("failed to marshal workflow event", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%s-%d", event.EntityType, event.EntityID)),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		logger.Warn("failed to publish workflow event",
			zap.String("entityType", event.EntityType),
			zap.Uint("entityID", event.EntityID),
			zap.Error(err))
	}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
