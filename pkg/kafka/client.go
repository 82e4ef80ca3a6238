// Package kafka 提供了文档生命周期事件的生产者。
// 事件仅作为对下游系统的通知，发送失败不影响请求本身的结果。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"doc-theme-go/internal/config"
	"doc-theme-go/pkg/events"
	"doc-theme-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭 Kafka 生产者。
func CloseProducer() {
	if producer != nil {
		_ = producer.Close()
	}
}

// PublishDocumentEvent 发送一条文档生命周期事件。
// 仅记录失败日志，从不向调用方返回错误。
func PublishDocumentEvent(event events.DocumentEvent) {
	if producer == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化文档事件失败: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DocID),
		Value: eventBytes,
	}); err != nil {
		log.Errorf("发送文档事件失败 (type=%s, doc_id=%s): %v", event.Type, event.DocID, err)
	}
}
