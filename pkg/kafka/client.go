// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// EventIndexer 定义了消费端对审计事件的处理接口。
// 这使消费者与具体的索引实现（Elasticsearch）解耦。
type EventIndexer interface {
	IndexAuditEvent(ctx context.Context, event tasks.AuditEvent) error
}

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

// ProduceAuditEvent 发送一个审计事件到 Kafka。
// 审计链路是尽力而为的：发送失败只记日志，不影响请求主流程。
func ProduceAuditEvent(event tasks.AuditEvent) error {
	if producer == nil {
		return nil
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return producer.WriteMessages(ctx, kafka.Message{Value: eventBytes})
}

// StartConsumer 启动一个 Kafka 消费者，把审计事件写入审计索引。
func StartConsumer(cfg config.KafkaConfig, indexer EventIndexer) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "fin-advisor-audit-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var event tasks.AuditEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		if err := indexer.IndexAuditEvent(context.Background(), event); err != nil {
			// 审计写入失败不重试：索引不可用时丢弃事件并提交 offset，主业务数据仍在 MySQL
			log.Errorf("索引审计事件失败: type=%s, user=%d, err=%v", event.Type, event.UserID, err)
		}
		if err := r.CommitMessages(context.Background(), m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
