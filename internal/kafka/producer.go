package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cupgame/telemetry/config"
	"github.com/cupgame/telemetry/internal/model"
)

type Producer struct {
	writer         *kafka.Writer
	ctx            context.Context
	partitionCount int
}

func NewProducer() (*Producer, error) {
	ctx := context.Background()

	conn, err := kafka.DialLeader(ctx, "tcp", config.AppConfig.Kafka.Brokers[0], config.AppConfig.Kafka.Topic, 0)
	if err != nil {
		return nil, fmt.Errorf("dial kafka leader: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("read partitions: %w", err)
	}

	topicPartitions := 0
	for _, p := range partitions {
		if p.Topic == config.AppConfig.Kafka.Topic {
			topicPartitions++
		}
	}

	zap.L().Info("Producer connected",
		zap.String("topic", config.AppConfig.Kafka.Topic),
		zap.Int("partitions", topicPartitions))

	// Hash balancer routes every message with the same key to the same
	// partition, which preserves per-user ordering. Async mode hands messages
	// to a background batch; the request path never waits for broker acks.
	// Append failures surface only through the completion callback, which
	// logs them — by then the HTTP response has already been sent.
	writer := &kafka.Writer{
		Addr:     kafka.TCP(config.AppConfig.Kafka.Brokers...),
		Topic:    config.AppConfig.Kafka.Topic,
		Balancer: &kafka.Hash{},
		Async:    true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				zap.L().Error("Failed to publish game actions",
					zap.Int("count", len(messages)),
					zap.Error(err))
				return
			}
			for _, m := range messages {
				zap.L().Debug("Published game action",
					zap.ByteString("key", m.Key),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset))
			}
		},
	}

	return &Producer{
		writer:         writer,
		ctx:            ctx,
		partitionCount: topicPartitions,
	}, nil
}

// PublishGameAction serializes the envelope and hands it to the async writer,
// keyed by userId. An empty userId is still published (with an empty key);
// downstream handles the degenerate key.
func (p *Producer) PublishGameAction(event *model.GameAction) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal game action: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(p.ctx, msg); err != nil {
		return fmt.Errorf("enqueue game action: %w", err)
	}

	return nil
}

// PartitionCount reports the number of partitions discovered at startup.
func (p *Producer) PartitionCount() int {
	return p.partitionCount
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
