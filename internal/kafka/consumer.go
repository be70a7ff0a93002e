package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cupgame/telemetry/config"
	"github.com/cupgame/telemetry/internal/model"
)

// Consumer runs a bounded number of consumer-group workers over the game
// action topic. The group coordinator assigns each partition to exactly one
// reader, so per-user order is preserved within a lane while lanes across
// partitions run fully in parallel. Delivery is at-least-once: an event read
// but not fully projected before a crash or rebalance will be redelivered.
type Consumer struct {
	readers []*kafka.Reader
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type MessageHandler func(event *model.GameAction) error

func NewConsumer() (*Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	conn, err := kafka.DialLeader(ctx, "tcp", config.AppConfig.Kafka.Brokers[0], config.AppConfig.Kafka.Topic, 0)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial kafka leader: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("read partitions: %w", err)
	}

	topicPartitions := 0
	for _, p := range partitions {
		if p.Topic == config.AppConfig.Kafka.Topic {
			topicPartitions++
		}
	}

	// More readers than partitions would just idle in the group, so the
	// fan-out is clamped to the partition count.
	fanOut := config.AppConfig.Kafka.FanOut
	if fanOut < 1 {
		fanOut = 1
	}
	if topicPartitions > 0 && fanOut > topicPartitions {
		zap.L().Info("Clamping consumer fan-out to partition count",
			zap.Int("fan_out", fanOut),
			zap.Int("partitions", topicPartitions))
		fanOut = topicPartitions
	}

	readers := make([]*kafka.Reader, 0, fanOut)
	for i := 0; i < fanOut; i++ {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  config.AppConfig.Kafka.Brokers,
			Topic:    config.AppConfig.Kafka.Topic,
			GroupID:  config.AppConfig.Kafka.GroupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}))
	}

	zap.L().Info("Consumer group configured",
		zap.String("topic", config.AppConfig.Kafka.Topic),
		zap.String("group_id", config.AppConfig.Kafka.GroupID),
		zap.Int("partitions", topicPartitions),
		zap.Int("workers", fanOut))

	return &Consumer{
		readers: readers,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// StartConsuming launches one worker goroutine per group reader.
func (c *Consumer) StartConsuming(handler MessageHandler) {
	for i, reader := range c.readers {
		c.wg.Add(1)
		go func(workerID int, r *kafka.Reader) {
			defer c.wg.Done()
			c.consumeMessages(workerID, r, handler)
		}(i, reader)
	}

	zap.L().Info("Consumer workers started", zap.Int("count", len(c.readers)))
}

func (c *Consumer) consumeMessages(workerID int, reader *kafka.Reader, handler MessageHandler) {
	for {
		select {
		case <-c.ctx.Done():
			zap.L().Info("Consumer worker stopping", zap.Int("worker", workerID))
			return
		default:
			m, err := reader.FetchMessage(c.ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				zap.L().Error("Failed to fetch message",
					zap.Int("worker", workerID),
					zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			var event model.GameAction
			if err := json.Unmarshal(m.Value, &event); err != nil {
				zap.L().Error("Failed to decode game action, skipping",
					zap.Int("worker", workerID),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
					zap.Error(err))
			} else if err := handler(&event); err != nil {
				// Handler failures are logged and the event is given up on;
				// no dead-letter path exists.
				zap.L().Error("Failed to process game action",
					zap.Int("worker", workerID),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
					zap.Error(err))
			}

			// Offsets commit only after the handler ran: a crash between
			// fetch and commit means redelivery, never loss.
			if err := reader.CommitMessages(c.ctx, m); err != nil {
				zap.L().Error("Failed to commit offset",
					zap.Int("worker", workerID),
					zap.Int("partition", m.Partition),
					zap.Int64("offset", m.Offset),
					zap.Error(err))
			}
		}
	}
}

// Stop cancels all workers, waits for them, and closes the readers.
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()

	for i, reader := range c.readers {
		if err := reader.Close(); err != nil {
			zap.L().Error("Failed to close reader", zap.Int("worker", i), zap.Error(err))
		}
	}

	zap.L().Info("Consumer stopped")
	return nil
}
