package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

var newSyncProducer = sarama.NewSyncProducer

// Producer publishes match jobs keyed by delivery id, so every job of one
// delivery lands on the same partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   logx.Logger
}

// NewProducer creates a producer. It returns nil, nil when Kafka is not configured.
func NewProducer(logger logx.Logger, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	p, err := newSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(p, topic, logger), nil
}

// NewProducerFrom wraps an existing sarama producer.
func NewProducerFrom(p sarama.SyncProducer, topic string, logger logx.Logger) *Producer {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Producer{producer: p, topic: topic, logger: logger}
}

// EnqueueMatch publishes job. It returns once the broker acknowledged the
// message, not when the job ran.
func (p *Producer) EnqueueMatch(ctx context.Context, job domain.MatchJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(FromDomain(job))
	if err != nil {
		return fmt.Errorf("encode match job: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(job.DeliveryID),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return fmt.Errorf("publish match job %s: %w", job.DeliveryID, err)
	}

	p.logger.Debug("match job published",
		logx.String("delivery_id", job.DeliveryID),
		logx.String("reason", string(job.Reason)),
		logx.Int64("partition", int64(partition)),
		logx.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
