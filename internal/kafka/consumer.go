package kafka

import (
	"context"
	"time"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/segmentio/kafka-go"
)

type Message = kafka.Message

// Reader is what the archiver needs from a consumer group member.
type Reader interface {
	Fetch(ctx context.Context) (Message, error)
	Commit(ctx context.Context, msgs ...Message) error
	Close() error
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader. Offsets are
// committed explicitly after the batch they belong to is stored.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(c config.KafkaConfig) *Consumer {
	min := c.MinBytes
	if min <= 0 {
		min = 1 << 10 // 1KB
	}
	max := c.MaxBytes
	if max <= 0 {
		max = 10 << 20 // 10MB
	}
	ci := time.Duration(c.CommitInterval) * time.Millisecond
	if ci <= 0 {
		ci = time.Second
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       min,
		MaxBytes:       max,
		CommitInterval: ci,
		MaxWait:        250 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{r: r}
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }
