package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shopify/sarama"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// KafkaReceiver consumes readings from a Kafka topic via a consumer group.
type KafkaReceiver struct {
	group  sarama.ConsumerGroup
	topic  string
	logger *slog.Logger
}

// Compile-time interface check.
var _ Source = (*KafkaReceiver)(nil)

// NewKafkaReceiver creates a consumer group for the given brokers and topic.
func NewKafkaReceiver(brokers []string, topic, groupID string, logger *slog.Logger) (*KafkaReceiver, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	cfg.Consumer.MaxWaitTime = 250 * time.Millisecond

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &KafkaReceiver{
		group:  group,
		topic:  topic,
		logger: logger,
	}, nil
}

// Events consumes the topic and pushes parsed events into a bounded
// channel until the context is cancelled. Malformed messages are marked
// and skipped.
func (r *KafkaReceiver) Events(ctx context.Context) <-chan event.Event {
	out := make(chan event.Event, eventBuffer)

	go func() {
		for err := range r.group.Errors() {
			if r.logger != nil {
				r.logger.Warn("consumer group error",
					slog.String("error", err.Error()))
			}
		}
	}()

	go func() {
		defer close(out)

		handler := &claimHandler{out: out, logger: r.logger}
		for {
			if err := r.group.Consume(ctx, []string{r.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				if r.logger != nil {
					r.logger.Warn("consume failed",
						slog.String("error", err.Error()))
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out
}

// Close shuts down the consumer group.
func (r *KafkaReceiver) Close() error {
	return r.group.Close()
}

// claimHandler implements sarama.ConsumerGroupHandler.
type claimHandler struct {
	out    chan<- event.Event
	logger *slog.Logger
}

func (h *claimHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *claimHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if session.Context().Err() != nil {
			return session.Context().Err()
		}

		evt, err := decodeEvent(message.Value)
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("skipping malformed message",
					slog.String("error", err.Error()))
			}
			session.MarkMessage(message, "")
			continue
		}

		select {
		case h.out <- evt:
		case <-session.Context().Done():
			return session.Context().Err()
		}
		session.MarkMessage(message, "")
	}
	return nil
}
