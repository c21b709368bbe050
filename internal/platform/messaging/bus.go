package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	contractsv1 "vihadmin/contracts/gen/events/v1"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus publishes and consumes event envelopes over watermill. The same type
// serves the in-process gochannel transport and Kafka.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

// NewInProcessBus keeps messages inside the process. Nothing is persisted, so
// events published before a subscriber attaches are dropped.
func NewInProcessBus(logger *slog.Logger) *Bus {
	logger = resolveLogger(logger)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)
	return &Bus{publisher: pubSub, subscriber: pubSub, logger: logger}
}

// NewKafkaBus connects to brokers. consumerGroup names the group used by
// Subscribe.
func NewKafkaBus(brokers []string, consumerGroup string, logger *slog.Logger) (*Bus, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka bus requires at least one broker")
	}
	logger = resolveLogger(logger)
	wmLogger := watermill.NewSlogLogger(logger)

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         consumerGroup,
			OTELEnabled:           true,
		},
		wmLogger,
	)
	if err != nil {
		return nil, err
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers: brokers,
			Marshaler: kafka.NewWithPartitioningMarshaler(func(_ string, msg *message.Message) (string, error) {
				return msg.Metadata.Get("partition_key"), nil
			}),
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		wmLogger,
	)
	if err != nil {
		_ = subscriber.Close()
		return nil, err
	}

	return &Bus{publisher: publisher, subscriber: subscriber, logger: logger}, nil
}

func (b *Bus) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msgID := event.EventID
	if msgID == "" {
		msgID = watermill.NewUUID()
	}
	msg := message.NewMessage(msgID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", event.EventType)
	msg.Metadata.Set("partition_key", event.PartitionKey)

	if err := b.publisher.Publish(topic, msg); err != nil {
		return err
	}

	b.logger.Debug("event published",
		"event", "lifecycle_event_published",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
	)
	return nil
}

// Subscribe delivers envelopes from topic to handler until ctx is done. A
// handler error nacks the message so the transport redelivers it.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	handler func(context.Context, contractsv1.Envelope) error,
) error {
	messages, err := b.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event contractsv1.Envelope
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Error("event decode failed",
					"event", "lifecycle_event_decode_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"message_id", msg.UUID,
					"error", err.Error(),
				)
				msg.Ack()
				continue
			}
			if err := handler(msg.Context(), event); err != nil {
				b.logger.Warn("event handler failed",
					"event", "lifecycle_event_handler_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", event.EventID,
					"error", err.Error(),
				)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return errors.Join(b.publisher.Close(), b.subscriber.Close())
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
