package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaBus is an alternative bus backend for deployments that already run
// Kafka. Each logical channel maps to a topic. Subscriptions use a fresh
// consumer group per instance so every instance receives every event,
// matching the pub/sub fanout of the Redis backend.
type KafkaBus struct {
	brokers  []string
	producer sarama.SyncProducer
}

func NewKafkaBus(brokers []string) (*KafkaBus, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewManualPartitioner
	config.Version = sarama.V2_0_0_0
	config.ClientID = "chat-relay"

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaBus{brokers: brokers, producer: producer}, nil
}

func (b *KafkaBus) Publish(_ context.Context, channel string, payload []byte) error {
	// Single partition keeps per-publisher ordering.
	_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     channel,
		Partition: 0,
		Value:     sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func (b *KafkaBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       channel,
		GroupID:     "chat-relay-" + uuid.New().String(),
		StartOffset: kafka.LastOffset,
	})

	sub := &kafkaSubscription{
		reader:   reader,
		messages: make(chan []byte),
	}
	go sub.run(ctx)

	slog.Debug("Subscribed to topic", "topic", channel)
	return sub, nil
}

func (b *KafkaBus) Close() error {
	return b.producer.Close()
}

type kafkaSubscription struct {
	reader   *kafka.Reader
	messages chan []byte
}

func (s *kafkaSubscription) run(ctx context.Context) {
	defer close(s.messages)
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			// Reader closed or context cancelled.
			return
		}
		s.messages <- msg.Value
	}
}

func (s *kafkaSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *kafkaSubscription) Close() error {
	return s.reader.Close()
}
