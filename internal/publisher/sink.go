package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/segmentio/kafka-go"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

const eventTypeHeader = "event_type"

// Sink delivers one outbox event to the message bus.
type Sink interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
	Close() error
}

// KafkaGoSink writes events with a segmentio/kafka-go writer. The order id is
// the message key so all events of one order land on one partition.
type KafkaGoSink struct {
	writer *kafka.Writer
}

func NewKafkaGoSink(topic string, brokers ...string) *KafkaGoSink {
	return &KafkaGoSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}}
}

func (s *KafkaGoSink) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload, // Already JSON from database
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(event.EventType)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka-go write: %w", err)
	}
	return nil
}

func (s *KafkaGoSink) Close() error {
	return s.writer.Close()
}

// SaramaSink writes events with a sarama SyncProducer.
type SaramaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaSink(topic string, brokers ...string) (*SaramaSink, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true // required by SyncProducer
	config.Producer.Timeout = 5 * time.Second
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start sarama producer: %w", err)
	}
	return NewSaramaSinkWithProducer(producer, topic), nil
}

func NewSaramaSinkWithProducer(producer sarama.SyncProducer, topic string) *SaramaSink {
	return &SaramaSink{producer: producer, topic: topic}
}

func (s *SaramaSink) Publish(_ context.Context, event *domain.OutboxEvent) error {
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.AggregateID),
		Value: sarama.ByteEncoder(event.Payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeader), Value: []byte(event.EventType)},
		},
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("sarama send: %w", err)
	}
	return nil
}

func (s *SaramaSink) Close() error {
	return s.producer.Close()
}
