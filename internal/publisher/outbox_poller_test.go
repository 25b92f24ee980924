package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/logger"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*domain.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []uuid.UUID
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var out []*domain.OutboxEvent
	for _, ev := range m.OutboxEvents {
		if !m.processed(ev.ID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ProcessedIDs)
}

func (m *MockRepository) processed(id uuid.UUID) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockSink struct {
	Published []*domain.OutboxEvent
	FailOn    uuid.UUID
}

func (s *MockSink) Publish(_ context.Context, event *domain.OutboxEvent) error {
	if event.ID == s.FailOn {
		return errors.New("broker unavailable")
	}
	s.Published = append(s.Published, event)
	return nil
}

func (s *MockSink) Close() error { return nil }

func newEvent(orderID string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: orderID,
		EventType:   domain.EventOrderPlaced,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%q,"customer_id":"customer-1"}`, orderID)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	first, second := newEvent("order-1"), newEvent("order-2")
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{first, second}}
	sink := &MockSink{}

	poller := NewOutboxPoller(repo, sink, logger.Discard())
	poller.processUnpublishedEvents(context.Background())

	require.Len(t, sink.Published, 2)
	assert.Equal(t, "order-1", sink.Published[0].AggregateID)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_StopsAtFirstFailure(t *testing.T) {
	first, second := newEvent("order-1"), newEvent("order-2")
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{first, second}}
	sink := &MockSink{FailOn: first.ID}

	poller := NewOutboxPoller(repo, sink, logger.Discard())
	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, sink.Published)
	assert.Empty(t, repo.ProcessedIDs)

	// next tick retries the same event
	sink.FailOn = uuid.Nil
	poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{FetchErr: errors.New("database connection error")}
	sink := &MockSink{}

	poller := NewOutboxPoller(repo, sink, logger.Discard())
	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, sink.Published)
}

func TestProcessUnpublishedEvents_MarkErrorRepublishesLater(t *testing.T) {
	ev := newEvent("order-1")
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{ev}, MarkErr: errors.New("tx aborted")}
	sink := &MockSink{}

	poller := NewOutboxPoller(repo, sink, logger.Discard())
	poller.processUnpublishedEvents(context.Background())
	repo.MarkErr = nil
	poller.processUnpublishedEvents(context.Background())

	assert.Len(t, sink.Published, 2)
	assert.Equal(t, []uuid.UUID{ev.ID}, repo.ProcessedIDs)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ev := newEvent("order-1")
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{ev}}
	sink := &MockSink{}
	poller := NewOutboxPoller(repo, sink, logger.Discard())
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return repo.processedCount() == 1
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestSaramaSink_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	ev := newEvent("order-7")
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-7" {
			return fmt.Errorf("unexpected key %q", key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != domain.EventOrderPlaced {
			return errors.New("missing event_type header")
		}
		return nil
	})

	sink := NewSaramaSinkWithProducer(producer, "order-events")
	require.NoError(t, sink.Publish(context.Background(), ev))
	require.NoError(t, sink.Close())
}

func TestSaramaSink_PublishError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewSaramaSinkWithProducer(producer, "order-events")
	err := sink.Publish(context.Background(), newEvent("order-8"))
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, sink.Close())
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, "order-events")
	time.Sleep(5 * time.Second)

	ev := newEvent("order-123")
	repo := &MockRepository{OutboxEvents: []*domain.OutboxEvent{ev}}
	sink := NewKafkaGoSink("order-events", brokerAddr)
	defer sink.Close()

	poller := NewOutboxPoller(repo, sink, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    "order-events",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	assert.Equal(t, "order-123", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, domain.EventOrderPlaced, string(msg.Headers[0].Value))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "customer-1", payload["customer_id"])

	require.Eventually(t, func() bool {
		return repo.processedCount() == 1
	}, 5*time.Second, 100*time.Millisecond)
}
