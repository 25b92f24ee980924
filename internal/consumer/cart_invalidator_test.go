package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"gotest.tools/v3/assert"

	"github.com/orderbuddy/orderbuddy/internal/cache"
	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/logger"
)

func setupTestRedis(t *testing.T) (cache.CartCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisCache(client), mr
}

func placedMessage(t *testing.T, customerID string) kafkaGo.Message {
	value, err := json.Marshal(domain.OrderPlacedPayload{OrderID: "order-1", CustomerID: customerID})
	require.NoError(t, err)
	return kafkaGo.Message{
		Key:     []byte("order-1"),
		Value:   value,
		Headers: []kafkaGo.Header{{Key: "event_type", Value: []byte(domain.EventOrderPlaced)}},
	}
}

func TestHandle_DeletesCachedCart(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "customer-1", []domain.CartItem{{ProductID: "p1", Quantity: 2}}))
	assert.Assert(t, mr.Exists("cart:customer-1"))

	p := &CartInvalidator{cache: c, log: logger.Discard()}
	require.NoError(t, p.handle(ctx, placedMessage(t, "customer-1")))

	assert.Assert(t, !mr.Exists("cart:customer-1"))
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "customer-1", []domain.CartItem{{ProductID: "p1", Quantity: 1}}))

	msg := placedMessage(t, "customer-1")
	msg.Headers[0].Value = []byte(domain.EventOrderStatusChanged)

	p := &CartInvalidator{cache: c, log: logger.Discard()}
	require.NoError(t, p.handle(ctx, msg))
	assert.Assert(t, mr.Exists("cart:customer-1"))
}

func TestHandle_MalformedPayload(t *testing.T) {
	c, _ := setupTestRedis(t)
	p := &CartInvalidator{cache: c, log: logger.Discard()}

	msg := placedMessage(t, "customer-1")
	msg.Value = []byte(`{invalid json`)
	err := p.handle(context.Background(), msg)
	assert.Assert(t, errors.Is(err, errMalformed))

	err = p.handle(context.Background(), placedMessage(t, ""))
	assert.Assert(t, errors.Is(err, errMalformed))
}

// brokenReader fails every read, like a reader whose brokers are gone.
type brokenReader struct {
	reads atomic.Int32
}

func (b *brokenReader) ReadMessage(context.Context) (kafkaGo.Message, error) {
	b.reads.Add(1)
	return kafkaGo.Message{}, errors.New("dial tcp: connection refused")
}

func (b *brokenReader) Close() error { return nil }

func TestRun_WaitsBetweenFailedReads(t *testing.T) {
	c, _ := setupTestRedis(t)
	reader := &brokenReader{}
	p := &CartInvalidator{reader: reader, cache: c, log: logger.Discard(), retryDelay: 50 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 220*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after the context ended")
	}

	reads := reader.reads.Load()
	assert.Assert(t, reads >= 2, "reads = %d", reads)
	assert.Assert(t, reads <= 6, "reads = %d", reads)
}

func TestRun_StopsDuringRetryWait(t *testing.T) {
	c, _ := setupTestRedis(t)
	reader := &brokenReader{}
	p := &CartInvalidator{reader: reader, cache: c, log: logger.Discard(), retryDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return reader.reads.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run kept waiting after cancel")
	}
	assert.Equal(t, int32(1), reader.reads.Load())
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

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestCartInvalidator_ConsumesFromKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()
	createTopic(t, brokerAddr, "order-events")
	time.Sleep(5 * time.Second)

	c, mr := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, c.Set(ctx, "customer-42", []domain.CartItem{{ProductID: "p1", Quantity: 1}}))

	writer := &kafkaGo.Writer{Addr: kafkaGo.TCP(brokerAddr), Topic: "order-events", Balancer: &kafkaGo.LeastBytes{}}
	defer writer.Close()
	require.NoError(t, writer.WriteMessages(ctx, placedMessage(t, "customer-42")))

	p := NewCartInvalidator(c, logger.Discard(), "order-events", "test-invalidator", brokerAddr)
	defer p.Close()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		return !mr.Exists("cart:customer-42")
	}, 25*time.Second, 200*time.Millisecond)
}
