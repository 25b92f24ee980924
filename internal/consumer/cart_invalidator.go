// Package consumer reads order events back from the bus.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/orderbuddy/orderbuddy/internal/cache"
	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// retryDelay is how long Run waits after a failed read before reading again.
const retryDelay = time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartInvalidator drops the cached cart of a customer whenever an
// OrderPlaced event arrives. The order transaction already deleted the cart
// rows; this repairs a cache entry that survived a failed in-process delete.
type CartInvalidator struct {
	reader     messageReader
	cache      cache.CartCache
	log        *slog.Logger
	retryDelay time.Duration
}

func NewCartInvalidator(c cache.CartCache, log *slog.Logger, topic, groupID string, brokers ...string) *CartInvalidator {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &CartInvalidator{
		reader:     reader,
		cache:      c,
		log:        log.With("component", "cart_invalidator"),
		retryDelay: retryDelay,
	}
}

func (p *CartInvalidator) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.ErrorContext(ctx, "error reading message", "error", err)
			if !p.wait(ctx) {
				return
			}
			continue
		}
		if err := p.handle(ctx, m); err != nil {
			p.log.WarnContext(ctx, "skipping message", "offset", m.Offset, "error", err)
		}
	}
}

// wait sleeps for the retry delay. It reports false if ctx ended first.
func (p *CartInvalidator) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *CartInvalidator) Close() error {
	return p.reader.Close()
}

var errMalformed = errors.New("malformed event")

func (p *CartInvalidator) handle(ctx context.Context, m kafka.Message) error {
	if eventType(m) != domain.EventOrderPlaced {
		return nil
	}

	var payload domain.OrderPlacedPayload
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if payload.CustomerID == "" {
		return fmt.Errorf("%w: missing customer_id", errMalformed)
	}

	if err := p.cache.Delete(ctx, payload.CustomerID); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
