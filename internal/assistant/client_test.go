package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbuddy/orderbuddy/internal/domain"
	"github.com/orderbuddy/orderbuddy/internal/logger"
)

type memoryTranscripts struct {
	mu   sync.Mutex
	msgs map[string][]Message
	err  error
}

func newMemoryTranscripts() *memoryTranscripts {
	return &memoryTranscripts{msgs: map[string][]Message{}}
}

func (m *memoryTranscripts) Append(_ context.Context, sessionID string, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs[sessionID] = append(m.msgs[sessionID], msgs...)
	return nil
}

func (m *memoryTranscripts) History(_ context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.msgs[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]Message(nil), all...), nil
}

var testUser = &domain.User{
	ID:   "user-1",
	Name: "Kavya",
	Role: domain.RoleCustomer,
	Location: domain.Location{
		District:    "Chennai",
		Taluk:       "Chennai South",
		VillageCity: "Adyar",
	},
}

func chatServer(t *testing.T, answer string, got *[]chatRequest) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		*got = append(*got, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + answer + `"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAsk_ReturnsAnswerWithLocation(t *testing.T) {
	var got []chatRequest
	srv := chatServer(t, "Try the rice at Murugan Stores.", &got)
	transcripts := newMemoryTranscripts()
	c := NewClient(Config{URL: srv.URL, APIKey: "test-key", Model: "gpt-4o-mini"}, transcripts, logger.Discard())

	resp, err := c.Ask(context.Background(), testUser, Request{Message: "Where can I buy rice?", Context: "shopping"})
	require.NoError(t, err)

	assert.Equal(t, "Try the rice at Murugan Stores.", resp.Response)
	assert.Equal(t, "shopping", resp.Context)
	assert.Equal(t, "Adyar, Chennai South, Chennai", resp.UserLocation)

	require.Len(t, got, 1)
	assert.Equal(t, "gpt-4o-mini", got[0].Model)
	require.Len(t, got[0].Messages, 2)
	assert.Equal(t, "system", got[0].Messages[0].Role)
	assert.Contains(t, got[0].Messages[0].Content, "Adyar, Chennai South, Chennai")
	assert.Equal(t, "Where can I buy rice?", got[0].Messages[1].Content)

	history, _ := transcripts.History(context.Background(), "orderbuddy_user-1", 10)
	require.Len(t, history, 2)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestAsk_SendsPriorTranscript(t *testing.T) {
	var got []chatRequest
	srv := chatServer(t, "ok", &got)
	c := NewClient(Config{URL: srv.URL, APIKey: "test-key"}, newMemoryTranscripts(), logger.Discard())

	_, err := c.Ask(context.Background(), testUser, Request{Message: "first"})
	require.NoError(t, err)
	_, err = c.Ask(context.Background(), testUser, Request{Message: "second"})
	require.NoError(t, err)

	require.Len(t, got, 2)
	msgs := got[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "ok", msgs[2].Content)
	assert.Equal(t, "second", msgs[3].Content)
}

func TestAsk_TranscriptFailureDoesNotFailCall(t *testing.T) {
	var got []chatRequest
	srv := chatServer(t, "ok", &got)
	transcripts := newMemoryTranscripts()
	transcripts.err = errors.New("mongo down")
	c := NewClient(Config{URL: srv.URL, APIKey: "test-key"}, transcripts, logger.Discard())

	resp, err := c.Ask(context.Background(), testUser, Request{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Response)
}

func TestAsk_Validation(t *testing.T) {
	c := NewClient(Config{URL: "http://unused"}, nil, logger.Discard())
	_, err := c.Ask(context.Background(), testUser, Request{Message: "   "})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAsk_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, nil, logger.Discard())
	_, err := c.Ask(context.Background(), testUser, Request{Message: "hi"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestAsk_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, FailureThreshold: 2, OpenTimeout: time.Minute}, nil, logger.Discard())

	for i := 0; i < 2; i++ {
		_, err := c.Ask(context.Background(), testUser, Request{Message: "hi"})
		require.ErrorIs(t, err, ErrUnavailable)
	}
	require.EqualValues(t, 2, calls.Load())

	_, err := c.Ask(context.Background(), testUser, Request{Message: "hi"})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 2, calls.Load(), "open breaker must not reach upstream")
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "orderbuddy_42", SessionID("42"))
}
