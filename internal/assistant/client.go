// Package assistant proxies free-text questions to an OpenAI compatible chat
// completion endpoint. Answers are advisory and never change any state.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// ErrUnavailable is returned when no endpoint is configured, the breaker is
// open or the upstream call failed.
var ErrUnavailable = errors.New("assistant unavailable")

const historyLimit = 10

type Config struct {
	URL              string
	APIKey           string
	Model            string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Request struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

type Response struct {
	Response     string `json:"response"`
	Context      string `json:"context,omitempty"`
	UserLocation string `json:"user_location"`
}

type Client struct {
	cfg         Config
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[string]
	transcripts TranscriptStore
	log         *slog.Logger
}

func NewClient(cfg Config, transcripts TranscriptStore, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if transcripts == nil {
		transcripts = NopTranscriptStore{}
	}
	log = log.With("component", "assistant")

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "assistant",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		breaker:     breaker,
		transcripts: transcripts,
		log:         log,
	}
}

func SessionID(userID string) string {
	return "orderbuddy_" + userID
}

func (c *Client) Ask(ctx context.Context, user *domain.User, req Request) (*Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.Validationf("message is required")
	}
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("%w: not configured", ErrUnavailable)
	}

	session := SessionID(user.ID)
	history, err := c.transcripts.History(ctx, session, historyLimit)
	if err != nil {
		c.log.WarnContext(ctx, "failed to load transcript", "session_id", session, "error", err)
		history = nil
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt(user, req.Context)})
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Message})

	answer, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.log.ErrorContext(ctx, "assistant call failed", "session_id", session, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	err = c.transcripts.Append(ctx, session,
		Message{Role: "user", Content: req.Message},
		Message{Role: "assistant", Content: answer},
	)
	if err != nil {
		c.log.WarnContext(ctx, "failed to store transcript", "session_id", session, "error", err)
	}

	return &Response{
		Response:     answer,
		Context:      req.Context,
		UserLocation: user.Location.String(),
	}, nil
}

func systemPrompt(user *domain.User, extra string) string {
	var b strings.Builder
	b.WriteString("You are OrderBuddy AI Assistant, helping users with their shopping needs in Tamil Nadu. ")
	fmt.Fprintf(&b, "You are assisting a %s named %s from %s.", user.Role, user.Name, user.Location.String())
	if extra != "" {
		fmt.Fprintf(&b, "\nContext: %s", extra)
	}
	return b.String()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("upstream returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
