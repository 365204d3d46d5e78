// Package chat talks to the remote conversational agent under test.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/metalagman/goalpilot/internal/config"
	"github.com/metalagman/goalpilot/internal/logging"
	"github.com/metalagman/goalpilot/internal/model"
)

// Reply is one normalized agent response.
type Reply struct {
	Text      string           `json:"text"`
	ToolCalls []model.ToolCall `json:"tool_calls,omitempty"`
	Raw       json.RawMessage  `json:"raw,omitempty"`
}

// Sender is the outbound surface the orchestrator depends on.
type Sender interface {
	Send(ctx context.Context, sessionID, question string) (Reply, error)
}

// Client posts questions to the chat endpoint with retry on transport errors.
type Client struct {
	url        string
	retries    int
	retryDelay time.Duration
	hc         *http.Client
	log        zerolog.Logger
}

// NewClient constructs a chat client from config.
func NewClient(cfg config.ChatConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout()}
	}
	return &Client{
		url:        cfg.URL,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay(),
		hc:         hc,
		log:        logging.Component("chat"),
	}
}

type sendBody struct {
	Question       string         `json:"question"`
	OverrideConfig overrideConfig `json:"overrideConfig"`
}

type overrideConfig struct {
	SessionID string `json:"sessionId"`
}

// Send posts one question and returns the normalized reply. Transport errors
// are retried with linearly increasing delay; the last error is surfaced.
func (c *Client) Send(ctx context.Context, sessionID, question string) (Reply, error) {
	payload, err := json.Marshal(sendBody{
		Question:       question,
		OverrideConfig: overrideConfig{SessionID: sessionID},
	})
	if err != nil {
		return Reply{}, fmt.Errorf("marshal chat request: %w", err)
	}

	attempts := c.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * c.retryDelay
			c.log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying send")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Reply{}, ctx.Err()
			}
		}

		body, err := c.post(ctx, payload)
		if err != nil {
			lastErr = err
			continue
		}
		return parseReply(body), nil
	}
	return Reply{}, fmt.Errorf("chat send failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// parseReply accepts either a JSON object or a raw string body. The
// assistant text may live under any of text, answer, response, or output.
func parseReply(body []byte) Reply {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return Reply{Text: s, Raw: body}
		}
		return Reply{Text: string(body), Raw: body}
	}

	reply := Reply{Raw: body}
	for _, key := range []string{"text", "answer", "response", "output"} {
		if s, ok := obj[key].(string); ok && s != "" {
			reply.Text = s
			break
		}
	}
	reply.ToolCalls = NormalizeToolCalls(reply.Text, obj)
	return reply
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
