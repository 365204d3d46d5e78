package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/goalpilot/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ChatConfig{
		URL:            srv.URL,
		TimeoutSeconds: 5,
		Retries:        3,
		RetryDelayMs:   1,
	}, srv.Client())
}

func TestSend_PostsQuestionWithSessionID(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		_, _ = w.Write([]byte(`{"text":"Hello! How can I help you today?"}`))
	})

	reply, err := client.Send(context.Background(), "sess-1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you today?", reply.Text)
	assert.Equal(t, "Hi", gotBody["question"])

	override, ok := gotBody["overrideConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sess-1", override["sessionId"])
}

func TestSend_TextUnderAlternateKeys(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"answer key", `{"answer":"two pm works"}`, "two pm works"},
		{"response key", `{"response":"booked"}`, "booked"},
		{"output key", `{"output":"done"}`, "done"},
		{"raw string body", `"plain string reply"`, "plain string reply"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			reply, err := client.Send(context.Background(), "s", "q")
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Text)
		})
	}
}

func TestSend_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"text":"recovered"}`))
	})

	reply, err := client.Send(context.Background(), "s", "q")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_SurfacesLastErrorAfterRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Send(context.Background(), "s", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}
