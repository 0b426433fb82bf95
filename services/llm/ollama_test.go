package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) (*OllamaClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &OllamaClient{
		httpClient: server.Client(),
		baseURL:    server.URL,
		model:      "test-model",
	}, server
}

func TestOllamaChatSuccess(t *testing.T) {
	client, _ := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.False(t, req.Stream, "stream should be disabled")
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: chatMessage{Role: "assistant", Content: "hello there"},
			Done:    true,
		})
	})

	out, err := client.Chat(context.Background(), "be brief", "hi", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

func TestOllamaChatEmptyResponse(t *testing.T) {
	client, _ := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: chatMessage{Role: "assistant", Content: "   "},
			Done:    true,
		})
	})

	_, err := client.Chat(context.Background(), "s", "u", 0)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllamaChatTransportError(t *testing.T) {
	client, server := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := client.Chat(context.Background(), "s", "u", 0)
	require.Error(t, err)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "ollama", callErr.Backend)
}

func TestOllamaChatServerError(t *testing.T) {
	client, _ := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	})

	_, err := client.Chat(context.Background(), "s", "u", 0)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
}

func TestOllamaChatRespectsContext(t *testing.T) {
	client, _ := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: chatMessage{Role: "assistant", Content: "too late"},
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, "s", "u", 0)
	require.Error(t, err, "expected context deadline error")
}
