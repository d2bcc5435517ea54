package perception

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connsolve/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// fakeOpenAI serves /v1/chat/completions and records the last request.
func fakeOpenAI(t *testing.T, status int, body string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var last chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func completion(content string) string {
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(data)
}

func testOpenAIClient(url string) *OpenAIClient {
	cfg := DefaultOpenAIConfig("sk-test")
	cfg.BaseURL = url + "/v1/"
	cfg.Timeout = 5 * time.Second
	return NewOpenAIClientWithConfig(cfg, nil)
}

func TestOpenAIClient_CompleteWithSystem(t *testing.T) {
	srv, req := fakeOpenAI(t, http.StatusOK, completion("they are beans"))
	c := testOpenAIClient(srv.URL)

	got, err := c.CompleteWithSystem(context.Background(), "you play connections", "words: MUNG")
	require.NoError(t, err)
	assert.Equal(t, "they are beans", got)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Nil(t, req.ResponseFormat)
}

func TestOpenAIClient_CompleteJSON(t *testing.T) {
	srv, req := fakeOpenAI(t, http.StatusOK, completion(beansJSON))
	c := testOpenAIClient(srv.URL)

	got, err := c.CompleteJSON(context.Background(), "reply in JSON", "LONG_REASONING: beans")
	require.NoError(t, err)
	assert.JSONEq(t, beansJSON, got)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
}

func TestOpenAIClient_EmptySystemOmitted(t *testing.T) {
	srv, req := fakeOpenAI(t, http.StatusOK, completion("ok"))
	c := testOpenAIClient(srv.URL)

	_, err := c.CompleteWithSystem(context.Background(), "", "hello")
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		c := NewOpenAIClientWithConfig(DefaultOpenAIConfig(""), nil)
		_, err := c.CompleteWithSystem(context.Background(), "", "hi")
		require.ErrorIs(t, err, ErrNoAPIKey)
		assert.True(t, permanent(err))
	})

	t.Run("empty reply", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, http.StatusOK, completion("   "))
		_, err := testOpenAIClient(srv.URL).CompleteWithSystem(context.Background(), "", "hi")
		require.ErrorIs(t, err, ErrEmptyResponse)
		assert.False(t, permanent(err))
	})

	t.Run("unauthorized is permanent", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
		_, err := testOpenAIClient(srv.URL).CompleteWithSystem(context.Background(), "", "hi")
		require.Error(t, err)
		assert.True(t, permanent(err))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		srv, _ := fakeOpenAI(t, http.StatusInternalServerError, `{"error":{"message":"overloaded","type":"server_error"}}`)
		_, err := testOpenAIClient(srv.URL).CompleteWithSystem(context.Background(), "", "hi")
		require.Error(t, err)
		assert.False(t, permanent(err))
	})
}

func TestPermanent_PlainErrors(t *testing.T) {
	assert.False(t, permanent(errors.New("connection reset")))
	assert.False(t, permanent(context.DeadlineExceeded))
}

func TestProposer_OverOpenAI(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusOK, completion(beansJSON))
	c := testOpenAIClient(srv.URL)
	p, err := NewProposer(c, c, fastProposerConfig(), nil)
	require.NoError(t, err)

	prop, err := p.Propose(context.Background(), testWords(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "Types of beans.", prop.Rationale)
}

func TestOpenAIClient_TracksUsage(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusOK, completion("ok"))
	c := testOpenAIClient(srv.URL)
	tracker := usage.NewTracker("")
	ctx := usage.WithOperation(usage.NewContext(context.Background(), tracker), "reasoning")

	_, err := c.CompleteWithSystem(ctx, "", "hello")
	require.NoError(t, err)

	stats := tracker.Stats()
	assert.Equal(t, usage.TokenCounts{Calls: 1, Input: 10, Output: 5, Total: 15}, stats.Total)
	assert.Equal(t, int64(15), stats.ByModel["gpt-4o-mini"].Total)
	assert.Equal(t, int64(1), stats.ByOperation["reasoning"].Calls)
}
