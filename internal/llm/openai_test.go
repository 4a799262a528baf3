package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = &Schema{
	Name: "test_answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
		},
		"required":             []any{"answer"},
		"additionalProperties": false,
	},
}

func chatCompletionBody(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-5-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 5,
			"total_tokens":      15,
		},
	}
}

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAIProvider(Config{Backend: BackendOpenAI, APIKey: "test-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Generate_Success(t *testing.T) {
	var captured map[string]any
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"answer":"42"}`))
	})

	resp, err := p.Generate(context.Background(), UserPrompt("gpt-5-mini", "вопрос", testSchema))
	require.NoError(t, err)

	assert.JSONEq(t, `{"answer":"42"}`, string(resp.Content))
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	// Запрос должен включать strict json_schema
	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok, "response_format должен присутствовать")
	assert.Equal(t, "json_schema", format["type"])
	jsonSchema := format["json_schema"].(map[string]any)
	assert.Equal(t, "test_answer", jsonSchema["name"])
	assert.Equal(t, true, jsonSchema["strict"])
}

func TestOpenAIProvider_Generate_SchemaMismatch(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"wrong":1}`))
	})

	_, err := p.Generate(context.Background(), UserPrompt("gpt-5-mini", "вопрос", testSchema))
	require.Error(t, err)

	var invalid *ErrInvalidResponse
	require.True(t, errors.As(err, &invalid))
	assert.JSONEq(t, `{"wrong":1}`, string(invalid.Content))
	assert.JSONEq(t, `{"wrong":1}`, PayloadOf(err))
}

func TestOpenAIProvider_Generate_RateLimit(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`))
	})

	_, err := p.Generate(context.Background(), UserPrompt("gpt-5-mini", "вопрос", nil))
	require.Error(t, err)

	var rl *ErrRateLimit
	require.True(t, errors.As(err, &rl))
	assert.Contains(t, rl.Payload, "slow down")
}

func TestOpenAIProvider_Generate_ServerError(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := p.Generate(context.Background(), UserPrompt("gpt-5-mini", "вопрос", nil))
	require.Error(t, err)

	var unavail *ErrProviderUnavailable
	require.True(t, errors.As(err, &unavail))
	assert.Contains(t, PayloadOf(err), "boom")
}

func TestOpenAIProvider_Generate_ContextCanceled(t *testing.T) {
	p := newTestOpenAIProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"answer":"late"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, UserPrompt("gpt-5-mini", "вопрос", testSchema))
	require.Error(t, err)

	var unavail *ErrProviderUnavailable
	require.True(t, errors.As(err, &unavail))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewOpenAIProvider_Validation(t *testing.T) {
	_, err := NewOpenAIProvider(Config{Backend: BackendOpenAI})
	assert.Error(t, err, "пустой ключ должен отклоняться")

	_, err = NewOpenAIProvider(Config{Backend: BackendAzure, APIKey: "k"})
	assert.Error(t, err, "azure без endpoint должен отклоняться")

	_, err = NewOpenAIProvider(Config{Backend: "bedrock", APIKey: "k"})
	assert.Error(t, err)

	p, err := NewOpenAIProvider(Config{Backend: BackendAzure, APIKey: "k", Endpoint: "https://example.openai.azure.com", APIVersion: "2024-08-01-preview"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestMockProvider_FIFOAndValidation(t *testing.T) {
	boom := &ErrProviderUnavailable{Payload: "boom"}
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"answer":"a"}`)},
		MockResponse{Err: boom},
		MockResponse{Text: `{"nope":true}`},
	)

	resp, err := m.Generate(context.Background(), UserPrompt("m", "p1", testSchema))
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"a"}`, string(resp.Content))

	_, err = m.Generate(context.Background(), UserPrompt("m", "p2", testSchema))
	assert.ErrorIs(t, err, boom)

	_, err = m.Generate(context.Background(), UserPrompt("m", "p3", testSchema))
	var invalid *ErrInvalidResponse
	assert.True(t, errors.As(err, &invalid))

	// Очередь пуста
	_, err = m.Generate(context.Background(), UserPrompt("m", "p4", nil))
	var unavail *ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavail))

	assert.Equal(t, 4, m.CallCount())
	assert.Equal(t, "p2", m.Calls[1].Messages[0].Content)
}
