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

	"github.com/mlcook/chapterforge/internal/config"
)

func TestClassify_PromotesQuota(t *testing.T) {
	err := classify(KindOther, "gemini", "Resource has been exhausted: quota exceeded")
	assert.Equal(t, KindQuota, err.Kind)

	err = classify(KindTransport, "gemini", "connection refused")
	assert.Equal(t, KindTransport, err.Kind)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
	assert.Equal(t, KindQuota, KindOf(NewError(KindQuota, "gemini", "quota exceeded")))

	wrapped := &Error{Kind: KindTransport, Endpoint: "ollama", Message: "timeout"}
	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.False(t, IsQuota(wrapped))
	assert.True(t, IsQuota(NewError(KindQuota, "x", "y")))
}

func TestOllamaClient_SubmitPrompt(t *testing.T) {
	var gotBody ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "Edited paragraph.", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClient(config.LLMEndpointConfig{BaseURL: server.URL, Model: "llama3.1"}, 1, 0, nil)

	reply, err := client.SubmitPrompt(context.Background(), "Edit this.")
	require.NoError(t, err)
	assert.Equal(t, "Edited paragraph.", reply)
	assert.Equal(t, "llama3.1", gotBody.Model)
	assert.False(t, gotBody.Stream)
}

func TestOllamaClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(config.LLMEndpointConfig{BaseURL: server.URL, Model: "llama3.1"}, 1, 0, nil)

	_, err := client.SubmitPrompt(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestOllamaClient_QuotaInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Error: "daily quota exceeded"})
	}))
	defer server.Close()

	client := NewOllamaClient(config.LLMEndpointConfig{BaseURL: server.URL, Model: "llama3.1"}, 1, 0, nil)

	_, err := client.SubmitPrompt(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsQuota(err))
}

func TestGeminiClient_SubmitPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"A fine thesis."}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(config.LLMEndpointConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gemini-2.0-flash",
	}, 1, 0, nil)

	reply, err := client.SubmitPrompt(context.Background(), "State the thesis.")
	require.NoError(t, err)
	assert.Equal(t, "A fine thesis.", reply)
}

func TestGeminiClient_RateLimitIsQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded for model"}}`))
	}))
	defer server.Close()

	client := NewGeminiClient(config.LLMEndpointConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gemini-2.0-flash",
	}, 3, 0, nil)

	_, err := client.SubmitPrompt(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsQuota(err), "429 must classify as quota and not be retried")
}

func TestFakeClient(t *testing.T) {
	fake := &FakeClient{
		Script: []FakeReply{
			{Text: "first"},
			{Err: NewError(KindTransport, "fake", "down")},
		},
		Default: FakeReply{Text: "default"},
	}

	out, err := fake.SubmitPrompt(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	_, err = fake.SubmitPrompt(context.Background(), "b")
	assert.Error(t, err)

	out, err = fake.SubmitPrompt(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "default", out)

	assert.Equal(t, 3, fake.CallCount())
	assert.Equal(t, []string{"a", "b", "c"}, fake.Prompts)
}
