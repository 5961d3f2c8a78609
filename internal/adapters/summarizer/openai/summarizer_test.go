package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-priority/internal/adapters/summarizer"
	"github.com/mikey/mail-priority/internal/core"
)

func TestSummarize(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  The CEO needs a budget sign-off today.  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 9, "total_tokens": 19}
		}`))
	}))
	defer srv.Close()

	s := New(Options{APIKey: "sk-test", BaseURL: srv.URL, ModelName: "gpt-4o-mini", MaxTokens: 400}, nil, nil)
	text, err := s.Summarize(context.Background(), &core.Briefing{Digest: &core.Digest{}})
	require.NoError(t, err)

	assert.Equal(t, "The CEO needs a budget sign-off today.", text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 400, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, summarizer.SystemPrompt, got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "Top priorities")
}

func TestSummarize_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "chatcmpl-2", "choices": []}`))
	}))
	defer srv.Close()

	s := New(Options{APIKey: "sk-test", BaseURL: srv.URL}, nil, nil)
	_, err := s.Summarize(context.Background(), &core.Briefing{})
	assert.ErrorIs(t, err, summarizer.ErrEmptyResponse)
}

func TestSummarize_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	s := New(Options{APIKey: "sk-bad", BaseURL: srv.URL}, nil, nil)
	_, err := s.Summarize(context.Background(), &core.Briefing{})
	assert.ErrorContains(t, err, "Incorrect API key provided")
}
