package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-syllabus/open-syllabus-sub001/config"
)

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `{"summary":"ok"}`}},
			},
		})
	}))
	defer server.Close()

	c := NewClient(&config.LLMConfig{BaseURL: server.URL, APIKey: "test-key", Model: "gpt-4o-mini"})

	got, err := c.Complete(context.Background(), "analyze this", "Student: hi")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, got)
}

func TestClient_Complete_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		c := NewClient(&config.LLMConfig{Model: "gpt-4o-mini"})
		_, err := c.Complete(context.Background(), "s", "u")
		assert.Error(t, err)
	})

	t.Run("provider error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
		}))
		defer server.Close()

		c := NewClient(&config.LLMConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})
		_, err := c.Complete(context.Background(), "s", "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
		}))
		defer server.Close()

		c := NewClient(&config.LLMConfig{BaseURL: server.URL, APIKey: "k", Model: "m"})
		_, err := c.Complete(context.Background(), "s", "u")
		assert.Error(t, err)
	})
}
