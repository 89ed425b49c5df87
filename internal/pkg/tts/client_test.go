package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-syllabus/open-syllabus-sub001/config"
)

func TestClient_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nova", req.Voice)
		assert.Equal(t, 1.25, req.Speed)
		assert.Equal(t, "mp3", req.ResponseFormat)

		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	c := NewClient(&config.TTSConfig{BaseURL: server.URL, APIKey: "test-key", Model: "tts-1"})

	audio, err := c.Synthesize(context.Background(), "Hello there.", "nova", 1.25)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestClient_Synthesize_RejectsLocally(t *testing.T) {
	// No server: these must fail before any network call
	c := NewClient(&config.TTSConfig{BaseURL: "http://127.0.0.1:1", APIKey: "k", Model: "tts-1"})
	ctx := context.Background()

	t.Run("oversized input", func(t *testing.T) {
		_, err := c.Synthesize(ctx, strings.Repeat("a", HardInputLimit+1), "nova", 1.0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "character limit")
	})

	t.Run("speed out of range", func(t *testing.T) {
		_, err := c.Synthesize(ctx, "hi", "nova", 5.0)
		assert.Error(t, err)

		_, err = c.Synthesize(ctx, "hi", "nova", 0.1)
		assert.Error(t, err)
	})

	t.Run("missing api key", func(t *testing.T) {
		noKey := NewClient(&config.TTSConfig{BaseURL: "http://127.0.0.1:1"})
		_, err := noKey.Synthesize(ctx, "hi", "nova", 1.0)
		assert.Error(t, err)
	})
}
