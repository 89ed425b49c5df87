package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/open-syllabus/open-syllabus-sub001/config"
)

// HardInputLimit is the provider's hard per-request character ceiling.
// A chunk over this limit is a guaranteed rejection, so the client
// refuses it locally instead of burning a network call.
const HardInputLimit = 4096

// Bounds the provider accepts for the speed multiplier.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Client talks to an OpenAI-compatible speech synthesis endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

func NewClient(cfg *config.TTSConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Synthesize converts one provider-safe text chunk into mp3 bytes.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("tts: api key is required")
	}
	if len([]rune(text)) > HardInputLimit {
		return nil, fmt.Errorf("tts: input exceeds %d character limit", HardInputLimit)
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return nil, fmt.Errorf("tts: speed %.2f out of range [%.2f, %.2f]", speed, MinSpeed, MaxSpeed)
	}

	b, err := json.Marshal(speechRequest{
		Model:          c.Model,
		Input:          text,
		Voice:          voice,
		Speed:          speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/audio/speech", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("tts: %s", msg)
	}

	return io.ReadAll(resp.Body)
}
