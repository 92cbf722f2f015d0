package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"recap/pkg/logger"
	"recap/pkg/model"

	"go.uber.org/zap"
)

// Client talks to a whisper-server sidecar that shares the worker's
// filesystem. Model load happens once on first use and can be slow.
type Client struct {
	baseURL string
	model   string
	client  *http.Client

	mu    sync.Mutex
	ready bool
}

// NewClient creates a transcription server client
func NewClient(baseURL, modelName string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// EnsureReady loads the transcription model if it is not loaded yet.
// Idempotent; a failed load is retried on the next call.
func (c *Client) EnsureReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}

	body, err := json.Marshal(map[string]string{"model": c.model})
	if err != nil {
		return fmt.Errorf("failed to marshal load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/load", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Info("Loading transcription model", zap.String("model", c.model))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load transcription model: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read load response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model load failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var ready ReadyResponse
	if err := json.Unmarshal(respBody, &ready); err != nil {
		return fmt.Errorf("failed to unmarshal load response: %w", err)
	}

	if !ready.Ready {
		return fmt.Errorf("transcription model not ready: %s", ready.Error)
	}

	c.ready = true
	logger.Info("Transcription model ready", zap.String("model", c.model))

	return nil
}

// Transcribe runs speech-to-text with diarization over the audio file
func (c *Client) Transcribe(ctx context.Context, audioPath string, speakers []*model.Speaker) (*TranscriptionResponse, error) {
	hints := make([]SpeakerHint, 0, len(speakers))
	for _, sp := range speakers {
		hints = append(hints, SpeakerHint{Number: sp.SpeakerNumber, Name: sp.Name})
	}

	reqBody := TranscriptionRequest{
		AudioPath: audioPath,
		Model:     c.model,
		Speakers:  hints,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Starting transcription",
		zap.String("audio_path", audioPath),
		zap.Int("speakers", len(hints)))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription request failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var result TranscriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Info("Transcription completed",
		zap.String("audio_path", audioPath),
		zap.Int("segments", len(result.Segments)),
		zap.Int("text_length", len(result.Text)))

	return &result, nil
}
