package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recap/pkg/logger"
	"recap/pkg/model"
	"recap/pkg/resilience"

	"go.uber.org/zap"
)

const extractTasksPrompt = `Extract action items from the meeting transcript below.
Respond with a JSON array only. Each element must have the fields:
"description" (string), "speaker_number" (integer, the speaker who owns the
task, omit if unknown), "due_date" (RFC 3339 timestamp, omit if none),
"priority" ("low", "medium" or "high") and "source_quote" (the transcript
line the task came from). Respond with [] if there are no action items.`

// Client talks to an OpenAI-compatible chat completion API for
// summarization and action-item extraction.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *resilience.RateLimiter
}

// NewClient creates a summarization client. The limiter is shared with
// other clients of the same endpoint and may be nil.
func NewClient(baseURL, apiKey, modelName string, limiter *resilience.RateLimiter) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		limiter: limiter,
	}
}

// Summarize generates a summary of the transcript using the recording
// type's prompt template, with the optional user-supplied context appended.
func (c *Client) Summarize(ctx context.Context, transcript string, recordingType *model.RecordingType, userContext *string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(recordingType.PromptTemplate)
	if userContext != nil && *userContext != "" {
		prompt.WriteString("\n\nAdditional context from the user: ")
		prompt.WriteString(*userContext)
	}

	content, err := c.complete(ctx, prompt.String(), transcript)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	logger.Info("Summary generated",
		zap.String("recording_type", recordingType.Name),
		zap.Int("length", len(content)))

	return content, nil
}

// ExtractTasks pulls action items out of the transcript. Speaker ownership
// is resolved to contacts through the supplied speaker->contact map.
func (c *Client) ExtractTasks(ctx context.Context, transcript string, speakerContacts map[int]string) ([]*model.ExtractedTask, error) {
	content, err := c.complete(ctx, extractTasksPrompt, transcript)
	if err != nil {
		return nil, fmt.Errorf("task extraction failed: %w", err)
	}

	var items []TaskItem
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &items); err != nil {
		return nil, fmt.Errorf("failed to parse extracted tasks: %w", err)
	}

	tasks := make([]*model.ExtractedTask, 0, len(items))
	for _, item := range items {
		priority := item.Priority
		if priority == "" {
			priority = "medium"
		}

		task := &model.ExtractedTask{
			Description: item.Description,
			DueDate:     item.DueDate,
			Priority:    priority,
			SourceQuote: item.SourceQuote,
		}

		if item.SpeakerNumber != nil {
			if contactID, ok := speakerContacts[*item.SpeakerNumber]; ok {
				id := contactID
				task.ContactID = &id
			}
		}

		tasks = append(tasks, task)
	}

	logger.Info("Tasks extracted", zap.Int("count", len(tasks)))

	return tasks, nil
}

// Sends one system+user chat completion and returns the assistant content
func (c *Client) complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0.2,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion failed: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("chat completion error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// Models wrap JSON answers in markdown fences often enough to handle it here
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
