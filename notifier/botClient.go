package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BotClient posts to the chat bot's sending API.
type BotClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewBotClient(baseURL string, timeout time.Duration) *BotClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BotClient{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: timeout}}
}

type reactionRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Status    string `json:"status"`
}

type replyRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

func (c *BotClient) Notify(ctx context.Context, chatID, threadID int64, status string) error {
	return c.post(ctx, "/api/sending/reactions", reactionRequest{ChatID: chatID, MessageID: threadID, Status: status})
}

func (c *BotClient) Reply(ctx context.Context, chatID, threadID int64, text string) error {
	return c.post(ctx, "/api/sending/replies", replyRequest{ChatID: chatID, MessageID: threadID, Text: text})
}

func (c *BotClient) post(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bot %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
