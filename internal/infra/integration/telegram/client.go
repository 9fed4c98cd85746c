package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/richdadretirement/leadrelay/internal/notification"
)

const DefaultBaseURL = "https://api.telegram.org"

var ErrNotConfigured = errors.New("telegram not configured")

type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

func NewClient(botToken string) *Client {
	return &Client{
		botToken:   botToken,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at another API host (tests, proxies).
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.botToken != ""
}

func (c *Client) SendMessage(ctx context.Context, input SendMessageInput) error {
	if !c.Configured() || input.ChatID == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("telegram: encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var result SendMessageResponse
	_ = json.Unmarshal(respBody, &result)

	if resp.StatusCode != http.StatusOK || !result.OK {
		desc := result.Description
		if desc == "" {
			desc = string(respBody)
		}
		return fmt.Errorf("telegram api error: %d %s", resp.StatusCode, desc)
	}

	if result.Result != nil {
		log.Printf("✅ Telegram: message %d sent to chat %s", result.Result.MessageID, input.ChatID)
	}
	return nil
}

// Channel adapts the client to the notification dispatcher.
type Channel struct {
	client *Client
	chatID string
}

func NewChannel(client *Client, chatID string) *Channel {
	return &Channel{client: client, chatID: chatID}
}

func (ch *Channel) Name() string { return "telegram" }

func (ch *Channel) Enabled() bool {
	return ch.client.Configured() && ch.chatID != ""
}

func (ch *Channel) Send(ctx context.Context, msg notification.Message) error {
	return ch.client.SendMessage(ctx, SendMessageInput{
		ChatID:              ch.chatID,
		Text:                msg.Text,
		ParseMode:           "HTML",
		DisableNotification: !msg.Urgent,
		DisableWebPreview:   true,
	})
}
