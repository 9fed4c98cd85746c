package resend

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

const DefaultBaseURL = "https://api.resend.com"

var ErrNotConfigured = errors.New("resend not configured")

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// SendEmail returns the provider message id.
func (c *Client) SendEmail(ctx context.Context, input SendEmailInput) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("resend: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend: send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("resend api error: %d %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("resend api error: %d %s", resp.StatusCode, string(respBody))
	}

	var result SendEmailResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("resend: decode response: %w", err)
	}

	log.Printf("✅ Resend: email %s sent to %v", result.ID, input.To)
	return result.ID, nil
}

// Channel delivers notifications as HTML email through the Resend API.
type Channel struct {
	client *Client
	from   string
	to     string
}

func NewChannel(client *Client, from, to string) *Channel {
	return &Channel{client: client, from: from, to: to}
}

func (ch *Channel) Name() string { return "resend" }

func (ch *Channel) Enabled() bool {
	return ch.client.Configured() && ch.to != "" && ch.from != ""
}

func (ch *Channel) Send(ctx context.Context, msg notification.Message) error {
	_, err := ch.client.SendEmail(ctx, SendEmailInput{
		From:    ch.from,
		To:      []string{ch.to},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	return err
}
