// Package whatsapp talks to the WhatsApp Cloud (Graph) API: outbound
// text and reply-button messages, media downloads, and inbound webhook
// payload parsing.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const graphBase = "https://graph.facebook.com/v20.0"

// Button is one reply choice offered to the participant.
type Button struct {
	ID    string
	Title string
}

type Client struct {
	base    string
	token   string
	phoneID string
	http    *http.Client
}

func NewClient(token, phoneID string) *Client {
	return &Client{
		base:    graphBase,
		token:   token,
		phoneID: phoneID,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	})
}

// SendButtons delivers a prompt with up to three reply buttons. The
// participant's tap comes back through the webhook as the button title.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	replies := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": replies},
		},
	})
}

func (c *Client) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.base, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph api status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// MediaURL resolves a webhook media ID into a short-lived download URL.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+mediaID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolving media %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolving media %s: status %d", mediaID, resp.StatusCode)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding media lookup: %w", err)
	}
	if body.URL == "" {
		return "", fmt.Errorf("media %s has no url", mediaID)
	}
	return body.URL, nil
}

// Download fetches media bytes from a URL returned by MediaURL. The URL
// requires the same bearer token.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading media: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
