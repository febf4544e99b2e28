// Package provider holds clients for the external messaging providers.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// EmailClient talks to the transactional email API. It supports inline
// HTML/text bodies and provider-side templates.
type EmailClient struct {
	Endpoint string
	APIKey   string
	Sender   string
	ReplyTo  string
	Client   *http.Client
}

type EmailRequest struct {
	To           string         `json:"to"`
	Subject      string         `json:"subject"`
	HTMLContent  string         `json:"html_content"`
	TextContent  string         `json:"text_content,omitempty"`
	TemplateID   string         `json:"template_id,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
}

// Send submits one email and returns the provider-assigned message id.
// 4xx responses are classified permanent so retrying callers give up.
func (c *EmailClient) Send(ctx context.Context, req EmailRequest) (string, error) {
	payload := map[string]any{
		"from":     c.Sender,
		"reply_to": c.ReplyTo,
		"to":       req.To,
	}
	if req.TemplateID != "" {
		payload["template_id"] = req.TemplateID
		payload["template_data"] = req.TemplateData
	} else {
		payload["subject"] = req.Subject
		payload["html"] = req.HTMLContent
		if req.TextContent != "" {
			payload["text"] = req.TextContent
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/send", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.APIKey)

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("email provider temporary error: %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", backoff.Permanent(fmt.Errorf("email provider rejected send: %s: %s", resp.Status, detail))
	}

	var result struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	return result.MessageID, nil
}
