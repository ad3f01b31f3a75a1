package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultResendURL is the Resend API base
const DefaultResendURL = "https://api.resend.com"

// ResendSender delivers through the Resend HTTP API
type ResendSender struct {
	client *resty.Client
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// NewResendSender creates a Resend sender
func NewResendSender(baseURL, apiKey string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &ResendSender{client: client}
}

func (s *ResendSender) Name() string { return "resend" }

// Send posts the message to /emails; any non-2xx answer is an error
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(resendPayload{
			From:    msg.From,
			To:      []string{msg.To},
			ReplyTo: msg.ReplyTo,
			Subject: msg.Subject,
			Text:    msg.Text,
		}).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	if resp.IsError() || resp.StatusCode() >= 300 {
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
