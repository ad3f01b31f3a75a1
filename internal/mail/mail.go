package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitefreelance/backend/internal/config"
)

// Message is a single outbound email
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Sender delivers a message through an email provider
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Format builds the plain-text body relayed for a contact submission
func Format(name, email, message string) string {
	var b strings.Builder
	b.WriteString("Name: ")
	b.WriteString(name)
	b.WriteString("\nEmail: ")
	b.WriteString(email)
	b.WriteString("\n\nMessage:\n")
	b.WriteString(message)
	return b.String()
}

// NewSender builds the sender for the configured provider
func NewSender(cfg *config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case config.ProviderResend:
		return NewResendSender(cfg.ResendAPIURL, cfg.ResendAPIKey, cfg.Timeout), nil
	case config.ProviderSendGrid:
		return NewSendGridSender(cfg.SendGridAPIKey, ""), nil
	case config.ProviderLog:
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
