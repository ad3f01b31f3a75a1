package mail

import (
	"context"
	"fmt"
	netmail "net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// DefaultSendGridHost is the SendGrid API host
const DefaultSendGridHost = "https://api.sendgrid.com"

const sendGridEndpoint = "/v3/mail/send"

// SendGridSender delivers through the SendGrid v3 API
type SendGridSender struct {
	apiKey string
	host   string
}

// NewSendGridSender creates a SendGrid sender. An empty host uses the public API.
func NewSendGridSender(apiKey, host string) *SendGridSender {
	if host == "" {
		host = DefaultSendGridHost
	}
	return &SendGridSender{apiKey: apiKey, host: host}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	v3 := sgmail.NewSingleEmail(address(msg.From), msg.Subject, address(msg.To), msg.Text, "")
	if msg.ReplyTo != "" {
		v3.SetReplyTo(address(msg.ReplyTo))
	}

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(v3)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	return nil
}

// address splits "Name <addr>" into a SendGrid email; bare addresses pass through
func address(s string) *sgmail.Email {
	if parsed, err := netmail.ParseAddress(s); err == nil {
		return sgmail.NewEmail(parsed.Name, parsed.Address)
	}
	return sgmail.NewEmail("", s)
}
