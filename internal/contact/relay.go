package contact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sitefreelance/backend/internal/config"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/logging"
	"github.com/sitefreelance/backend/internal/mail"
	"github.com/sitefreelance/backend/internal/monitoring"
	"github.com/sitefreelance/backend/internal/ratelimit"
)

// Outcome describes what happened to an accepted submission. Every outcome
// answers the caller with the same success body.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeHoneypot    Outcome = "honeypot"
	OutcomeRateLimited Outcome = "rate_limited"
)

// Submission is a contact-form post
type Submission struct {
	Name     string
	Email    string
	Title    string
	Message  string
	Honeypot string
	ClientIP string
}

// Relay forwards contact submissions to the site owner by email
type Relay struct {
	sender mail.Sender
	ledger *ratelimit.Ledger
	from   string
	to     string
	now    func() time.Time
	logger zerolog.Logger
}

// NewRelay creates a relay sending from the configured service address to the owner
func NewRelay(sender mail.Sender, ledger *ratelimit.Ledger, cfg *config.MailConfig) *Relay {
	return &Relay{
		sender: sender,
		ledger: ledger,
		from:   cfg.From,
		to:     cfg.To,
		now:    time.Now,
		logger: logging.NewLogger("contact"),
	}
}

// Submit runs the anti-spam checks, validates and sends. Honeypot and rate
// limit trips are not errors: they return an outcome the caller must report
// exactly like OutcomeSent.
func (r *Relay) Submit(ctx context.Context, s Submission) (Outcome, error) {
	if strings.TrimSpace(s.Honeypot) != "" {
		logging.LogSecurityEvent(logging.EventHoneypot, s.ClientIP, "honeypot field filled")
		return OutcomeHoneypot, nil
	}

	now := r.now()
	if r.ledger.Limited(s.ClientIP, now) {
		logging.LogSecurityEvent(logging.EventRateLimited, s.ClientIP, "contact submitted inside rate window")
		return OutcomeRateLimited, nil
	}

	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Title = strings.TrimSpace(s.Title)
	s.Message = strings.TrimSpace(s.Message)
	if s.Name == "" || s.Email == "" || s.Title == "" || s.Message == "" {
		return "", apierrors.NewFieldError("contact", apierrors.ErrMissingFieldsError.Message)
	}

	// The window is consumed before sending so a slow or failing send still counts
	if !r.ledger.Record(s.ClientIP, now) {
		logging.LogSecurityEvent(logging.EventRateLimited, s.ClientIP, "concurrent contact submission")
		return OutcomeRateLimited, nil
	}

	msg := mail.Message{
		From:    r.from,
		To:      r.to,
		ReplyTo: s.Email,
		Subject: s.Title,
		Text:    mail.Format(s.Name, s.Email, s.Message),
	}
	start := time.Now()
	err := r.sender.Send(ctx, msg)
	monitoring.RecordMailSend(r.sender.Name(), time.Since(start), err)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("provider", r.sender.Name()).
			Str("client_ip", s.ClientIP).
			Msg("Failed to relay contact message")
		return "", fmt.Errorf("send contact message: %w: %w", apierrors.ErrDelivery, err)
	}

	r.logger.Info().
		Str("provider", r.sender.Name()).
		Str("client_ip", s.ClientIP).
		Msg("Contact message relayed")
	return OutcomeSent, nil
}
