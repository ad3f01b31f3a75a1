package contact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sitefreelance/backend/internal/config"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/sitefreelance/backend/internal/mail"
	"github.com/sitefreelance/backend/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRelay(t testing.TB, sender mail.Sender) (*Relay, *clock) {
	t.Helper()
	ledger, err := ratelimit.NewLedger(100, 30*time.Second)
	require.NoError(t, err)
	relay := NewRelay(sender, ledger, &config.MailConfig{
		From: "Site <noreply@example.com>",
		To:   "owner@example.com",
	})
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	relay.now = c.now
	return relay, c
}

func validSubmission() Submission {
	return Submission{
		Name:     "Alice",
		Email:    "alice@example.com",
		Title:    "Website quote",
		Message:  "I need a site",
		ClientIP: "203.0.113.7",
	}
}

func TestSubmit_Sends(t *testing.T) {
	sender := &recordingSender{}
	relay, _ := newTestRelay(t, sender)

	outcome, err := relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Site <noreply@example.com>", msg.From)
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "alice@example.com", msg.ReplyTo)
	assert.Equal(t, "Website quote", msg.Subject)
	assert.Equal(t, "Name: Alice\nEmail: alice@example.com\n\nMessage:\nI need a site", msg.Text)
}

func TestSubmit_HoneypotNeverSends(t *testing.T) {
	sender := &recordingSender{}
	relay, _ := newTestRelay(t, sender)

	s := validSubmission()
	s.Honeypot = "http://spam.example"
	outcome, err := relay.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHoneypot, outcome)
	assert.Zero(t, sender.count())

	// A tripped honeypot does not consume the rate window
	outcome, err = relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
}

func TestSubmit_WhitespaceHoneypotIgnored(t *testing.T) {
	sender := &recordingSender{}
	relay, _ := newTestRelay(t, sender)

	s := validSubmission()
	s.Honeypot = "  "
	outcome, err := relay.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
}

func TestSubmit_RateLimited(t *testing.T) {
	sender := &recordingSender{}
	relay, c := newTestRelay(t, sender)

	_, err := relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)

	c.advance(29 * time.Second)
	outcome, err := relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, outcome)
	assert.Equal(t, 1, sender.count())

	other := validSubmission()
	other.ClientIP = "198.51.100.1"
	outcome, err = relay.Submit(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)

	c.advance(time.Second)
	outcome, err = relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, 3, sender.count())
}

func TestSubmit_MissingFields(t *testing.T) {
	sender := &recordingSender{}
	relay, _ := newTestRelay(t, sender)

	for _, clear := range []func(*Submission){
		func(s *Submission) { s.Name = "" },
		func(s *Submission) { s.Email = " " },
		func(s *Submission) { s.Title = "" },
		func(s *Submission) { s.Message = "\n" },
	} {
		s := validSubmission()
		clear(&s)
		_, err := relay.Submit(context.Background(), s)
		assert.ErrorIs(t, err, apierrors.ErrValidation)
	}
	assert.Zero(t, sender.count())

	// Rejected submissions do not consume the rate window
	outcome, err := relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
}

func TestSubmit_SendFailureStillConsumesWindow(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	relay, _ := newTestRelay(t, sender)

	_, err := relay.Submit(context.Background(), validSubmission())
	assert.ErrorIs(t, err, apierrors.ErrDelivery)

	outcome, err := relay.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRateLimited, outcome)
	assert.Equal(t, 1, sender.count())
}

// However a burst from one IP is timed, at most one send happens per window
func TestProperty_AtMostOneSendPerWindow(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sender := &recordingSender{}
		relay, c := newTestRelay(t, sender)

		gaps := rapid.SliceOfN(rapid.Int64Range(0, int64(29*time.Second)), 1, 20).Draw(rt, "gaps")
		var elapsed time.Duration
		for _, gap := range gaps {
			d := time.Duration(gap)
			if elapsed+d >= 30*time.Second {
				break
			}
			c.advance(d)
			elapsed += d
			if _, err := relay.Submit(context.Background(), validSubmission()); err != nil {
				rt.Fatalf("Unexpected error: %v", err)
			}
		}
		if sender.count() != 1 {
			rt.Fatalf("Expected exactly one send inside the window, got %d", sender.count())
		}
	})
}
