package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the provider is considered down
var ErrCircuitOpen = errors.New("mail circuit breaker is open")

// BreakerConfig holds configuration for the provider circuit breaker
type BreakerConfig struct {
	// MaxRequests is the number of trial sends let through while half-open
	MaxRequests uint32
	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
	// OnStateChange, when set, observes every transition
	OnStateChange func(provider, state string)
}

// DefaultBreakerConfig returns default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerSender guards another sender with a circuit breaker
type BreakerSender struct {
	next    Sender
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerSender wraps next
func NewBreakerSender(next Sender, cfg BreakerConfig) *BreakerSender {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	provider := next.Name()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("mail-%s", provider),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("circuit_breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(provider, to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not the provider's fault
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerSender{next: next, breaker: breaker}
}

func (b *BreakerSender) Name() string { return b.next.Name() }

// State returns the breaker state: closed, half-open or open
func (b *BreakerSender) State() string {
	return b.breaker.State().String()
}

func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, b.next.Send(ctx, msg)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn().
			Str("provider", b.next.Name()).
			Msg("Circuit breaker is open, rejecting send")
		return ErrCircuitOpen
	}
	return err
}
