package ratelimit

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Ledger remembers when each client IP last had a submission accepted.
// It is bounded: once full, the least recently used IP is forgotten.
// State is process-local and lost on restart.
type Ledger struct {
	mu      sync.Mutex
	entries *lru.Cache[string, time.Time]
	window  time.Duration
	onEvict func()
}

// NewLedger creates a ledger holding at most capacity IPs
func NewLedger(capacity int, window time.Duration) (*Ledger, error) {
	if window <= 0 {
		return nil, fmt.Errorf("rate window must be positive, got %s", window)
	}
	entries, err := lru.New[string, time.Time](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate ledger: %w", err)
	}
	return &Ledger{entries: entries, window: window}, nil
}

// OnEvict registers a hook called whenever a full ledger forgets an IP
func (l *Ledger) OnEvict(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEvict = fn
}

// Window returns the minimum spacing between accepted submissions
func (l *Ledger) Window() time.Duration {
	return l.window
}

// LastAccepted returns the time of the IP's last accepted submission
func (l *Ledger) LastAccepted(ip string) (time.Time, bool) {
	return l.entries.Peek(ip)
}

// Limited reports whether ip had a submission accepted less than one window before now
func (l *Ledger) Limited(ip string, now time.Time) bool {
	last, ok := l.entries.Peek(ip)
	return ok && now.Sub(last) < l.window
}

// Record marks a submission from ip as accepted at now. It returns false,
// recording nothing, when a concurrent submission from the same IP got there first.
func (l *Ledger) Record(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.entries.Peek(ip); ok && now.Sub(last) < l.window {
		return false
	}
	if evicted := l.entries.Add(ip, now); evicted && l.onEvict != nil {
		l.onEvict()
	}
	return true
}

// Purge drops entries that can no longer limit anyone and returns how many went
func (l *Ledger) Purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for _, ip := range l.entries.Keys() {
		if last, ok := l.entries.Peek(ip); ok && now.Sub(last) >= l.window {
			l.entries.Remove(ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of IPs currently tracked
func (l *Ledger) Len() int {
	return l.entries.Len()
}
