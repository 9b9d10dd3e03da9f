package walletconnect

import (
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v3"
	"github.com/pkg/errors"
)

// ErrRetriesExhausted reports that a session used up its bounded attempts.
var ErrRetriesExhausted = errors.New("session retry attempts exhausted")

type retryEntry struct {
	attempts    int
	lastAttempt time.Time
	schedule    *backoff.ExponentialBackOff
}

// RetryCounter bounds repeated connection attempts per session topic.
// Attempts are serialized by the manager's per-topic lock; the counter is
// monotonically non-decreasing within an attempt window and reset on
// success.
type RetryCounter struct {
	mu          sync.Mutex
	maxAttempts int
	entries     map[string]*retryEntry
}

func NewRetryCounter(maxAttempts int) *RetryCounter {
	return &RetryCounter{
		maxAttempts: maxAttempts,
		entries:     make(map[string]*retryEntry),
	}
}

// Next records one attempt for a topic and returns the delay to wait before
// it. Returns ErrRetriesExhausted once the bound is hit.
func (r *RetryCounter) Next(topic string) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[topic]
	if !ok {
		schedule := backoff.NewExponentialBackOff()
		schedule.MaxElapsedTime = 0
		entry = &retryEntry{schedule: schedule}
		r.entries[topic] = entry
	}
	if entry.attempts >= r.maxAttempts {
		return 0, ErrRetriesExhausted
	}
	entry.attempts++
	entry.lastAttempt = time.Now()
	return entry.schedule.NextBackOff(), nil
}

// Attempts returns the attempt count for a topic.
func (r *RetryCounter) Attempts(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[topic]; ok {
		return entry.attempts
	}
	return 0
}

// Reset clears the counter for a topic after a successful connection.
func (r *RetryCounter) Reset(topic string) {
	r.mu.Lock()
	delete(r.entries, topic)
	r.mu.Unlock()
}
