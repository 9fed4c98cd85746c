package notification

import (
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy decides whether a failed delivery is attempted again.
// attempt is 1-based and counts the attempts already made.
type RetryPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// NoRetry reproduces log-and-forget delivery.
type NoRetry struct{}

func (NoRetry) Next(int) (time.Duration, bool) { return 0, false }

// ExponentialBackoff waits a random duration in [0, BaseDelay*2^(attempt-1)],
// capped at MaxDelay, until MaxAttempts attempts have been made.
type ExponentialBackoff struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

func NewExponentialBackoff(base, max time.Duration, maxAttempts int) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:   base,
		MaxDelay:    max,
		MaxAttempts: maxAttempts,
	}
}

// WithRand makes the jitter deterministic (tests).
func (b *ExponentialBackoff) WithRand(rng *rand.Rand) *ExponentialBackoff {
	b.rng = rng
	return b
}

func (b *ExponentialBackoff) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return 0, false
	}

	base := b.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := b.MaxDelay
	if max <= 0 {
		max = time.Minute
	}

	delay := max
	// avoid overflowing the shift for large attempts
	if attempt < 32 {
		if d := base << (attempt - 1); d > 0 && d < max {
			delay = d
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(b.rng.Int63n(int64(delay) + 1)), true
}
