package geocode

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultMinInterval is the spacing public providers such as Nominatim
// require between requests from one client.
const DefaultMinInterval = time.Second

// RateLimiter spaces outbound provider calls. Acquire blocks until the caller
// may issue one request, or until ctx is done.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// IntervalLimiter admits one caller per interval across all goroutines that
// share it. The wait is timer based and yields instead of spinning.
//
// rate.Limiter reserves tokens on a schedule and can hand one out slightly
// early relative to the previous return, so the last admission time is kept
// and any shortfall is slept off before returning.
type IntervalLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewIntervalLimiter creates a limiter enforcing minInterval between
// successive Acquire returns. A non-positive interval disables limiting.
func NewIntervalLimiter(minInterval time.Duration) *IntervalLimiter {
	if minInterval <= 0 {
		return &IntervalLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &IntervalLimiter{
		limiter:  rate.NewLimiter(rate.Every(minInterval), 1),
		interval: minInterval,
	}
}

// Interval returns the configured minimum spacing.
func (l *IntervalLimiter) Interval() time.Duration { return l.interval }

// Acquire implements RateLimiter.
func (l *IntervalLimiter) Acquire(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: rate limit")
	}
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.last.IsZero() {
		if gap := l.interval - time.Since(l.last); gap > 0 {
			timer := time.NewTimer(gap)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "geocode: rate limit")
			case <-timer.C:
			}
		}
	}
	l.last = time.Now()
	return nil
}
