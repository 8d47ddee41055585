// internal/utils/rate_limiter.go
package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Sleeper waits for d or until ctx is done. Tests swap in an instant one.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper. It never busy-waits.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoSleep returns immediately unless ctx is already done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Jitter returns a uniformly random duration in [min, max].
func Jitter(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}

// Pacer serializes calls to a third party: each Wait blocks for a random
// delay in [MinDelay, MaxDelay] and never lets calls exceed the limiter's
// rate.
type Pacer struct {
	limiter  *rate.Limiter
	minDelay time.Duration
	maxDelay time.Duration
	sleep    Sleeper

	mu  sync.Mutex
	rng *rand.Rand
	// first call is not delayed
	started bool
}

// NewPacer creates a pacer. requestsPerSecond <= 0 disables the hard ceiling.
func NewPacer(minDelay, maxDelay time.Duration, requestsPerSecond float64, rng *rand.Rand, sleep Sleeper) *Pacer {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{
		limiter:  rate.NewLimiter(limit, 1),
		minDelay: minDelay,
		maxDelay: maxDelay,
		sleep:    sleep,
		rng:      rng,
	}
}

// Wait blocks until the next call may proceed and returns the jitter delay
// that was applied.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	p.mu.Lock()
	var delay time.Duration
	if p.started {
		delay = Jitter(p.rng, p.minDelay, p.maxDelay)
	}
	p.started = true
	p.mu.Unlock()

	if err := p.sleep(ctx, delay); err != nil {
		return 0, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return delay, err
	}
	return delay, nil
}
