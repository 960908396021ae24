package interaction

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/challan-cli/internal/config"
)

// Pacer decides how long to pause between UI actions.
type Pacer interface {
	// Jitter blocks for a random duration in [min, max] or until ctx is done.
	Jitter(ctx context.Context, min, max time.Duration) error
}

// JitterPacer draws uniform delays and, optionally, rate-limits how often
// callers get through at all.
type JitterPacer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	limiter *rate.Limiter
	scale   float64
}

// NewJitterPacer builds a pacer. limiter may be nil; scale <= 0 means 1.
func NewJitterPacer(rng *rand.Rand, limiter *rate.Limiter, scale float64) *JitterPacer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if scale <= 0 {
		scale = 1
	}
	return &JitterPacer{rng: rng, limiter: limiter, scale: scale}
}

// NewPacer builds the pacer described by cfg.
func NewPacer(cfg config.PacingConfig) Pacer {
	if !cfg.Enabled {
		return NopPacer{}
	}
	var limiter *rate.Limiter
	if cfg.ActionsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ActionsPerSecond), 1)
	}
	return NewJitterPacer(nil, limiter, cfg.Scale)
}

// Jitter implements Pacer.
func (p *JitterPacer) Jitter(ctx context.Context, min, max time.Duration) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return sleep(ctx, p.Draw(min, max))
}

// Draw returns the delay Jitter would sleep for, without sleeping.
func (p *JitterPacer) Draw(min, max time.Duration) time.Duration {
	if max < min {
		min, max = max, min
	}
	if min < 0 {
		min = 0
	}
	p.mu.Lock()
	d := min
	if span := int64(max - min); span > 0 {
		d += time.Duration(p.rng.Int63n(span + 1))
	}
	p.mu.Unlock()
	return time.Duration(float64(d) * p.scale)
}

// NopPacer never waits. Tests use it to keep flows deterministic.
type NopPacer struct{}

// Jitter implements Pacer.
func (NopPacer) Jitter(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
