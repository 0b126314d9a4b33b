package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// Exponential grows the delay by a constant factor per retry, capped and
// spread by a symmetric jitter.
type Exponential struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	retries    int

	// random returns values in [0, 1). Tests pin it.
	random func() float64
}

// Option configures an Exponential backoff.
type Option func(*Exponential)

func WithInitialDelay(d time.Duration) Option {
	return func(b *Exponential) { b.initial = d }
}

func WithMaxDelay(d time.Duration) Option {
	return func(b *Exponential) { b.max = d }
}

func WithMultiplier(m float64) Option {
	return func(b *Exponential) { b.multiplier = m }
}

// WithJitter sets the jitter fraction. 0.2 spreads delays by +/-20%.
func WithJitter(j float64) Option {
	return func(b *Exponential) { b.jitter = j }
}

func WithRandom(f func() float64) Option {
	return func(b *Exponential) { b.random = f }
}

// NewExponential allows up to retries extra attempts; a negative value
// retries until the context ends.
func NewExponential(retries int, opts ...Option) *Exponential {
	b := &Exponential{
		initial:    pgbulk.DefaultRetryInitialDelay,
		max:        pgbulk.DefaultRetryMaxDelay,
		multiplier: 2,
		jitter:     0.1,
		retries:    retries,
		random:     rand.Float64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay returns the wait before retry number attempt (zero based).
func (b *Exponential) NextDelay(attempt int) time.Duration {
	d := float64(b.initial) * math.Pow(b.multiplier, float64(attempt))
	if d > float64(b.max) || math.IsInf(d, 0) {
		d = float64(b.max)
	}
	if b.jitter > 0 {
		d *= 1 + b.jitter*(2*b.random()-1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

func (b *Exponential) MaxAttempts() int {
	return b.retries
}
