// Package clock abstracts the time operations used by the clipboard engine
// so that deadlines, retry backoff and cooldowns can be driven
// deterministically in tests.
//
// Production code uses Real(). Tests use Fake(), whose Sleep advances the
// fake time instantly and records the requested duration.
package clock

import (
	"context"
	"time"
)

// Clock is the time source for the engine.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() if the sleep was interrupted.
	Sleep(ctx context.Context, d time.Duration) error

	// NewTicker returns a Ticker delivering ticks every d. Panics if d <= 0.
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks. The channel has capacity 1; ticks are
// dropped when the consumer falls behind.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
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

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
