// Package clock is the injectable time source used by the rate limiter and
// the agent loop. Production code uses Real(), tests use Fake() and move time
// forward explicitly with Advance.
package clock

import "time"

// Clock abstracts the parts of the time package that blocking code needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel which receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
