package ratelimit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/baalimago/agentloop/internal/clock"
	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/google/uuid"
)

// CallID pairs a recorded call with the output tokens reported for it later.
type CallID string

// Config of a Limiter. A zero maximum means unlimited.
type Config struct {
	Window          time.Duration
	MaxCalls        int
	MaxInputTokens  int
	MaxOutputTokens int
}

// Usage within the current window.
type Usage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
}

type record struct {
	id     CallID
	at     time.Time
	input  int
	output int
}

// Limiter is a sliding window limiter for model calls. It counts calls, input
// tokens and output tokens over the trailing Window and blocks callers until
// every budget has headroom again.
type Limiter struct {
	conf  Config
	clock clock.Clock

	mu      sync.Mutex
	records []record

	warnedStructural bool
	debug            bool
}

// New creates a Limiter. A nil clock defaults to the real one.
func New(conf Config, c clock.Clock) *Limiter {
	if c == nil {
		c = clock.Real()
	}
	l := &Limiter{
		conf:  conf,
		clock: c,
	}
	if misc.Truthy(os.Getenv("DEBUG")) || misc.Truthy(os.Getenv("DEBUG_RATE_LIMIT")) {
		l.debug = true
	}
	return l
}

// LimitCallAndInput blocks until a call with inputTokens fits into all budgets,
// then records it. The returned CallID is used to report output tokens once the
// response has been streamed. The only error is the context's error.
func (l *Limiter) LimitCallAndInput(ctx context.Context, inputTokens int) (CallID, error) {
	for {
		id, wait, reasons := l.tryRecord(inputTokens)
		if id != "" {
			if l.debug {
				ancli.Okf("rate limit: recorded call: %v, input tokens: %v\n", id, inputTokens)
			}
			return id, nil
		}

		var after <-chan time.Time
		if wait > 0 {
			ancli.PrintWarn(fmt.Sprintf("rate limit exceeded, waiting %v due to: %v\n",
				wait.Round(time.Millisecond), strings.Join(reasons, ", ")))
			after = l.clock.After(wait)
		}
		// A nil channel blocks forever, which is what happens when a single
		// call could never fit the budget.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-after:
		}
	}
}

// tryRecord records the call if possible and returns its id. Otherwise it
// returns how long to wait until the oldest record expires, or a negative
// duration if waiting cannot help.
func (l *Limiter) tryRecord(inputTokens int) (CallID, time.Duration, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.prune(now)
	u := l.usage()

	var reasons []string
	if l.conf.MaxCalls > 0 && u.Calls >= l.conf.MaxCalls {
		reasons = append(reasons, "max calls")
	}
	if l.conf.MaxInputTokens > 0 && u.InputTokens+inputTokens > l.conf.MaxInputTokens {
		reasons = append(reasons, "max input tokens")
	}
	if l.conf.MaxOutputTokens > 0 && u.OutputTokens >= l.conf.MaxOutputTokens {
		reasons = append(reasons, "max output tokens")
	}

	if len(reasons) == 0 {
		id := CallID(uuid.NewString())
		l.records = append(l.records, record{
			id:    id,
			at:    now,
			input: inputTokens,
		})
		return id, 0, nil
	}

	if len(l.records) == 0 {
		if !l.warnedStructural {
			l.warnedStructural = true
			ancli.PrintWarn(fmt.Sprintf("rate limit: a call of %v input tokens can never fit the budget of %v, blocking until cancelled\n",
				inputTokens, l.conf.MaxInputTokens))
		}
		return "", -1, reasons
	}

	// The oldest record is inside the window after prune, so this is > 0
	return "", l.records[0].at.Add(l.conf.Window).Sub(now), reasons
}

// prune drops every record whose age is >= the window. Records are ordered by
// time so expired entries are always a prefix.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.conf.Window)
	i := 0
	for i < len(l.records) && !l.records[i].at.After(cutoff) {
		i++
	}
	l.records = l.records[i:]
}

func (l *Limiter) usage() Usage {
	u := Usage{Calls: len(l.records)}
	for _, r := range l.records {
		u.InputTokens += r.input
		u.OutputTokens += r.output
	}
	return u
}

// SetOutputTokens attributes n output tokens to the call identified by id. Ids
// which have already left the window are ignored.
func (l *Limiter) SetOutputTokens(id CallID, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].id == id {
			l.records[i].output = n
			if l.debug {
				ancli.Okf("rate limit: call: %v, output tokens: %v\n", id, n)
			}
			return
		}
	}
}

// Usage returns the usage within the window ending now.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())
	return l.usage()
}
