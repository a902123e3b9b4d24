package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	Attempts int           // total calls, including the first
	Delay    time.Duration // wait before the second call
	MaxDelay time.Duration
	Factor   float64

	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries everything.
	Retryable func(error) bool
}

// DefaultPolicy is tuned for a progress database that is briefly locked or
// restarting. A save is at most a few seconds late before it gives up.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		Attempts:  5,
		Delay:     250 * time.Millisecond,
		MaxDelay:  2 * time.Second,
		Factor:    2,
		Retryable: retryable,
	}
}

// Do calls op until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return stopped(err, last)
		}

		last = op(ctx)
		switch {
		case last == nil:
			return nil
		case p.Retryable != nil && !p.Retryable(last):
			return last
		case attempt >= attempts:
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return stopped(ctx.Err(), last)
		case <-timer.C:
		}
		delay = p.grow(delay)
	}
}

func (p Policy) grow(d time.Duration) time.Duration {
	if p.Factor > 1 {
		d = time.Duration(float64(d) * p.Factor)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func stopped(ctxErr, last error) error {
	if last == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, last)
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"unexpected eof",
	"database is locked",
	"database table is locked",
	"too many clients",
	"the database system is starting up",
}

// Transient matches the error text of dropped connections and locked
// databases, for errors that carry no typed code.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transientMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
