// Package retry runs outbound calls with a per-attempt timeout and jittered
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts     uint          `yaml:"max_attempts"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

// DefaultPolicy is three attempts of at most 8s each.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		AttemptTimeout:  8 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     4 * time.Second,
		MaxElapsed:      30 * time.Second,
	}
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// NewStatusError builds a StatusError from a response, honoring Retry-After
// given in seconds. body is truncated to 256 bytes.
func NewStatusError(resp *http.Response, body []byte) *StatusError {
	if len(body) > 256 {
		body = body[:256]
	}
	e := &StatusError{Code: resp.StatusCode, Body: string(body)}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent error, or the policy is
// exhausted. Each attempt gets its own timeout derived from ctx. Non-retryable
// StatusErrors (4xx other than 429) stop immediately.
func Do[T any](ctx context.Context, p Policy, log zerolog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		actx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}
		v, err := op(actx)
		if err == nil {
			return v, nil
		}
		var se *StatusError
		if errors.As(err, &se) {
			if !se.Retryable() {
				return v, backoff.Permanent(err)
			}
			if se.RetryAfter > 0 {
				return v, errors.Join(err, &backoff.RetryAfterError{Duration: se.RetryAfter})
			}
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("retrying")
		}),
	}
	if p.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxAttempts))
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}

	v, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		// the last attempt may still carry the permanent wrapper
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return v, fmt.Errorf("after %d attempt(s): %w", attempt, err)
	}
	return v, nil
}
