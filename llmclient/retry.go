package llmclient

import (
	"context"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"time"
)

// BackoffPolicy configures the transient-retry supervisor that wraps each
// logical provider call. Its retry counter is private to the supervisor and
// never visible to callers except as added latency.
type BackoffPolicy struct {
	MaxRetries int     // transient retry attempts (not counting the initial call)
	BaseDelay  float64 // initial delay in seconds
	MaxDelay   float64 // maximum delay between retries
	Multiplier float64 // exponential backoff factor
	Jitter     bool    // add random jitter to prevent thundering herd
	OnRetry    func(err error, attempt int, delay time.Duration)
}

// DefaultBackoffPolicy returns the default supervisor policy.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxRetries: 3,
		BaseDelay:  1.0,
		MaxDelay:   60.0,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay calculates the delay for attempt n (0-indexed).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	delay := math.Min(p.BaseDelay*math.Pow(p.Multiplier, float64(attempt)), p.MaxDelay)
	if p.Jitter {
		// +/- 50% jitter
		delay = delay * (0.5 + rand.Float64()) // rand in [0,1) -> [0.5, 1.5)
	}
	return time.Duration(delay * float64(time.Second))
}

// suggestedDelayPattern matches an explicit "retry in Ns" marker that some
// providers embed in rate-limit error text.
var suggestedDelayPattern = regexp.MustCompile(`retry in (\d+(?:\.\d+)?)s`)

// suggestedDelay extracts a provider-suggested delay (seconds) from error
// text, or nil when no marker is present.
func suggestedDelay(lowerText string) *float64 {
	m := suggestedDelayPattern.FindStringSubmatch(lowerText)
	if m == nil {
		return nil
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &secs
}

// Retry executes fn under the backoff policy. Only transient errors are
// retried; a non-transient error propagates immediately without sleeping.
// When the provider suggests its own delay, the longer of computed and
// suggested wins. Exhausting the policy yields a TransientExhaustedError.
func Retry[T any](ctx context.Context, policy BackoffPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if !IsTransient(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if pe := providerErrorOf(err); pe != nil && pe.RetryAfter != nil {
			suggested := time.Duration(*pe.RetryAfter * float64(time.Second))
			if suggested > delay {
				delay = suggested
			}
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, &AbortError{ClientError: ClientError{Message: "request cancelled during backoff", Cause: ctx.Err()}}
		case <-time.After(delay):
		}

		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}

	if IsTransient(err) {
		return zero, &TransientExhaustedError{
			ClientError: ClientError{Message: "transient retries exhausted", Cause: err},
			Attempts:    policy.MaxRetries,
		}
	}
	return zero, err
}

// providerErrorOf digs the embedded ProviderError out of a typed provider
// error, or returns nil for non-provider errors.
func providerErrorOf(err error) *ProviderError {
	switch e := err.(type) {
	case *ProviderError:
		return e
	case *RateLimitError:
		return &e.ProviderError
	case *ServerError:
		return &e.ProviderError
	case *QuotaExceededError:
		return &e.ProviderError
	default:
		return nil
	}
}
