package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffPolicyDelay(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:  1.0,
		Multiplier: 2.0,
		MaxDelay:   60.0,
		Jitter:     false,
	}

	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}

	for i, expected := range delays {
		got := policy.Delay(i)
		if got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestBackoffPolicyDelayMonotonic(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:  0.5,
		Multiplier: 2.0,
		MaxDelay:   120.0,
		Jitter:     false,
	}

	prev := time.Duration(0)
	for i := 0; i < 8; i++ {
		got := policy.Delay(i)
		if got < prev {
			t.Errorf("attempt %d: delay %v decreased below %v", i, got, prev)
		}
		prev = got
	}
}

func TestBackoffPolicyDelayWithMaxCap(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:  1.0,
		Multiplier: 2.0,
		MaxDelay:   5.0,
		Jitter:     false,
	}

	// Attempt 10 would be 1024s without cap.
	got := policy.Delay(10)
	if got != 5*time.Second {
		t.Errorf("expected 5s (capped), got %v", got)
	}
}

func TestBackoffPolicyDelayWithJitter(t *testing.T) {
	policy := BackoffPolicy{
		BaseDelay:  1.0,
		Multiplier: 2.0,
		MaxDelay:   60.0,
		Jitter:     true,
	}

	// With jitter, delay should be within +/- 50% of base delay.
	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got > 1500*time.Millisecond {
			t.Errorf("jittered delay out of range: %v", got)
		}
	}
}

func TestRetrySuccess(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 3, BaseDelay: 0.001, Multiplier: 1, MaxDelay: 0.001, Jitter: false}

	callCount := 0
	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		if callCount < 3 {
			return "", &ServerError{ProviderError: ProviderError{
				ClientError: ClientError{Message: "server error"}, Transient: true,
			}}
		}
		return "success", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "success" {
		t.Errorf("expected %q, got %q", "success", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryNonTransientError(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 3, BaseDelay: 0.001, Multiplier: 1, MaxDelay: 0.001, Jitter: false}

	callCount := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &AuthenticationError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "invalid key"},
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected 1 call (no retries for non-transient), got %d", callCount)
	}
}

func TestRetryExhaustedReturnsTransientExhausted(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 2, BaseDelay: 0.001, Multiplier: 1, MaxDelay: 0.001, Jitter: false}

	callCount := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &ServerError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "overloaded"}, Transient: true,
		}}
	})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 { // 1 initial + 2 retries
		t.Errorf("expected 3 calls, got %d", callCount)
	}
	var exhausted *TransientExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected TransientExhaustedError, got %T", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("expected 2 recorded attempts, got %d", exhausted.Attempts)
	}
	if IsTransient(err) {
		t.Error("TransientExhaustedError must not itself be transient")
	}
}

func TestRetryHonorsSuggestedDelay(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 1, BaseDelay: 0.001, Multiplier: 1, MaxDelay: 60, Jitter: false}

	suggested := 0.05
	callCount := 0
	start := time.Now()
	_, _ = Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &RateLimitError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "rate limit"},
			Transient:   true,
			RetryAfter:  &suggested,
		}}
	})
	elapsed := time.Since(start)

	if callCount != 2 {
		t.Fatalf("expected 2 calls, got %d", callCount)
	}
	// Suggested 50ms beats computed 1ms; allow generous slack above it.
	if elapsed < 50*time.Millisecond {
		t.Errorf("expected at least the suggested 50ms delay, slept %v", elapsed)
	}
}

func TestRetryCancelled(t *testing.T) {
	policy := BackoffPolicy{MaxRetries: 5, BaseDelay: 1.0, Multiplier: 1, MaxDelay: 1.0, Jitter: false}

	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, policy, func(ctx context.Context) (string, error) {
		callCount++
		return "", &ServerError{ProviderError: ProviderError{
			ClientError: ClientError{Message: "503 unavailable"}, Transient: true,
		}}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var aborted *AbortError
	if !errors.As(err, &aborted) {
		t.Fatalf("expected AbortError, got %T", err)
	}
	if callCount > 3 {
		t.Errorf("expected fewer calls due to cancellation, got %d", callCount)
	}
}

func TestRetryNoError(t *testing.T) {
	policy := DefaultBackoffPolicy()
	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		return "immediate", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "immediate" {
		t.Errorf("expected %q, got %q", "immediate", result)
	}
}

func TestSuggestedDelayParsing(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"rate limit exceeded, retry in 7s", 7, true},
		{"quota hit; retry in 2.5s please", 2.5, true},
		{"rate limit exceeded", 0, false},
	}
	for _, tc := range cases {
		got := suggestedDelay(tc.text)
		if tc.ok {
			if got == nil || *got != tc.want {
				t.Errorf("%q: expected %v, got %v", tc.text, tc.want, got)
			}
		} else if got != nil {
			t.Errorf("%q: expected no suggestion, got %v", tc.text, *got)
		}
	}
}

func TestDefaultBackoffPolicy(t *testing.T) {
	p := DefaultBackoffPolicy()
	if p.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", p.MaxRetries)
	}
	if p.BaseDelay != 1.0 {
		t.Errorf("expected base_delay 1.0, got %f", p.BaseDelay)
	}
	if p.MaxDelay != 60.0 {
		t.Errorf("expected max_delay 60.0, got %f", p.MaxDelay)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("expected multiplier 2.0, got %f", p.Multiplier)
	}
	if !p.Jitter {
		t.Error("expected jitter = true")
	}
}
