package llmclient

import (
	"fmt"
	"strings"
)

// ClientError is the base error type for all llmclient errors.
type ClientError struct {
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by a generation provider.
type ProviderError struct {
	ClientError
	Provider   string
	StatusCode int
	Transient  bool
	RetryAfter *float64 // provider-suggested delay in seconds, if any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, transient=%v)", e.Provider, e.Message, e.StatusCode, e.Transient)
}

// Concrete provider error types.

type AuthenticationError struct{ ProviderError }
type AccessDeniedError struct{ ProviderError }
type NotFoundError struct{ ProviderError }
type InvalidRequestError struct{ ProviderError }
type RateLimitError struct{ ProviderError }
type ServerError struct{ ProviderError }
type ContentFilterError struct{ ProviderError }
type ContextLengthError struct{ ProviderError }
type QuotaExceededError struct{ ProviderError }

// Non-provider errors.

type RequestTimeoutError struct{ ClientError }
type AbortError struct{ ClientError }
type NetworkError struct{ ClientError }
type ConfigurationError struct{ ClientError }

// TransientExhaustedError is surfaced when the backoff supervisor runs out
// of transient retries for a single logical call. It is terminal for that
// call chain: callers must not spend correction attempts on it.
type TransientExhaustedError struct {
	ClientError
	Attempts int
}

func (e *TransientExhaustedError) Error() string {
	return fmt.Sprintf("provider still unavailable after %d retries: %v", e.Attempts, e.Cause)
}

// ErrorFromStatusCode maps an HTTP status code to the appropriate error type.
func ErrorFromStatusCode(statusCode int, message, provider string, retryAfter *float64) error {
	pe := ProviderError{
		ClientError: ClientError{Message: message},
		Provider:    provider,
		StatusCode:  statusCode,
		RetryAfter:  retryAfter,
	}

	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{ProviderError: pe}
	case 401:
		return &AuthenticationError{ProviderError: pe}
	case 403:
		return &AccessDeniedError{ProviderError: pe}
	case 404:
		return &NotFoundError{ProviderError: pe}
	case 408:
		return &RequestTimeoutError{ClientError: ClientError{Message: message}}
	case 413:
		return &ContextLengthError{ProviderError: pe}
	case 429:
		pe.Transient = true
		return &RateLimitError{ProviderError: pe}
	case 500, 502, 503, 504:
		pe.Transient = true
		return &ServerError{ProviderError: pe}
	default:
		// Unknown statuses default to transient.
		pe.Transient = true
		return &pe
	}
}

// transientSignatures are substrings that mark unstructured provider error
// text as a temporary condition worth retrying. Providers surface these as
// free text, so substring matching is the contract here.
var transientSignatures = []string{
	"429",
	"rate limit",
	"quota",
	"503",
	"unavailable",
	"overloaded",
	"502",
	"504",
	"timeout",
	"connection reset",
}

// ClassifyErrorText maps unstructured provider error text to a typed error.
// Text carrying a transient signature becomes a RateLimitError or
// ServerError; everything else becomes a non-transient ProviderError.
func ClassifyErrorText(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	base := ProviderError{
		ClientError: ClientError{Message: msg, Cause: err},
		Provider:    provider,
	}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		base.StatusCode = 401
		return &AuthenticationError{ProviderError: base}
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		base.StatusCode = 403
		return &AccessDeniedError{ProviderError: base}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		base.StatusCode = 404
		return &NotFoundError{ProviderError: base}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota"):
		base.StatusCode = 429
		base.Transient = true
		base.RetryAfter = suggestedDelay(lower)
		return &RateLimitError{ProviderError: base}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		base.StatusCode = 413
		return &ContextLengthError{ProviderError: base}
	case strings.Contains(lower, "503") || strings.Contains(lower, "unavailable") || strings.Contains(lower, "overloaded"):
		base.StatusCode = 503
		base.Transient = true
		return &ServerError{ProviderError: base}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		base.StatusCode = 500
		base.Transient = true
		return &ServerError{ProviderError: base}
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{ProviderError: base}
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{ClientError: ClientError{Message: msg, Cause: err}}
	default:
		return &base
	}
}

// IsTransient reports whether the error signals a temporary provider
// condition that is safe to retry with backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *TransientExhaustedError:
		return false
	case *AuthenticationError:
		return false
	case *AccessDeniedError:
		return false
	case *NotFoundError:
		return false
	case *InvalidRequestError:
		return false
	case *ContextLengthError:
		return false
	case *QuotaExceededError:
		return false
	case *ContentFilterError:
		return false
	case *ConfigurationError:
		return false
	case *AbortError:
		return false
	case *RateLimitError:
		return true
	case *ServerError:
		return true
	case *NetworkError:
		return true
	case *RequestTimeoutError:
		return true
	case *ProviderError:
		return e.Transient
	default:
		// Errors from adapters that bypass classification: fall back to
		// signature matching on the text itself.
		lower := strings.ToLower(err.Error())
		for _, sig := range transientSignatures {
			if strings.Contains(lower, sig) {
				return true
			}
		}
		return false
	}
}
