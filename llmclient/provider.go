package llmclient

import "context"

// ProviderAdapter is the interface every provider backend must implement.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Complete sends a blocking request and returns the full response.
	// Errors must pass through ClassifyErrorText (or ErrorFromStatusCode)
	// so the backoff supervisor can tell transient failures apart.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Optional methods that adapters may implement.

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// Initializer is implemented by adapters that need startup validation.
type Initializer interface {
	Initialize() error
}
