// Package llmclient provides a provider-agnostic client for blocking text
// completion. It wraps gollm (github.com/teilomillet/gollm) and the OpenAI
// SDK behind a common ProviderAdapter interface.
//
// # Architecture
//
//   - ProviderAdapter: one adapter per backend (GollmAdapter, OpenAIAdapter)
//   - Error taxonomy: typed provider errors with transient classification
//   - Backoff supervisor: Retry wraps any call with exponential, jittered
//     backoff applied only to transient provider failures
//   - Client: provider routing and middleware around Complete
//
// # Quick Start
//
//	adapter, _ := llmclient.NewGollmAdapter("anthropic", os.Getenv("ANTHROPIC_API_KEY"))
//	client := llmclient.NewClient(llmclient.WithProvider("anthropic", adapter))
//
//	resp, err := client.CompleteWithRetry(ctx, llmclient.DefaultBackoffPolicy(), llmclient.Request{
//	    Model:    "claude-sonnet-4-5",
//	    Messages: []llmclient.Message{llmclient.UserMessage("Hello")},
//	})
//
// # Transient errors
//
// Provider failures arrive as unstructured text. ClassifyErrorText maps
// rate-limit and service-unavailable signatures ("429", "rate limit",
// "503", "unavailable", "overloaded", ...) to transient typed errors that
// Retry will back off on; everything else propagates immediately. When the
// supervisor's own retry budget runs out it returns a
// TransientExhaustedError, which is terminal for that call.
package llmclient
