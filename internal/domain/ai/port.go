package ai

import "context"

// Client performs a single AI analysis call with one credential. It never
// retries. On failure the returned Result is already degraded and the error
// is an *Error carrying the failure kind.
type Client interface {
	Analyze(ctx context.Context, text string, cred Credential) (Result, error)
}
