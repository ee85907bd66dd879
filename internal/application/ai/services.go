package ai

import (
	"context"
	"time"

	"github.com/bryanwahyu/clause-review/internal/domain/ai"
)

// Service runs one attempt: a single pass over the ordered credentials,
// stopping at the first that succeeds.
type Service struct {
	client ai.Client
}

func NewService(client ai.Client) *Service {
	return &Service{client: client}
}

// Attempt is the outcome of one pass.
type Attempt struct {
	Result ai.Result
	// Err is the last credential's failure; nil on success.
	Err error
	// Duration is the wall time of the call that produced Result.
	Duration time.Duration
	// Credential that produced Result.
	Credential string
	// Failures holds every credential failure in call order.
	Failures []error
}

func (s *Service) Analyze(ctx context.Context, text string, creds []ai.Credential) Attempt {
	if len(creds) == 0 {
		return Attempt{
			Result: ai.NotConfigured(),
			Err:    &ai.Error{Kind: ai.KindConfigurationAbsent, Err: ai.ErrNotConfigured},
		}
	}

	var out Attempt
	for _, cred := range creds {
		if err := ctx.Err(); err != nil && out.Err != nil {
			break
		}
		start := time.Now()
		res, err := s.client.Analyze(ctx, text, cred)
		out.Duration = time.Since(start)
		out.Result = res
		out.Credential = cred.Label()
		if err == nil {
			out.Err = nil
			return out
		}
		if res.Error == "" {
			res = ai.Degraded(err)
			out.Result = res
		}
		out.Err = err
		out.Failures = append(out.Failures, err)
	}
	return out
}
