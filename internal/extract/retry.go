package extract

import (
	"context"
	"errors"
	"time"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// RetryExtractor wraps an Extractor with a single internal retry. A failure
// after the retry surfaces as EXTRACTION_FAILED; the consolidator tolerates
// that by logging the session with an empty fact set.
type RetryExtractor struct {
	inner   Extractor
	backoff time.Duration
}

// NewRetryExtractor creates a RetryExtractor wrapping inner.
func NewRetryExtractor(inner Extractor) *RetryExtractor {
	return &RetryExtractor{
		inner:   inner,
		backoff: 500 * time.Millisecond,
	}
}

// Extract calls the inner extractor, retrying exactly once on failure.
func (r *RetryExtractor) Extract(ctx context.Context, transcript string) (*Result, error) {
	result, err := r.inner.Extract(ctx, transcript)
	if err == nil {
		return result, nil
	}

	// Context errors are never retried; the deadline belongs to the caller.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, memErrors.Wrap(memErrors.CodeExtractionFailed, "extraction call timed out", err)
	}

	select {
	case <-ctx.Done():
		return nil, memErrors.Wrap(memErrors.CodeExtractionFailed, "extraction call timed out", ctx.Err())
	case <-time.After(r.backoff):
	}

	result, err = r.inner.Extract(ctx, transcript)
	if err != nil {
		return nil, memErrors.Wrap(memErrors.CodeExtractionFailed, "extraction failed after retry", err)
	}
	return result, nil
}
