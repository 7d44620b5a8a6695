package bedrock

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 20 * time.Second

// transientCodes are Bedrock error codes worth another attempt. Anything
// else (ValidationException, AccessDeniedException, ...) is permanent.
var transientCodes = map[string]bool{
	"ThrottlingException":         true,
	"TooManyRequestsException":    true,
	"ServiceUnavailableException": true,
	"ModelNotReadyException":      true,
	"ModelTimeoutException":       true,
	"InternalServerException":     true,
}

// IsRetryable reports whether err is a throttling or transient service
// failure. Decode errors and context errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.ErrorCode()] {
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	return false
}

// backoff returns the wait before attempt n+1 (n starts at 0): base doubled
// per attempt, capped at maxBackoff, with up to 50% added jitter.
func backoff(base time.Duration, n int) time.Duration {
	d := base << n
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
