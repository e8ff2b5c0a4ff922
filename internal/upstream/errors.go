package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the upstream record carries no usable image
	// reference. Terminal for the item this cycle.
	ErrNotFound = errors.New("upstream: no image reference")

	// ErrUpstream is any non-rate-limit upstream failure, including
	// timeouts.
	ErrUpstream = errors.New("upstream: request failed")
)

// RateLimitedError signals a 429 from the upstream, carrying the raw
// Retry-After header value when one was present.
type RateLimitedError struct {
	RetryAfter string
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter == "" {
		return "upstream: rate limited"
	}
	return fmt.Sprintf("upstream: rate limited (retry-after %s)", e.RetryAfter)
}

// IsRateLimited reports whether err is a rate-limit signal and returns it.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
