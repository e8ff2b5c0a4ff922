package refresh

import (
	"net/http"
	"strconv"
	"time"
)

// ResumeDelay converts an upstream retry-after signal into a backoff
// duration. A positive number is interpreted as seconds; an HTTP-date is
// used when it lies in the future; anything else yields the fallback.
func ResumeDelay(retryAfter string, now time.Time, fallback time.Duration) time.Duration {
	if retryAfter == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil {
		if secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return fallback
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return fallback
}
