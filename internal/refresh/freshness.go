package refresh

import (
	"time"

	"github.com/quotedeck/logocache/internal/state"
)

// IsFresh reports whether a stored record is recent enough to skip
// refreshing. A missing record, a zero timestamp, or a timestamp in the
// future (clock skew, corrupt data) all force a refresh.
func IsFresh(meta *state.StoredMeta, now time.Time, ttl time.Duration) bool {
	if meta == nil {
		return false
	}
	age := now.Sub(meta.UpdatedAt)
	return age >= 0 && age < ttl
}
