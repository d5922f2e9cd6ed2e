package worker

import (
	"math/rand"
	"time"
)

// computeBackoff returns an exponential delay with jitter for the given
// attempt (1-based), capped at max.
func computeBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	// up to 25% jitter
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}
