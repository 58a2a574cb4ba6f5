// Package retry centralizes the backoff formula so the BatchCreateProcessor
// and Scheduler compute identical retry delays.
package retry

import (
	"math/rand"
	"time"
)

// NextDelay implements exponential backoff: 2^attempts * 60s plus up to 60s
// of jitter, where attempts is the number of attempts already made
// (0 on the first failure).
func NextDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10 // cap the exponent so this never overflows into years
	}
	base := time.Duration(1<<uint(attempts)) * 60 * time.Second
	jitter := time.Duration(rand.Int63n(int64(60 * time.Second)))
	return base + jitter
}
