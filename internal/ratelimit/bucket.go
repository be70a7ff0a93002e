package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Bucket is the deployment-wide admission valve: a single token bucket shared
// by every caller. Consumption is non-blocking and all-or-nothing; there is no
// queue and no retry scheduling here.
type Bucket struct {
	limiter  *rate.Limiter
	capacity int
}

// NewBucket builds a bucket holding at most capacity tokens, refilled at
// refillTokens per refillInterval. Capacity is a hard ceiling: a request for
// more than capacity tokens can never succeed.
func NewBucket(capacity, refillTokens int, refillInterval time.Duration) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillTokens < 1 {
		refillTokens = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}

	limit := rate.Limit(float64(refillTokens) / refillInterval.Seconds())
	return &Bucket{
		limiter:  rate.NewLimiter(limit, capacity),
		capacity: capacity,
	}
}

// TryConsume atomically removes n tokens if available and reports whether it
// did. It never blocks and never consumes partially. n greater than the
// bucket's capacity fails unconditionally, even on a freshly full bucket.
func (b *Bucket) TryConsume(n int) bool {
	if n <= 0 {
		return true
	}
	if n > b.capacity {
		return false
	}
	return b.limiter.AllowN(time.Now(), n)
}

// Capacity returns the bucket's token ceiling.
func (b *Bucket) Capacity() int {
	return b.capacity
}
