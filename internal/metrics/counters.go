package metrics

import (
	"expvar"
	"sync/atomic"
)

// Counters tracks the pipeline's event accounting: per-kind admissions,
// rejections at the gateway, and per-kind projector throughput with failures.
// Everything is plain atomics so the hot path never takes a lock.
type Counters struct {
	HeartbeatsAccepted  atomic.Int64
	DrinksAccepted      atomic.Int64
	Rejected            atomic.Int64
	HeartbeatsProjected atomic.Int64
	DrinksProjected     atomic.Int64
	UnknownDropped      atomic.Int64
	ProjectionFailures  atomic.Int64
}

// Snapshot is a point-in-time copy of all counters, used by the metrics route.
type Snapshot struct {
	HeartbeatsAccepted  int64 `json:"heartbeatsAccepted"`
	DrinksAccepted      int64 `json:"drinksAccepted"`
	Rejected            int64 `json:"rejected"`
	HeartbeatsProjected int64 `json:"heartbeatsProjected"`
	DrinksProjected     int64 `json:"drinksProjected"`
	UnknownDropped      int64 `json:"unknownDropped"`
	ProjectionFailures  int64 `json:"projectionFailures"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		HeartbeatsAccepted:  c.HeartbeatsAccepted.Load(),
		DrinksAccepted:      c.DrinksAccepted.Load(),
		Rejected:            c.Rejected.Load(),
		HeartbeatsProjected: c.HeartbeatsProjected.Load(),
		DrinksProjected:     c.DrinksProjected.Load(),
		UnknownDropped:      c.UnknownDropped.Load(),
		ProjectionFailures:  c.ProjectionFailures.Load(),
	}
}

// Publish registers the counters under the given expvar name so they show up
// on the standard /debug/vars surface as well. Safe to call once per process.
func (c *Counters) Publish(name string) {
	expvar.Publish(name, expvar.Func(func() interface{} {
		return c.Snapshot()
	}))
}
