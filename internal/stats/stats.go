package stats

import (
	"sync/atomic"
	"time"

	"ccload/internal/probe"
)

// Live holds counters updated while a run is in flight. It is only used for
// progress reporting; the authoritative numbers come from Calculate.
type Live struct {
	Requests uint64
	Success  uint64
	Fail     uint64

	// Successful request times
	RequestTime *SafeHistogram
}

func NewLive() *Live {
	return &Live{RequestTime: NewSafeHistogram()}
}

func (l *Live) Record(o probe.Outcome) {
	atomic.AddUint64(&l.Requests, 1)
	switch Classify(o) {
	case ClassSuccess:
		atomic.AddUint64(&l.Success, 1)
		l.RequestTime.Record(o.Total)
	case ClassFailure:
		atomic.AddUint64(&l.Fail, 1)
	}
}

func (l *Live) Counts() (requests, success, fail uint64) {
	return atomic.LoadUint64(&l.Requests), atomic.LoadUint64(&l.Success), atomic.LoadUint64(&l.Fail)
}

func (l *Live) P99() time.Duration {
	return l.RequestTime.Quantile(99)
}
