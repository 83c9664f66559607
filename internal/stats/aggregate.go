// Package stats reduces probe outcomes into summary statistics.
package stats

import (
	"time"

	"ccload/internal/probe"
)

// Class is the bucket an outcome falls into during aggregation.
type Class int

const (
	// ClassOther covers statuses outside 2xx and 5xx. They count toward the
	// total only.
	ClassOther Class = iota
	ClassSuccess
	ClassFailure
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassFailure:
		return "failure"
	default:
		return "other"
	}
}

// Classify buckets o: transport failures and 5xx are failures, 2xx is success.
func Classify(o probe.Outcome) Class {
	switch {
	case o.Failed():
		return ClassFailure
	case o.StatusCode >= 200 && o.StatusCode < 300:
		return ClassSuccess
	case o.StatusCode >= 500 && o.StatusCode < 600:
		return ClassFailure
	default:
		return ClassOther
	}
}

// Statistics is the aggregate of one run. Times are in seconds and describe
// the successful subset only; they are 0 when there were no successes.
type Statistics struct {
	TotalRequests      int `json:"total_requests"`
	SuccessfulRequests int `json:"successful_requests"`
	FailedRequests     int `json:"failed_requests"`
	OtherRequests      int `json:"other_requests"`

	RequestTimeMin  float64 `json:"request_time_min"`
	RequestTimeMax  float64 `json:"request_time_max"`
	RequestTimeMean float64 `json:"request_time_mean"`

	RequestTimeP50 float64 `json:"request_time_p50"`
	RequestTimeP90 float64 `json:"request_time_p90"`
	RequestTimeP99 float64 `json:"request_time_p99"`

	TTFBMin  float64 `json:"ttfb_min"`
	TTFBMax  float64 `json:"ttfb_max"`
	TTFBMean float64 `json:"ttfb_mean"`

	TTLBMin  float64 `json:"ttlb_min"`
	TTLBMax  float64 `json:"ttlb_max"`
	TTLBMean float64 `json:"ttlb_mean"`

	RequestsPerSecond float64 `json:"requests_per_second"`
}

// Field is one named value of Statistics.
type Field struct {
	Name  string
	Value float64
}

// Fields lists every statistic in a stable order, named as in JSON.
func (s Statistics) Fields() []Field {
	return []Field{
		{"total_requests", float64(s.TotalRequests)},
		{"successful_requests", float64(s.SuccessfulRequests)},
		{"failed_requests", float64(s.FailedRequests)},
		{"other_requests", float64(s.OtherRequests)},
		{"request_time_min", s.RequestTimeMin},
		{"request_time_max", s.RequestTimeMax},
		{"request_time_mean", s.RequestTimeMean},
		{"request_time_p50", s.RequestTimeP50},
		{"request_time_p90", s.RequestTimeP90},
		{"request_time_p99", s.RequestTimeP99},
		{"ttfb_min", s.TTFBMin},
		{"ttfb_max", s.TTFBMax},
		{"ttfb_mean", s.TTFBMean},
		{"ttlb_min", s.TTLBMin},
		{"ttlb_max", s.TTLBMax},
		{"ttlb_mean", s.TTLBMean},
		{"requests_per_second", s.RequestsPerSecond},
	}
}

// span folds min/max/sum of a series.
type span struct {
	min, max, sum float64
	n             int
}

func (s *span) add(v float64) {
	s.addWeighted(v, v, v, 1)
}

func (s *span) addWeighted(min, max, mean float64, n int) {
	if n <= 0 {
		return
	}
	if s.n == 0 || min < s.min {
		s.min = min
	}
	if s.n == 0 || max > s.max {
		s.max = max
	}
	s.sum += mean * float64(n)
	s.n += n
}

func (s span) summary() (min, max, mean float64) {
	if s.n == 0 {
		return 0, 0, 0
	}
	return s.min, s.max, s.sum / float64(s.n)
}

// Calculate reduces outcomes observed over elapsed wall-clock time. It is a
// pure function of its inputs and accepts an empty slice.
func Calculate(outcomes []probe.Outcome, elapsed time.Duration) Statistics {
	var (
		s                   Statistics
		reqTime, ttfb, ttlb span
	)
	hist := newHistogram()

	for _, o := range outcomes {
		s.TotalRequests++
		switch Classify(o) {
		case ClassSuccess:
			s.SuccessfulRequests++
			reqTime.add(o.Total.Seconds())
			ttfb.add(o.TTFB.Seconds())
			ttlb.add(o.TTLB.Seconds())
			recordDuration(hist, o.Total)
		case ClassFailure:
			s.FailedRequests++
		default:
			s.OtherRequests++
		}
	}

	s.RequestTimeMin, s.RequestTimeMax, s.RequestTimeMean = reqTime.summary()
	s.TTFBMin, s.TTFBMax, s.TTFBMean = ttfb.summary()
	s.TTLBMin, s.TTLBMax, s.TTLBMean = ttlb.summary()

	if s.SuccessfulRequests > 0 {
		s.RequestTimeP50 = microsToSeconds(hist.ValueAtQuantile(50))
		s.RequestTimeP90 = microsToSeconds(hist.ValueAtQuantile(90))
		s.RequestTimeP99 = microsToSeconds(hist.ValueAtQuantile(99))
	}

	if elapsed > 0 {
		s.RequestsPerSecond = float64(s.SuccessfulRequests) / elapsed.Seconds()
	}
	return s
}

// Combine merges per-worker results into one overview. Workers run side by
// side, so throughput adds up; means are weighted by successful requests.
// Percentiles cannot be merged from summaries and are left at 0.
func Combine(results []Statistics) Statistics {
	var (
		out                 Statistics
		reqTime, ttfb, ttlb span
	)
	for _, r := range results {
		out.TotalRequests += r.TotalRequests
		out.SuccessfulRequests += r.SuccessfulRequests
		out.FailedRequests += r.FailedRequests
		out.OtherRequests += r.OtherRequests
		out.RequestsPerSecond += r.RequestsPerSecond

		reqTime.addWeighted(r.RequestTimeMin, r.RequestTimeMax, r.RequestTimeMean, r.SuccessfulRequests)
		ttfb.addWeighted(r.TTFBMin, r.TTFBMax, r.TTFBMean, r.SuccessfulRequests)
		ttlb.addWeighted(r.TTLBMin, r.TTLBMax, r.TTLBMean, r.SuccessfulRequests)
	}

	out.RequestTimeMin, out.RequestTimeMax, out.RequestTimeMean = reqTime.summary()
	out.TTFBMin, out.TTFBMax, out.TTFBMean = ttfb.summary()
	out.TTLBMin, out.TTLBMax, out.TTLBMean = ttlb.summary()
	return out
}

func microsToSeconds(us int64) float64 {
	return float64(us) / 1e6
}
