package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ccload/internal/probe"
)

var ErrInvalidSpec = errors.New("invalid work spec")

// WorkSpec describes one load test against a single target. It must not be
// modified once handed to a Runner.
type WorkSpec struct {
	URL         string
	Requests    int
	Concurrency int
	Method      string
	Headers     map[string]string

	// JSON is marshalled and sent with Content-Type application/json.
	JSON any
	// Body is sent verbatim. Mutually exclusive with JSON.
	Body []byte
}

func (s WorkSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.URL) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidSpec)
	case s.Requests < 0:
		return fmt.Errorf("%w: number of requests must be >= 0, got %d", ErrInvalidSpec, s.Requests)
	case s.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidSpec, s.Concurrency)
	case s.JSON != nil && len(s.Body) > 0:
		return fmt.Errorf("%w: json and raw body are mutually exclusive", ErrInvalidSpec)
	}

	if !isTemplate(s.URL) {
		u, err := url.ParseRequestURI(s.URL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSpec, u.Scheme)
		}
	}
	return nil
}

func (s WorkSpec) method() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(s.Method)
}

func (s WorkSpec) encodeBody() ([]byte, error) {
	if s.JSON == nil {
		return s.Body, nil
	}
	b, err := json.Marshal(s.JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: encode json body: %v", ErrInvalidSpec, err)
	}
	return b, nil
}

// Options configure the HTTP client built for every run.
type Options struct {
	// Timeout bounds each probe. Zero means no timeout.
	Timeout time.Duration
	// InsecureSkipVerify disables certificate checks. It defaults to true:
	// ccload measures load, it does not validate deployments.
	InsecureSkipVerify bool
	// TickInterval is how often progress snapshots are published.
	TickInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:            30 * time.Second,
		InsecureSkipVerify: true,
		TickInterval:       100 * time.Millisecond,
	}
}

// Result is the raw output of a run: one outcome per request, in dispatch
// order, plus the wall-clock time of the whole run.
type Result struct {
	Outcomes []probe.Outcome
	Elapsed  time.Duration
}

// Snapshot is sent over the channel
type Snapshot struct {
	Target   string
	Total    int
	Requests uint64
	Success  uint64
	Fail     uint64
	Inflight int64
	P99      time.Duration
	Done     bool
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan Snapshot
