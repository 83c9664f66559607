// Package probe issues single HTTP requests and measures their latency milestones.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one fully rendered HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Outcome is the result of a single probe.
//
// A response with any status code is a successful probe at this layer; Err is
// only set when the transport failed (refused connection, DNS, TLS, timeout,
// broken body). When Err is set the timings and StatusCode are zero.
type Outcome struct {
	StatusCode int
	TTFB       time.Duration
	TTLB       time.Duration
	Total      time.Duration
	Err        error
}

// Failed reports whether the probe ended in a transport failure.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Do sends req through client and times it. TTFB is taken when the first body
// byte arrives, TTLB once the body is drained and Total after the body is closed.
//
// Do never returns an error: every failure is folded into the Outcome.
func Do(ctx context.Context, client *http.Client, req Request) Outcome {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Outcome{Err: fmt.Errorf("build request: %w", err)}
	}
	if req.Header != nil {
		hr.Header = req.Header.Clone()
	}
	if host := req.Header.Get("Host"); host != "" {
		hr.Host = host
	}

	start := time.Now()
	resp, err := client.Do(hr)
	if err != nil {
		return Outcome{Err: err}
	}

	var first [1]byte
	_, err = io.ReadFull(resp.Body, first[:])
	ttfb := time.Since(start)
	if err != nil && !errors.Is(err, io.EOF) {
		resp.Body.Close()
		return Outcome{Err: fmt.Errorf("read first byte: %w", err)}
	}
	if err == nil {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			resp.Body.Close()
			return Outcome{Err: fmt.Errorf("drain body: %w", err)}
		}
	}
	ttlb := time.Since(start)

	resp.Body.Close()

	return Outcome{
		StatusCode: resp.StatusCode,
		TTFB:       ttfb,
		TTLB:       ttlb,
		Total:      time.Since(start),
	}
}
