package probe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoMeasuresMilestones(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("a"))
		w.(http.Flusher).Flush()
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("rest of the body"))
	}))
	defer srv.Close()

	out := Do(context.Background(), srv.Client(), Request{URL: srv.URL})
	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", out.StatusCode)
	}
	if !(out.TTFB <= out.TTLB && out.TTLB <= out.Total) {
		t.Fatalf("milestones out of order: ttfb=%v ttlb=%v total=%v", out.TTFB, out.TTLB, out.Total)
	}
	if out.TTLB-out.TTFB < 40*time.Millisecond {
		t.Fatalf("ttlb should include the delayed body: ttfb=%v ttlb=%v", out.TTFB, out.TTLB)
	}
}

func TestDoEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out := Do(context.Background(), srv.Client(), Request{URL: srv.URL})
	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if out.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", out.StatusCode)
	}
}

func TestDoServerErrorIsNotAFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := Do(context.Background(), srv.Client(), Request{URL: srv.URL})
	if out.Failed() {
		t.Fatalf("5xx must not be a transport failure: %v", out.Err)
	}
	if out.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", out.StatusCode)
	}
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := Do(context.Background(), http.DefaultClient, Request{URL: url})
	if !out.Failed() {
		t.Fatal("expected a transport failure")
	}
	if out.StatusCode != 0 || out.Total != 0 {
		t.Fatalf("failure must not carry timings: %+v", out)
	}
}

func TestDoSendsMethodHeadersAndBody(t *testing.T) {
	var (
		gotMethod string
		gotHeader string
		gotBody   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	req := Request{
		Method: http.MethodPut,
		URL:    srv.URL,
		Header: http.Header{"Authorization": []string{"Bearer token123"}},
		Body:   []byte(`{"key":"value"}`),
	}
	out := Do(context.Background(), srv.Client(), req)
	if out.Failed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if gotMethod != http.MethodPut || gotHeader != "Bearer token123" || gotBody != `{"key":"value"}` {
		t.Fatalf("got method=%q auth=%q body=%q", gotMethod, gotHeader, gotBody)
	}
}

func TestDoInvalidURL(t *testing.T) {
	out := Do(context.Background(), http.DefaultClient, Request{URL: "://bad"})
	if !out.Failed() {
		t.Fatal("expected failure for an invalid URL")
	}
}
