package distributed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"ccload/internal/runner"
	"ccload/internal/stats"
)

// fakeWorker answers every run-test with total_requests = n_request.
type fakeWorker struct {
	mu       sync.Mutex
	payloads []Payload
	ids      []string
}

func (f *fakeWorker) handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != RunTestPath {
		http.NotFound(w, r)
		return
	}
	var p Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.ids = append(f.ids, r.Header.Get(DispatchIDHeader))
	f.mu.Unlock()

	json.NewEncoder(w).Encode(stats.Statistics{
		TotalRequests:      *p.NRequest,
		SuccessfulRequests: *p.NRequest,
	})
}

func startWorkers(t *testing.T, f *fakeWorker, n int) []string {
	t.Helper()
	var urls []string
	for range n {
		srv := httptest.NewServer(http.HandlerFunc(f.handler))
		t.Cleanup(srv.Close)
		urls = append(urls, srv.URL+"/")
	}
	return urls
}

func spec(n int) runner.WorkSpec {
	return runner.WorkSpec{
		URL:         "http://target.test/",
		Requests:    n,
		Concurrency: 2,
		Headers:     map[string]string{"Authorization": "Bearer token123"},
		JSON:        map[string]any{"key": "value"},
	}
}

func TestCoordinatorDispatchesPartitions(t *testing.T) {
	f := &fakeWorker{}
	workers := startWorkers(t, f, 3)

	results := NewCoordinator(nil).Run(context.Background(), spec(10), workers)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	var sizes []int
	for _, r := range results {
		sizes = append(sizes, r.TotalRequests)
	}
	sort.Ints(sizes)
	if sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 4 {
		t.Fatalf("partition sizes = %v", sizes)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.payloads {
		if p.URL != "http://target.test/" || *p.NConcurrency != 2 {
			t.Fatalf("payload %d = %+v", i, p)
		}
		if p.Headers["Authorization"] != "Bearer token123" {
			t.Fatalf("payload %d headers = %v", i, p.Headers)
		}
		if m, ok := p.JSONData.(map[string]any); !ok || m["key"] != "value" {
			t.Fatalf("payload %d json_data = %v", i, p.JSONData)
		}
		if f.ids[i] == "" {
			t.Fatalf("payload %d has no dispatch id", i)
		}
	}
}

func TestCoordinatorDropsUnreachableWorker(t *testing.T) {
	f := &fakeWorker{}
	workers := startWorkers(t, f, 2)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	workers = append(workers, dead.URL)

	results := NewCoordinator(nil).Run(context.Background(), spec(9), workers)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestCoordinatorDropsErrorStatus(t *testing.T) {
	f := &fakeWorker{}
	workers := startWorkers(t, f, 1)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer broken.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	results := NewCoordinator(nil).Run(context.Background(), spec(6), append(workers, broken.URL, garbage.URL))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestCoordinatorDispatchTimeout(t *testing.T) {
	f := &fakeWorker{}
	workers := startWorkers(t, f, 1)

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	c := NewCoordinator(nil)
	c.Timeout = 100 * time.Millisecond

	start := time.Now()
	results := c.Run(context.Background(), spec(4), append(workers, slow.URL))
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("a slow worker must not hang the coordinator")
	}
}

func TestCoordinatorNoWorkers(t *testing.T) {
	results := NewCoordinator(nil).Run(context.Background(), spec(4), nil)
	if results == nil || len(results) != 0 {
		t.Fatalf("got %v, want an empty list", results)
	}
}

func TestPayloadWorkSpec(t *testing.T) {
	n, c := 5, 2
	ws, err := Payload{URL: "http://x.test", NRequest: &n, NConcurrency: &c}.WorkSpec()
	if err != nil {
		t.Fatal(err)
	}
	if ws.Method != http.MethodGet || ws.Requests != 5 || ws.Concurrency != 2 {
		t.Fatalf("got %+v", ws)
	}

	for name, p := range map[string]Payload{
		"no url":         {NRequest: &n, NConcurrency: &c},
		"no n_request":   {URL: "http://x.test", NConcurrency: &c},
		"no concurrency": {URL: "http://x.test", NRequest: &n},
	} {
		if _, err := p.WorkSpec(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestRunTestURL(t *testing.T) {
	for in, want := range map[string]string{
		"http://w:8000":   "http://w:8000/run-test",
		"http://w:8000/":  "http://w:8000/run-test",
		"http://w/base//": "http://w/base/run-test",
	} {
		if got := RunTestURL(in); got != want {
			t.Errorf("RunTestURL(%q) = %q, want %q", in, got, want)
		}
	}
}
