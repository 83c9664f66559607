package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestRequestBuilderStatic(t *testing.T) {
	b, err := newRequestBuilder(WorkSpec{URL: "http://example.com/", Headers: map[string]string{"A": "b"}}, NewTemplateEngine())
	if err != nil {
		t.Fatal(err)
	}
	if b.templated() {
		t.Fatal("plain spec must not be templated")
	}
	req, err := b.request(3)
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != http.MethodGet || req.URL != "http://example.com/" || req.Header.Get("A") != "b" {
		t.Fatalf("got %+v", req)
	}
}

func TestRequestBuilderRendersPerProbe(t *testing.T) {
	dir := t.TempDir()
	names := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(names, []byte("alice\n\nbob\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	spec := WorkSpec{
		URL:     "http://example.com/items/{{seq}}",
		Headers: map[string]string{"X-Request-Id": "{{uuid}}"},
		Body:    []byte(`{"n":{{randomInt 5 6}},"who":"{{randomLine "` + names + `"}}","c":"{{randomChoice "x"}}"}`),
	}
	b, err := newRequestBuilder(spec, NewTemplateEngine())
	if err != nil {
		t.Fatal(err)
	}

	r0, err := b.request(0)
	if err != nil {
		t.Fatal(err)
	}
	r1, err := b.request(1)
	if err != nil {
		t.Fatal(err)
	}

	if r0.URL != "http://example.com/items/0" || r1.URL != "http://example.com/items/1" {
		t.Fatalf("urls = %q, %q", r0.URL, r1.URL)
	}
	if r0.Header.Get("X-Request-Id") == "" || r0.Header.Get("X-Request-Id") == r1.Header.Get("X-Request-Id") {
		t.Fatal("each probe should get its own uuid")
	}
	body := string(r0.Body)
	if body != `{"n":5,"who":"alice","c":"x"}` && body != `{"n":5,"who":"bob","c":"x"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestRequestBuilderMissingFile(t *testing.T) {
	b, err := newRequestBuilder(WorkSpec{URL: `http://example.com/{{randomLine "/does/not/exist"}}`}, NewTemplateEngine())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.request(0); err == nil {
		t.Fatal("expected render error")
	}
}

func TestRunWithTemplatedURL(t *testing.T) {
	var (
		mu    sync.Mutex
		paths = map[string]bool{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path] = true
		mu.Unlock()
	}))
	defer srv.Close()

	r := NewRunner(DefaultOptions(), nil)
	s, err := r.LoadTest(context.Background(), WorkSpec{URL: srv.URL + "/p/{{seq}}", Requests: 5, Concurrency: 2})
	if err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if s.SuccessfulRequests != 5 || len(paths) != 5 {
		t.Fatalf("stats %+v, distinct paths %d", s, len(paths))
	}
}
