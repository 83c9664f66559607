package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const jsonScript = `[
  {"url": "https://example.com/"},
  {
    "url": "https://example.com/",
    "method": "POST",
    "headers": {"Authorization": "Bearer token123"},
    "json": {"key": "value"},
    "number": 3,
    "concurrency": 2
  }
]`

const yamlScript = `
- url: https://example.com/
- url: https://example.com/api
  method: PUT
  headers:
    Authorization: Bearer token123
  data: raw-body
  number: 3
  concurrency: 2
`

func TestParseJSON(t *testing.T) {
	specs, err := ParseJSON([]byte(jsonScript))
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}

	first := specs[0]
	if first.Method != "GET" || first.Requests != 1 || first.Concurrency != 1 || len(first.Headers) != 0 || first.JSON != nil {
		t.Fatalf("defaults not applied: %+v", first)
	}

	second := specs[1]
	if second.URL != "https://example.com/" || second.Requests != 3 || second.Concurrency != 2 || second.Method != "POST" {
		t.Fatalf("got %+v", second)
	}
	if second.Headers["Authorization"] != "Bearer token123" {
		t.Fatalf("headers = %v", second.Headers)
	}
	if m, ok := second.JSON.(map[string]any); !ok || m["key"] != "value" {
		t.Fatalf("json = %v", second.JSON)
	}
}

func TestParseYAML(t *testing.T) {
	specs, err := ParseYAML([]byte(yamlScript))
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	s := specs[1]
	if s.Method != "PUT" || string(s.Body) != "raw-body" || s.Requests != 3 || s.Concurrency != 2 {
		t.Fatalf("got %+v", s)
	}
	if s.Headers["Authorization"] != "Bearer token123" {
		t.Fatalf("headers = %v", s.Headers)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := map[string]func() error{
		"json object":       func() error { _, err := ParseJSON([]byte(`{"url":"http://x"}`)); return err },
		"json syntax":       func() error { _, err := ParseJSON([]byte(`[`)); return err },
		"json missing url":  func() error { _, err := ParseJSON([]byte(`[{"method":"GET"}]`)); return err },
		"json bad count":    func() error { _, err := ParseJSON([]byte(`[{"url":"http://x","concurrency":0}]`)); return err },
		"yaml mapping":      func() error { _, err := ParseYAML([]byte("url: http://x\n")); return err },
		"yaml missing url":  func() error { _, err := ParseYAML([]byte("- method: GET\n")); return err },
		"yaml empty":        func() error { _, err := ParseYAML([]byte("")); return err },
		"json and raw body": func() error { _, err := ParseJSON([]byte(`[{"url":"http://x","json":1,"data":"y"}]`)); return err },
	}
	for name, fn := range tests {
		if err := fn(); !errors.Is(err, ErrInvalidScript) {
			t.Errorf("%s: got %v, want ErrInvalidScript", name, err)
		}
	}
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "script.json")
	yamlPath := filepath.Join(dir, "script.yml")
	os.WriteFile(jsonPath, []byte(jsonScript), 0o644)
	os.WriteFile(yamlPath, []byte(yamlScript), 0o644)

	for _, p := range []string{jsonPath, yamlPath} {
		specs, err := LoadFile(p)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if len(specs) != 2 {
			t.Fatalf("%s: got %d specs", p, len(specs))
		}
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestReadURLs(t *testing.T) {
	urls, err := ReadURLs(strings.NewReader("http://a.test\n\n  # comment\n  http://b.test  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || urls[0] != "http://a.test" || urls[1] != "http://b.test" {
		t.Fatalf("got %v", urls)
	}

	if _, err := ReadURLs(strings.NewReader("\n# nothing\n")); err == nil {
		t.Fatal("expected error for an empty list")
	}
}
