package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Data directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s: %s", dir, result.Detail)
	}

	result = CheckDirectoryAccess("Data directory", dir+"/missing")
	if result.Passed {
		t.Fatal("expected failure for missing directory")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckFreeSpace(t *testing.T) {
	orig := statfsFunc
	t.Cleanup(func() { statfsFunc = orig })

	statfsFunc = func(string) (uint64, uint64, error) {
		return 32 << 20, 128 << 20, nil
	}
	result := CheckFreeSpace("Audio capture space", "/anywhere", 64)
	if result.Passed {
		t.Fatal("expected failure with 32 MB free and 64 MB required")
	}

	result = CheckFreeSpace("Audio capture space", "/anywhere", 16)
	if !result.Passed {
		t.Fatalf("expected pass with 32 MB free: %s", result.Detail)
	}

	statfsFunc = func(string) (uint64, uint64, error) {
		return 0, 0, errors.New("boom")
	}
	result = CheckFreeSpace("Audio capture space", "/anywhere", 16)
	if result.Passed {
		t.Fatal("expected failure on statfs error")
	}
}

func TestCheckServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckServer(context.Background(), srv.URL)
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}

	srv.Close()
	result = CheckServer(context.Background(), srv.URL)
	if result.Passed {
		t.Fatal("expected failure against closed server")
	}
}
