package fileserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNew(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<h1>root</h1>")
	writeFile(t, filepath.Join(root, "app.wasm"), "\x00asm\x01\x00\x00\x00")
	writeFile(t, filepath.Join(root, "assets", "main.js"), "console.log(1)")

	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "index", method: http.MethodGet, path: "/", status: http.StatusOK, body: "<h1>root</h1>"},
		{name: "binary file", method: http.MethodGet, path: "/app.wasm", status: http.StatusOK, body: "\x00asm\x01\x00\x00\x00"},
		{name: "nested file", method: http.MethodGet, path: "/assets/main.js", status: http.StatusOK, body: "console.log(1)"},
		{name: "head", method: http.MethodHead, path: "/assets/main.js", status: http.StatusOK, body: ""},
		{name: "missing", method: http.MethodGet, path: "/nope.txt", status: http.StatusNotFound},
		{name: "directory without slash", method: http.MethodGet, path: "/assets", status: http.StatusMovedPermanently},
		{name: "post", method: http.MethodPost, path: "/", status: http.StatusNotImplemented},
		{name: "options", method: http.MethodOptions, path: "/", status: http.StatusNotImplemented},
	}

	h := New(root)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(test.method, test.path, nil))

			if rec.Code != test.status {
				t.Fatalf("expected status %d, got %d", test.status, rec.Code)
			}
			if test.body != "" && rec.Body.String() != test.body {
				t.Errorf("expected body %q, got %q", test.body, rec.Body.String())
			}
		})
	}
}

func TestNewDirectoryListing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "docs", "a.txt"), "a")
	writeFile(t, filepath.Join(root, "docs", "b.txt"), "b")

	rec := httptest.NewRecorder()
	New(root).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"a.txt", "b.txt"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("listing does not mention %s:\n%s", name, body)
		}
	}
}

func TestNewPermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced")
	}

	root := t.TempDir()
	path := filepath.Join(root, "secret.txt")
	writeFile(t, path, "secret")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	New(root).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/secret.txt", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
