// Package testutil provides testing utilities for tandem tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// WriteTree writes files under a fresh temporary directory and returns its
// path. The files map contains relative paths to file contents. The
// directory is removed when the test completes.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	WriteFiles(t, dir, files)
	return dir
}

// WriteFiles writes files relative to dir, creating parent directories.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

const indexHTML = `<!doctype html>
<html>
  <head><title>app</title></head>
  <body>
    <div id="app"></div>
    <script type="module" src="/src/main.tsx"></script>
  </body>
</html>
`

// SetupProject creates a minimal three-package project: a renderer with an
// index.html, a preload package with a source entry exporting names, and a
// main package. Extra files override or extend the defaults.
func SetupProject(t *testing.T, extra map[string]string) string {
	t.Helper()

	files := map[string]string{
		"packages/renderer/index.html":    indexHTML,
		"packages/renderer/src/main.tsx":  "document.getElementById('app')!.textContent = 'hello';\n",
		"packages/preload/src/index.ts":   "export const versions = {node: '20'};\nexport function sha256sum(s: string) { return s; }\n",
		"packages/preload/src/exposed.ts": "import * as api from './index';\nexport default api;\n",
		"packages/main/src/index.ts":      "console.log(process.env.VITE_DEV_SERVER_URL);\n",
	}
	for path, content := range extra {
		files[path] = content
	}
	return WriteTree(t, files)
}

// WaitFor polls cond until it returns true or timeout elapses.
// Returns false on timeout.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// SkipIfMissing skips the test if the named binary is not in PATH.
func SkipIfMissing(t *testing.T, binary string) {
	t.Helper()

	if _, err := exec.LookPath(binary); err != nil {
		t.Skipf("%s not found in PATH, skipping test", binary)
	}
}

// SkipIfShort skips slow tests that spawn real processes or bind sockets
// when running with -short.
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping in short mode")
	}
}
