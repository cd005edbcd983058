package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.batches))
	copy(out, r.batches)
	return out
}

func waitForBatches(t *testing.T, r *recorder, n int) [][]string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if b := r.snapshot(); len(b) >= n {
			return b
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d batches, got %d", n, len(r.snapshot()))
	return nil
}

func TestNew_RequiresCallback(t *testing.T) {
	if _, err := New(Options{}, nil, nil); err == nil {
		t.Fatal("New should fail without a callback")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{}, func([]string) {}, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}

	w.Start()
	time.Sleep(10 * time.Millisecond)

	// Calling Stop() multiple times should not panic
	w.Stop()
	w.Stop()
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := New(Options{}, func([]string) {}, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	w.Stop()
}

func TestWatcher_Add(t *testing.T) {
	w, err := New(Options{}, func([]string) {}, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	t.Run("missing root", func(t *testing.T) {
		err := w.Add(filepath.Join(t.TempDir(), "missing"))
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("Add() error = %v, want 'does not exist'", err)
		}
	})

	t.Run("file root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "f.txt")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		err := w.Add(file)
		if err == nil || !strings.Contains(err.Error(), "not a directory") {
			t.Errorf("Add() error = %v, want 'not a directory'", err)
		}
	})

	t.Run("directory root", func(t *testing.T) {
		dir := t.TempDir()
		if err := w.Add(dir); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if roots := w.Roots(); len(roots) != 1 || roots[0] != dir {
			t.Errorf("Roots() = %v, want [%s]", roots, dir)
		}
	})
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(Options{Debounce: 100 * time.Millisecond}, rec.record, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	w.Start()

	file := filepath.Join(dir, "index.ts")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(file, []byte(strings.Repeat("x", i+1)), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitForBatches(t, rec, 1)
	time.Sleep(250 * time.Millisecond)
	batches := rec.snapshot()

	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1: %v", len(batches), batches)
	}
	if len(batches[0]) != 1 || batches[0][0] != file {
		t.Errorf("batch = %v, want [%s]", batches[0], file)
	}
}

func TestWatcher_IgnoredPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}

	w, err := New(Options{Debounce: 20 * time.Millisecond, Ignore: []string{"node_modules"}}, rec.record, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	w.Start()

	ignored := filepath.Join(dir, "node_modules", "pkg", "index.js")
	if err := os.WriteFile(ignored, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	watched := filepath.Join(dir, "main.ts")
	if err := os.WriteFile(watched, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	batches := waitForBatches(t, rec, 1)
	for _, batch := range batches {
		for _, path := range batch {
			if strings.Contains(path, "node_modules") {
				t.Errorf("ignored path delivered: %s", path)
			}
		}
	}
}

func TestWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(Options{Debounce: 20 * time.Millisecond}, rec.record, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	w.Start()

	sub := filepath.Join(dir, "components")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	waitForBatches(t, rec, 1)

	nested := filepath.Join(sub, "Button.tsx")
	if err := os.WriteFile(nested, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, batch := range rec.snapshot() {
			for _, path := range batch {
				if path == nested {
					return
				}
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("change in new subdirectory was not delivered")
}

func TestWatcher_DeliveriesDoNotOverlap(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		maxSeen int
		calls   int
	)
	slow := func(paths []string) {
		mu.Lock()
		running++
		calls++
		if running > maxSeen {
			maxSeen = running
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	}

	w, err := New(Options{}, slow, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 10; i++ {
		w.trigger([]string{"a.ts"})
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		idle := running == 0 && calls > 0
		mu.Unlock()
		if idle {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if maxSeen != 1 {
		t.Errorf("max concurrent deliveries = %d, want 1", maxSeen)
	}
	if calls >= 10 {
		t.Errorf("calls = %d, want fewer than 10 (coalesced)", calls)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"b", "a", "b", "c", "a"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("dedupe() = %v, want %v", got, want)
	}
}

func TestWatcher_ExcludedTree(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "build")
	if err := os.Mkdir(out, 0755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}

	w, err := New(Options{Debounce: 20 * time.Millisecond, Exclude: []string{out}}, rec.record, nil)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	w.Start()

	if err := os.WriteFile(filepath.Join(out, "index.mjs"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("excluded writes delivered: %v", got)
	}
}

func TestWatcher_RootBelowIgnoredName(t *testing.T) {
	tests := []struct {
		name   string
		parent string
	}{
		{"dist ancestor", "dist"},
		{"node_modules ancestor", "node_modules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), tt.parent, "app")
			if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.MkdirAll(filepath.Join(root, tt.parent), 0755); err != nil {
				t.Fatal(err)
			}
			rec := &recorder{}

			w, err := New(Options{Debounce: 20 * time.Millisecond, Ignore: []string{tt.parent}}, rec.record, nil)
			if err != nil {
				t.Fatalf("Failed to create watcher: %v", err)
			}
			defer w.Stop()
			if err := w.Add(root); err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			w.Start()

			// ignored names below the root still apply
			if err := os.WriteFile(filepath.Join(root, tt.parent, "out.js"), []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
			time.Sleep(100 * time.Millisecond)

			source := filepath.Join(root, "src", "index.ts")
			if err := os.WriteFile(source, []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}

			batches := waitForBatches(t, rec, 1)
			var found bool
			for _, batch := range batches {
				for _, path := range batch {
					if path == source {
						found = true
					}
					if strings.HasPrefix(path, filepath.Join(root, tt.parent)) {
						t.Errorf("ignored path delivered: %s", path)
					}
				}
			}
			if !found {
				t.Errorf("edit under %s never delivered: %v", root, batches)
			}
		})
	}
}
