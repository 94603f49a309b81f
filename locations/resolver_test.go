package locations

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestResolveStaticAndFallback(t *testing.T) {
	r, err := NewResolver(&MemoryBackend{}, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if got := r.Resolve("Berlin"); got != BerlinCode {
		t.Errorf("Resolve(Berlin) = %q", got)
	}
	if got := r.Resolve("  berlin "); got != BerlinCode {
		t.Errorf("Resolve is not normalizing input: %q", got)
	}
	if got := r.Resolve("Kleinkleckersdorf"); got != BerlinCode {
		t.Errorf("unknown city should fall back to Berlin, got %q", got)
	}
	if got := r.Resolve(""); got != BerlinCode {
		t.Errorf("empty city should fall back to Berlin, got %q", got)
	}
}

func TestResolveCacheSupersedesStaticSeed(t *testing.T) {
	// A code learned on an earlier run wins over the shipped seed.
	backend := &MemoryBackend{Entries: map[string]string{"hamburg": "AD08DE9999"}}
	r, err := NewResolver(backend, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve("Hamburg"); got != "AD08DE9999" {
		t.Errorf("Resolve(Hamburg) = %q; want the cached code", got)
	}
}

func TestResolveStaticHitWritesThrough(t *testing.T) {
	backend := &MemoryBackend{}
	r, err := NewResolver(backend, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve("München"); got != "AD08DE6412" {
		t.Fatalf("Resolve(München) = %q", got)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if backend.Entries["münchen"] != "AD08DE6412" {
		t.Errorf("static hit not written through: %v", backend.Entries)
	}
}

func TestResolveUsesLookupAndCaches(t *testing.T) {
	calls := 0
	lookup := func(city string) (string, error) {
		calls++
		return "AD08DE0042", nil
	}
	backend := &MemoryBackend{}
	r, err := NewResolver(backend, lookup, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if got := r.Resolve("Potsdam"); got != "AD08DE0042" {
		t.Fatalf("Resolve = %q", got)
	}
	if got := r.Resolve("potsdam"); got != "AD08DE0042" {
		t.Fatalf("cached Resolve = %q", got)
	}
	if calls != 1 {
		t.Errorf("lookup called %d times; want 1", calls)
	}

	// Nothing persisted until Flush.
	if len(backend.Entries) != 0 {
		t.Error("backend written before Flush")
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if backend.Entries["potsdam"] != "AD08DE0042" {
		t.Errorf("backend after Flush = %v", backend.Entries)
	}

	// A clean flush is a no-op.
	backend.Entries = nil
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if backend.Entries != nil {
		t.Error("second Flush wrote despite no changes")
	}
}

func TestResolveLookupFailureFallsBack(t *testing.T) {
	lookup := func(city string) (string, error) {
		return "", errors.New("portal unreachable")
	}
	r, err := NewResolver(&MemoryBackend{}, lookup, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve("Potsdam"); got != BerlinCode {
		t.Errorf("failed lookup should fall back to Berlin, got %q", got)
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "locations.json")
	b := &FileBackend{Path: path}

	// Missing file loads as empty, not as an error.
	entries, err := b.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("fresh load = %v", entries)
	}

	if err := b.Store(map[string]string{"potsdam": "AD08DE0042"}); err != nil {
		t.Fatal(err)
	}
	entries, err = b.Load()
	if err != nil {
		t.Fatal(err)
	}
	if entries["potsdam"] != "AD08DE0042" {
		t.Errorf("round trip = %v", entries)
	}
}
