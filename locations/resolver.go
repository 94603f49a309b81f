// Package locations resolves free-text city names to the portal location
// codes required by search URL builders, with a write-back cache so
// repeated runs do not redo lookups.
package locations

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// BerlinCode is the fallback location code used when a city cannot be
// resolved. Berlin is the default search region.
const BerlinCode = "AD08DE8634"

// staticCodes are the well-known city codes shipped with the binary.
// Only Berlin is verified; the others are best-effort seeds that a live
// lookup can overwrite in the cache.
var staticCodes = map[string]string{
	"berlin":    BerlinCode,
	"münchen":   "AD08DE6412",
	"hamburg":   "AD08DE2989",
	"köln":      "AD08DE1699",
	"frankfurt": "AD08DE2651",
}

// Backend persists the location cache between runs.
type Backend interface {
	Load() (map[string]string, error)
	Store(entries map[string]string) error
}

// FileBackend stores the cache as a JSON object on disk.
type FileBackend struct {
	Path string
}

func (b *FileBackend) Load() (map[string]string, error) {
	data, err := os.ReadFile(b.Path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read location cache: %w", err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode location cache %s: %w", b.Path, err)
	}
	return entries, nil
}

func (b *FileBackend) Store(entries map[string]string) error {
	if dir := filepath.Dir(b.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.Path, data, 0o644); err != nil {
		return fmt.Errorf("write location cache: %w", err)
	}
	return nil
}

// MemoryBackend keeps the cache in memory only, for tests and one-shot runs.
type MemoryBackend struct {
	Entries map[string]string
}

func (b *MemoryBackend) Load() (map[string]string, error) {
	if b.Entries == nil {
		b.Entries = map[string]string{}
	}
	out := make(map[string]string, len(b.Entries))
	for k, v := range b.Entries {
		out[k] = v
	}
	return out, nil
}

func (b *MemoryBackend) Store(entries map[string]string) error {
	b.Entries = make(map[string]string, len(entries))
	for k, v := range entries {
		b.Entries[k] = v
	}
	return nil
}

// LookupFunc performs a live portal lookup for a city that is neither in
// the static table nor in the cache. It is optional; without one the
// resolver falls back to Berlin.
type LookupFunc func(city string) (string, error)

// Resolver maps city names to portal location codes. Lookups hit the
// persisted cache first so a live-learned code supersedes a stale static
// seed, then the static table, then the optional live lookup. New
// results are cached and written back on Flush, not on every put.
type Resolver struct {
	mu      sync.Mutex
	backend Backend
	lookup  LookupFunc
	cache   map[string]string
	dirty   bool
	logger  *log.Logger
}

func NewResolver(backend Backend, lookup LookupFunc, logger *log.Logger) (*Resolver, error) {
	if logger == nil {
		logger = log.Default()
	}
	cache, err := backend.Load()
	if err != nil {
		return nil, err
	}
	return &Resolver{backend: backend, lookup: lookup, cache: cache, logger: logger}, nil
}

// Resolve returns the location code for a city name. Unresolvable cities
// fall back to Berlin with a warning so the search still runs.
func (r *Resolver) Resolve(city string) string {
	key := normalizeCity(city)
	if key == "" {
		return BerlinCode
	}
	r.mu.Lock()
	code, cached := r.cache[key]
	r.mu.Unlock()
	if cached {
		return code
	}

	if code, ok := staticCodes[key]; ok {
		r.put(key, code)
		return code
	}

	if r.lookup != nil {
		code, err := r.lookup(city)
		if err == nil && code != "" {
			r.put(key, code)
			return code
		}
		if err != nil {
			r.logger.Printf("WARN: location lookup for %q failed: %v", city, err)
		}
	}

	r.logger.Printf("WARN: unknown location %q, falling back to Berlin", city)
	return BerlinCode
}

func (r *Resolver) put(key, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache[key] == code {
		return
	}
	r.cache[key] = code
	r.dirty = true
}

// Flush writes the cache back through the backend if anything changed
// since the last flush. Called once at run teardown.
func (r *Resolver) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil
	}
	if err := r.backend.Store(r.cache); err != nil {
		return err
	}
	r.dirty = false
	return nil
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
