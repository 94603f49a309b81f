package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Dataset receives the exported listing records of a run.
type Dataset interface {
	Push(record map[string]any) error
	Close() error
}

// JSONLDataset appends one JSON object per line to a file. Safe for
// concurrent pushes.
type JSONLDataset struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func NewJSONLDataset(path string) (*JSONLDataset, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dataset dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	return &JSONLDataset{file: file, enc: json.NewEncoder(file)}, nil
}

func (d *JSONLDataset) Push(record map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enc.Encode(record); err != nil {
		return fmt.Errorf("write dataset record: %w", err)
	}
	return nil
}

func (d *JSONLDataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

// MemoryDataset collects records in memory, for tests.
type MemoryDataset struct {
	mu      sync.Mutex
	Records []map[string]any
}

func (d *MemoryDataset) Push(record map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Records = append(d.Records, record)
	return nil
}

func (d *MemoryDataset) Close() error { return nil }
