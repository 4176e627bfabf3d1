package gomod

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Overlay is the JSON document read by `go build -overlay`: each original
// source file is replaced by the file at the mapped path.
type Overlay struct {
	Replace map[string]string
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{Replace: make(map[string]string)}
}

// Add substitutes replacement for original. Both paths are made absolute,
// as the go command requires.
func (o *Overlay) Add(original, replacement string) error {
	from, err := filepath.Abs(original)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", original, err)
	}
	to, err := filepath.Abs(replacement)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", replacement, err)
	}
	o.Replace[from] = to
	return nil
}

// Len returns the number of substituted files.
func (o *Overlay) Len() int {
	return len(o.Replace)
}

// Write stores the overlay as JSON at path.
func (o *Overlay) Write(path string) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}
	return nil
}

// ReadOverlay loads an overlay written by Write.
func ReadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o := NewOverlay()
	if err := json.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("failed to decode overlay %s: %w", path, err)
	}
	return o, nil
}
