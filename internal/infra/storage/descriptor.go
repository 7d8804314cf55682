// Package storage persists run state on disk: the end-of-run resume
// descriptor and the archive scan that feeds the next pass.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
)

// ErrNoDescriptor is returned when no resume descriptor exists yet.
var ErrNoDescriptor = errors.New("resume descriptor not found")

// SaveDescriptor writes the descriptor as JSON, replacing any previous
// one atomically via rename.
func SaveDescriptor(path string, desc *domain.ResumeDescriptor) error {
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create descriptor dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace descriptor: %w", err)
	}
	return nil
}

// LoadDescriptor reads a previously saved descriptor.
func LoadDescriptor(path string) (*domain.ResumeDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoDescriptor
		}
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var desc domain.ResumeDescriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return &desc, nil
}
