package storage

import (
	"fmt"
	"os"
	"strings"
)

// ScanArchive walks a prior run's output directory and returns the set
// of item identifiers already downloaded. Artifacts are written as
// <itemID>.zip, so the basename is the completion marker.
func ScanArchive(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("scan archive dir: %w", err)
	}

	completed := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".zip") {
			continue
		}
		id := strings.TrimSuffix(name, ".zip")
		if id == "" {
			continue
		}
		completed[id] = struct{}{}
	}
	return completed, nil
}
