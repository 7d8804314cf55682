package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/core/domain"
)

func TestDescriptorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "resume.json")

	desc := &domain.ResumeDescriptor{
		RunID:     "run-1",
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Total:     10,
		Succeeded: 7,
		FailedIDs: []string{"a", "b", "c"},
	}
	if err := SaveDescriptor(path, desc); err != nil {
		t.Fatal(err)
	}

	got, err := LoadDescriptor(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != desc.RunID || got.Total != 10 || got.Succeeded != 7 {
		t.Errorf("descriptor = %+v, want %+v", got, desc)
	}
	if len(got.FailedIDs) != 3 || got.FailedIDs[0] != "a" {
		t.Errorf("failed IDs = %v", got.FailedIDs)
	}
}

func TestLoadDescriptorMissing(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNoDescriptor) {
		t.Errorf("err = %v, want ErrNoDescriptor", err)
	}
}

func TestSaveDescriptorReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.json")

	first := &domain.ResumeDescriptor{RunID: "run-1", FailedIDs: []string{"x"}}
	second := &domain.ResumeDescriptor{RunID: "run-2"}
	if err := SaveDescriptor(path, first); err != nil {
		t.Fatal(err)
	}
	if err := SaveDescriptor(path, second); err != nil {
		t.Fatal(err)
	}

	got, err := LoadDescriptor(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-2" || len(got.FailedIDs) != 0 {
		t.Errorf("descriptor = %+v, want run-2 with no failures", got)
	}
}

func TestScanArchive(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"note-1.zip", "note-2.zip", "resume.json", ".zip"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.zip"), 0o755); err != nil {
		t.Fatal(err)
	}

	completed, err := ScanArchive(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 2 {
		t.Fatalf("completed = %v, want note-1 and note-2", completed)
	}
	for _, id := range []string{"note-1", "note-2"} {
		if _, ok := completed[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
}

func TestScanArchiveMissingDir(t *testing.T) {
	completed, err := ScanArchive(filepath.Join(t.TempDir(), "never-made"))
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 0 {
		t.Errorf("completed = %v, want empty", completed)
	}
}
