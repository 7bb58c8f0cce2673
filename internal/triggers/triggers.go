// Package triggers persists manual release triggers as TOML files so work
// skipped by an automated hook can be picked up later.
package triggers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	filePrefix = "manual-"
	fileSuffix = ".toml"
)

// Trigger records a release operation that should be run manually.
type Trigger struct {
	ID        string    `toml:"id" json:"id" yaml:"id"`
	Kind      string    `toml:"kind" json:"kind" yaml:"kind"`
	Operation string    `toml:"operation" json:"operation" yaml:"operation"`
	Reason    string    `toml:"reason,omitempty" json:"reason,omitempty" yaml:"reason,omitempty"`
	Source    string    `toml:"source,omitempty" json:"source,omitempty" yaml:"source,omitempty"`
	Paths     []string  `toml:"paths,omitempty" json:"paths,omitempty" yaml:"paths,omitempty"`
	CreatedAt time.Time `toml:"created_at" json:"createdAt" yaml:"createdAt"`
}

// Stored is a trigger together with the file it was read from.
type Stored struct {
	Path    string  `json:"path" yaml:"path"`
	Trigger Trigger `json:"trigger" yaml:"trigger"`
}

// Writer manages trigger files in a directory.
type Writer struct {
	dir   string
	now   func() time.Time
	newID func() string
}

// NewWriter returns a Writer rooted at dir (usually .relkit/triggers).
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now, newID: uuid.NewString}
}

// Dir returns the trigger directory.
func (w *Writer) Dir() string { return w.dir }

// Write assigns an ID and creation time when missing and stores t as
// manual-<unix>-<id8>.toml. The file appears atomically.
func (w *Writer) Write(t Trigger) (string, error) {
	if t.ID == "" {
		t.ID = w.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = w.now()
	}
	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Second)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create trigger directory: %w", err)
	}

	data, err := toml.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode trigger: %w", err)
	}

	path := filepath.Join(w.dir, FileName(t))
	tmp, err := os.CreateTemp(w.dir, ".trigger-*")
	if err != nil {
		return "", fmt.Errorf("failed to create trigger file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write trigger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write trigger file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to publish trigger file: %w", err)
	}
	return path, nil
}

// FileName returns the canonical file name for t.
func FileName(t Trigger) string {
	id := strings.ReplaceAll(t.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s%d-%s%s", filePrefix, t.CreatedAt.Unix(), id, fileSuffix)
}

// IsTriggerFile reports whether name looks like a published trigger file.
func IsTriggerFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, filePrefix) && strings.HasSuffix(base, fileSuffix)
}

// Read decodes one trigger file.
func Read(path string) (Trigger, error) {
	var t Trigger
	data, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := toml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse trigger %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// List returns every readable trigger, oldest first. A missing directory
// yields an empty list.
func (w *Writer) List() ([]Stored, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Stored{}, nil
		}
		return nil, fmt.Errorf("failed to read trigger directory: %w", err)
	}

	out := make([]Stored, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsTriggerFile(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		t, err := Read(path)
		if err != nil {
			continue
		}
		out = append(out, Stored{Path: path, Trigger: t})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Trigger.CreatedAt.Equal(out[j].Trigger.CreatedAt) {
			return out[i].Trigger.CreatedAt.Before(out[j].Trigger.CreatedAt)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Remove deletes a trigger file. Removing a missing file is not an error.
func (w *Writer) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove trigger: %w", err)
	}
	return nil
}
