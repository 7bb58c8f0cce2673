package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"relkit/internal/paths"
)

// State is the in-progress marker persisted for the duration of a guarded
// operation.
type State struct {
	InProgress bool      `json:"inProgress" yaml:"inProgress"`
	Operation  string    `json:"operation" yaml:"operation"`
	StartTime  time.Time `json:"startTime" yaml:"startTime"`
}

// Age returns how long the operation has been running at now.
func (s State) Age(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

func (s State) sameAs(other State) bool {
	return s.Operation == other.Operation && s.StartTime.Equal(other.StartTime)
}

// StateStore persists the in-progress marker.
type StateStore interface {
	Save(State) error
	// Load returns nil without error when no marker exists.
	Load() (*State, error)
	// Release removes the marker only if it still belongs to st.
	Release(st State) error
	// Clear removes the marker unconditionally.
	Clear() error
}

// FileStateStore keeps the marker in a JSON file. Every access holds an
// advisory lock on a sibling lock file.
type FileStateStore struct {
	path     string
	lockPath string
}

// NewFileStateStore returns the store for a repository's .relkit directory.
func NewFileStateStore(repoRoot string) *FileStateStore {
	return &FileStateStore{
		path:     paths.WorkflowStatePath(repoRoot),
		lockPath: paths.WorkflowLockPath(repoRoot),
	}
}

// Path returns the marker file location.
func (s *FileStateStore) Path() string { return s.path }

func (s *FileStateStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	unlock, err := lockFile(s.lockPath)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// Save writes st atomically.
func (s *FileStateStore) Save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workflow state: %w", err)
	}
	return s.withLock(func() error {
		tmp := s.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("writing workflow state: %w", err)
		}
		if err := os.Rename(tmp, s.path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("writing workflow state: %w", err)
		}
		return nil
	})
}

// Load reads the marker.
func (s *FileStateStore) Load() (*State, error) {
	var st *State
	err := s.withLock(func() error {
		var err error
		st, err = s.read()
		return err
	})
	return st, err
}

func (s *FileStateStore) read() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading workflow state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing workflow state: %w", err)
	}
	return &st, nil
}

// Release removes the marker if it was written for st. A marker left by a
// concurrent operation is kept.
func (s *FileStateStore) Release(st State) error {
	return s.withLock(func() error {
		current, err := s.read()
		if err != nil || current == nil {
			return err
		}
		if !current.sameAs(st) {
			return nil
		}
		return removeIfExists(s.path)
	})
}

// Clear removes the marker.
func (s *FileStateStore) Clear() error {
	return s.withLock(func() error {
		return removeIfExists(s.path)
	})
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing workflow state: %w", err)
	}
	return nil
}
