//go:build windows

package workflow

import (
	"fmt"
	"os"
	"time"
)

// lockFile approximates an exclusive lock with an O_EXCL sentinel file.
func lockFile(path string) (func(), error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("workflow state is locked by another process")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
