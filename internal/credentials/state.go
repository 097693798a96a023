package credentials

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StateFile keeps the state of a pending authorization on disk so the
// redirect can be completed by a different process than the one that
// printed the authorization URL.
type StateFile struct {
	path string
	mu   sync.Mutex
}

// NewStateFile returns a state store backed by path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Save replaces the pending state.
func (s *StateFile) Save(state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(state+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}

// Consume reports whether state is the pending one. A match removes the file;
// a mismatch leaves it for the genuine redirect.
func (s *StateFile) Consume(state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading state: %w", err)
	}
	pending := strings.TrimSpace(string(data))
	if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(state)) != 1 {
		return false, nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("removing state: %w", err)
	}
	return true, nil
}
