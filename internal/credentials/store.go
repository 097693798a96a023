// Package credentials persists the Streamlabs token pair.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fundsync-dev/fundsync/internal/model"
)

// ErrNoAccessToken is returned by Save for a pair without an access token.
var ErrNoAccessToken = errors.New("credentials: access token is required")

// FileStore keeps the token pair in a YAML file readable only by the owner.
// The pair is always written and removed as a unit.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored pair. A missing file yields zero Credentials.
func (s *FileStore) Load() (model.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Credentials{}, nil
	}
	if err != nil {
		return model.Credentials{}, fmt.Errorf("reading credentials: %w", err)
	}

	var c model.Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return model.Credentials{}, fmt.Errorf("parsing credentials: %w", err)
	}
	if !c.Authenticated() {
		// A refresh token on its own is not a session.
		return model.Credentials{}, nil
	}
	return c, nil
}

// Save replaces the stored pair. The file is written to a temporary name and
// renamed into place so readers never see half a pair.
func (s *FileStore) Save(c model.Credentials) error {
	if !c.Authenticated() {
		return ErrNoAccessToken
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}

// Clear removes both tokens.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// ClearIf removes the pair only while its access token is still access. An
// unparseable file is removed too. It reports whether anything was removed.
func (s *FileStore) ClearIf(access string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading credentials: %w", err)
	}
	var c model.Credentials
	if err := yaml.Unmarshal(data, &c); err == nil && c.AccessToken != access {
		return false, nil
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("removing credentials: %w", err)
	}
	return true, nil
}
