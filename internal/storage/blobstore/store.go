// Package blobstore persists named opaque blobs, one per ledger.
package blobstore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const defaultStateDir = "./state"

// ErrInvalidKey is returned for keys that sanitize to nothing.
var ErrInvalidKey = errors.New("invalid blob key")

// Store is the key-value boundary every ledger persists through.
type Store interface {
	// Get returns the blob stored under key; ok is false when nothing is stored.
	Get(key string) (payload []byte, ok bool, err error)
	Set(key string, payload []byte) error
	Remove(key string) error
}

// StateDir returns the directory configured through DEXSIM_STATE_DIR or the default.
func StateDir() string {
	if stateDir := os.Getenv("DEXSIM_STATE_DIR"); stateDir != "" {
		return stateDir
	}
	return defaultStateDir
}

// FileStore keeps each blob in its own file under dir so restarts keep session state.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the state directory and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = StateDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create state dir")
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get reads the blob from disk.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, errors.Wrapf(err, "read blob %s", key)
	}

	if len(payload) == 0 {
		return nil, false, nil
	}

	return payload, true, nil
}

// Set writes the blob to disk atomically via temp file.
func (s *FileStore) Set(key string, payload []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrapf(err, "write blob %s temp file", key)
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "persist blob %s", key)
	}

	return nil
}

// Remove deletes the blob; removing a missing blob is not an error.
func (s *FileStore) Remove(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove blob %s", key)
	}

	return nil
}

func (s *FileStore) path(key string) (string, error) {
	name := sanitizeKey(key)
	if name == "" {
		return "", errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return filepath.Join(s.dir, name+".json"), nil
}

func sanitizeKey(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
