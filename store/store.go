// Package store persists accounts, visibility grants, events and API
// sessions as flat files under a single data directory. Every mutation
// reloads the backing file, applies the change in memory and rewrites the
// whole file; a store-wide mutex serializes those cycles so concurrent
// sessions cannot interleave and silently lose each other's writes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	accountsFile   = "accounts.json"
	visibilityFile = "visible_accounts.json"
	scheduleFile   = "schedule.csv"
	tokensFile     = "api_sessions.json"
)

type Store struct {
	mu        sync.Mutex
	dataDir   string
	uploadDir string
}

// Open creates the data and upload directories if needed and returns a
// store rooted at them.
func Open(dataDir, uploadDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dataDir: dataDir, uploadDir: uploadDir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dataDir, name)
}

// readJSON loads a JSON file into v. A missing file leaves v untouched
// and returns false; an unparsable file reports ErrCorruptState rather
// than masking the damage with an empty default.
func (s *Store) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptState, name, err)
	}
	return true, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(name), append(data, '\n'), 0o644)
}
