// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/mattermost/ltengine/loadtest/store"
)

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// FileStore is a store.KVStore keeping one file per key in a directory.
// Writes go through a temporary file and a rename so readers never see a
// partially written value.
type FileStore struct {
	dir  string
	lock sync.RWMutex
}

// New returns a FileStore rooted at dir, creating it if needed.
func New(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("filestore: directory should not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: could not create directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) (string, error) {
	if !keyRe.MatchString(key) || key == "." || key == ".." {
		return "", fmt.Errorf("filestore: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".rec"), nil
}

func (s *FileStore) Get(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	return data, err
}

func (s *FileStore) Set(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: could not write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: could not close %q: %w", key, err)
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FileStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// ensure FileStore implements store.KVStore interface
var _ store.KVStore = (*FileStore)(nil)
