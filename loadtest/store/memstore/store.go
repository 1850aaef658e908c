// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package memstore

import (
	"slices"
	"sync"

	"github.com/mattermost/ltengine/loadtest/store"
)

// MemStore is an in-memory implementation of store.KVStore. Values are
// copied on the way in and out so callers can't alias stored data.
type MemStore struct {
	lock sync.RWMutex
	data map[string][]byte
}

// New returns a new, empty MemStore.
func New() *MemStore {
	return &MemStore{
		data: map[string][]byte{},
	}
}

func (s *MemStore) Get(key string) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(val), nil
}

func (s *MemStore) Set(key string, value []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.data[key] = slices.Clone(value)
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *MemStore) Keys() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (s *MemStore) Close() error {
	return nil
}

// ensure MemStore implements store.KVStore interface
var _ store.KVStore = (*MemStore)(nil)
