// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package store

import (
	"errors"
)

// ErrNotFound is returned by a KVStore when a key does not exist.
var ErrNotFound = errors.New("store: key not found")

// KVStore is the key-value persistence behind a Repository. Implementations
// must be safe for concurrent use.
type KVStore interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Close releases the resources held by the store.
	Close() error
}
