// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package kvstore

import (
	"bytes"
	"sort"
	"sync"
)

// Backend is the durable key/value layer below a Store. Keys and values are
// opaque byte strings; a missing key is reported as (nil, false, nil).
type Backend interface {
	Get(key []byte) ([]byte, bool, error)

	// Apply writes all given entries as one atomic unit. A nil value deletes
	// the key.
	Apply(entries []Entry) error

	// Iterate calls visit for every key with the given prefix in ascending
	// key order until visit returns false.
	Iterate(prefix []byte, visit func(key, value []byte) bool) error

	Close() error
}

// Entry is a single modification applied to a backend.
type Entry struct {
	Key   []byte
	Value []byte
}

// memoryBackend keeps all data in a map. It is used for tests, previews and
// the CLI's default mode.
type memoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{data: map[string][]byte{}}
}

func (b *memoryBackend) Get(key []byte) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, found := b.data[string(key)]
	return value, found, nil
}

func (b *memoryBackend) Apply(entries []Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, entry := range entries {
		if entry.Value == nil {
			delete(b.data, string(entry.Key))
		} else {
			b.data[string(entry.Key)] = bytes.Clone(entry.Value)
		}
	}
	return nil
}

func (b *memoryBackend) Iterate(prefix []byte, visit func(key, value []byte) bool) error {
	b.mu.RLock()
	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}
	b.mu.RUnlock()
	sort.Strings(keys)
	for _, key := range keys {
		b.mu.RLock()
		value, found := b.data[key]
		b.mu.RUnlock()
		if found && !visit([]byte(key), value) {
			return nil
		}
	}
	return nil
}

func (b *memoryBackend) Close() error {
	return nil
}
