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
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const defaultCacheSize = 1 << 14

// levelDbBackend persists data in a LevelDB directory. Recently read values
// are kept in an LRU cache which is updated on every applied batch.
type levelDbBackend struct {
	db    *leveldb.DB
	cache *lru.Cache[string, cachedValue]
}

type cachedValue struct {
	value []byte
	found bool
}

// OpenLevelDb opens or creates a LevelDB backed store directory.
func OpenLevelDb(path string) (Backend, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB at %s: %w", path, err)
	}
	cache, err := lru.New[string, cachedValue](defaultCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &levelDbBackend{db: db, cache: cache}, nil
}

func (b *levelDbBackend) Get(key []byte) ([]byte, bool, error) {
	if cached, found := b.cache.Get(string(key)); found {
		return cached.value, cached.found, nil
	}
	value, err := b.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		b.cache.Add(string(key), cachedValue{})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b.cache.Add(string(key), cachedValue{value: value, found: true})
	return value, true, nil
}

func (b *levelDbBackend) Apply(entries []Entry) error {
	batch := new(leveldb.Batch)
	for _, entry := range entries {
		if entry.Value == nil {
			batch.Delete(entry.Key)
		} else {
			batch.Put(entry.Key, entry.Value)
		}
	}
	if err := b.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		// The cache may now be out of sync with the database.
		b.cache.Purge()
		return err
	}
	for _, entry := range entries {
		b.cache.Add(string(entry.Key), cachedValue{
			value: bytes.Clone(entry.Value),
			found: entry.Value != nil,
		})
	}
	return nil
}

func (b *levelDbBackend) Iterate(prefix []byte, visit func(key, value []byte) bool) error {
	iter := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !visit(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())) {
			break
		}
	}
	return iter.Error()
}

func (b *levelDbBackend) Close() error {
	b.cache.Purge()
	return b.db.Close()
}
