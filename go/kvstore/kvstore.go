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
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/ethereum/go-ethereum/rlp"
)

// Prefixes of the key spaces within the backend. Instance storage is keyed
// by exec id first, so slots of different instances can never collide.
const (
	storagePrefix  = 's'
	instancePrefix = 'i'
	balancePrefix  = 'b'
	noncePrefix    = 'n'
)

// Store is the KeyValueStore implementation. All modifications are kept in a
// journaled overlay on top of a Backend until Commit writes them as a single
// batch. Snapshots are positions in the undo journal.
//
// A Store is not safe for concurrent use; executions are serialized by the
// caller.
type Store struct {
	backend Backend
	dirty   map[string][]byte // nil values mark deleted keys
	undo    []func()
	err     error // the first backend read error since the last commit
}

var _ appvault.KeyValueStore = (*Store)(nil)

// New creates a store on top of the given backend.
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		dirty:   map[string][]byte{},
	}
}

// NewInMemory creates a store on top of a fresh in-memory backend.
func NewInMemory() *Store {
	return New(NewMemoryBackend())
}

func (s *Store) GetStorage(id appvault.ExecID, key appvault.Key) appvault.Word {
	var res appvault.Word
	copy(res[:], s.read(storageKey(id, key)))
	return res
}

func (s *Store) SetStorage(id appvault.ExecID, key appvault.Key, value appvault.Word) {
	if value.IsZero() {
		s.write(storageKey(id, key), nil)
		return
	}
	s.write(storageKey(id, key), bytes.Clone(value[:]))
}

func (s *Store) GetInstance(id appvault.ExecID) (appvault.Instance, bool) {
	var res appvault.Instance
	data := s.read(instanceKey(id))
	if data == nil {
		return res, false
	}
	if err := rlp.DecodeBytes(data, &res); err != nil {
		s.recordError(fmt.Errorf("corrupted instance record %v: %w", id, err))
		return appvault.Instance{}, false
	}
	return res, true
}

func (s *Store) SetInstance(id appvault.ExecID, instance appvault.Instance) {
	data, err := rlp.EncodeToBytes(&instance)
	if err != nil {
		// All fields of an instance record are encodable.
		panic(fmt.Sprintf("failed to encode instance record: %v", err))
	}
	s.write(instanceKey(id), data)
}

func (s *Store) GetBalance(address appvault.Address) appvault.Value {
	var res appvault.Value
	copy(res[:], s.read(accountKey(balancePrefix, address)))
	return res
}

func (s *Store) SetBalance(address appvault.Address, value appvault.Value) {
	if value.IsZero() {
		s.write(accountKey(balancePrefix, address), nil)
		return
	}
	s.write(accountKey(balancePrefix, address), bytes.Clone(value[:]))
}

func (s *Store) GetNonce(address appvault.Address) uint64 {
	data := s.read(accountKey(noncePrefix, address))
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (s *Store) SetNonce(address appvault.Address, nonce uint64) {
	if nonce == 0 {
		s.write(accountKey(noncePrefix, address), nil)
		return
	}
	s.write(accountKey(noncePrefix, address), binary.BigEndian.AppendUint64(nil, nonce))
}

func (s *Store) CreateSnapshot() appvault.Snapshot {
	return appvault.Snapshot(len(s.undo))
}

func (s *Store) RestoreSnapshot(snapshot appvault.Snapshot) {
	for len(s.undo) > int(snapshot) {
		s.undo[len(s.undo)-1]()
		s.undo = s.undo[:len(s.undo)-1]
	}
}

// Commit writes all pending modifications to the backend. If a backend read
// failed since the last commit, the pending modifications are discarded and
// the read error is reported instead.
func (s *Store) Commit() error {
	defer s.reset()
	if s.err != nil {
		return fmt.Errorf("store read failed, discarding modifications: %w", s.err)
	}
	if len(s.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.dirty))
	for key := range s.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: []byte(key), Value: s.dirty[key]})
	}
	return s.backend.Apply(entries)
}

// Discard drops all pending modifications.
func (s *Store) Discard() {
	s.reset()
}

// Close closes the underlying backend. Pending modifications are lost.
func (s *Store) Close() error {
	s.reset()
	return s.backend.Close()
}

// Storage returns all non-zero slots of the given instance, including
// pending modifications.
func (s *Store) Storage(id appvault.ExecID) (map[appvault.Key]appvault.Word, error) {
	res := map[appvault.Key]appvault.Word{}
	prefix := append([]byte{storagePrefix}, id[:]...)
	err := s.backend.Iterate(prefix, func(key, value []byte) bool {
		var k appvault.Key
		var v appvault.Word
		copy(k[:], key[len(prefix):])
		copy(v[:], value)
		res[k] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	for key, value := range s.dirty {
		if !bytes.HasPrefix([]byte(key), prefix) {
			continue
		}
		var k appvault.Key
		copy(k[:], key[len(prefix):])
		if value == nil {
			delete(res, k)
		} else {
			var v appvault.Word
			copy(v[:], value)
			res[k] = v
		}
	}
	return res, nil
}

// Instances lists the ids of all instances in ascending order, including
// pending ones.
func (s *Store) Instances() ([]appvault.ExecID, error) {
	ids := map[appvault.ExecID]struct{}{}
	prefix := []byte{instancePrefix}
	err := s.backend.Iterate(prefix, func(key, _ []byte) bool {
		var id appvault.ExecID
		copy(id[:], key[1:])
		ids[id] = struct{}{}
		return true
	})
	if err != nil {
		return nil, err
	}
	for key, value := range s.dirty {
		if key[0] != instancePrefix {
			continue
		}
		var id appvault.ExecID
		copy(id[:], key[1:])
		if value == nil {
			delete(ids, id)
		} else {
			ids[id] = struct{}{}
		}
	}
	res := make([]appvault.ExecID, 0, len(ids))
	for id := range ids {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i][:], res[j][:]) < 0
	})
	return res, nil
}

func (s *Store) read(key []byte) []byte {
	if value, found := s.dirty[string(key)]; found {
		return value
	}
	value, _, err := s.backend.Get(key)
	if err != nil {
		s.recordError(err)
		return nil
	}
	return value
}

func (s *Store) write(key, value []byte) {
	k := string(key)
	previous, existed := s.dirty[k]
	s.undo = append(s.undo, func() {
		if existed {
			s.dirty[k] = previous
		} else {
			delete(s.dirty, k)
		}
	})
	s.dirty[k] = value
}

func (s *Store) recordError(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Store) reset() {
	s.dirty = map[string][]byte{}
	s.undo = s.undo[:0]
	s.err = nil
}

func storageKey(id appvault.ExecID, key appvault.Key) []byte {
	res := make([]byte, 0, 1+len(id)+len(key))
	res = append(res, storagePrefix)
	res = append(res, id[:]...)
	return append(res, key[:]...)
}

func instanceKey(id appvault.ExecID) []byte {
	return append([]byte{instancePrefix}, id[:]...)
}

func accountKey(prefix byte, address appvault.Address) []byte {
	return append([]byte{prefix}, address[:]...)
}
