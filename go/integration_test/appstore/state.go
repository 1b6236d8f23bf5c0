// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package appstore

import (
	"fmt"
	"maps"

	"github.com/appvault-labs/appvault/go/appvault"
	"github.com/appvault-labs/appvault/go/kvstore"
)

// ----------------------------------------------------------------------------
// State
// ----------------------------------------------------------------------------

// State is the observable content of a store: the native balances of a set
// of accounts and the storage of all instances. It is used to describe the
// state before and after a scenario.
type State struct {
	Balances  Balances
	Instances map[appvault.ExecID]Storage
}

// Capture reads the state of the given accounts and of all instances of the
// store.
func Capture(store *kvstore.Store, accounts ...appvault.Address) (State, error) {
	res := State{
		Balances:  Balances{},
		Instances: map[appvault.ExecID]Storage{},
	}
	for _, account := range accounts {
		res.Balances[account] = store.GetBalance(account)
	}
	ids, err := store.Instances()
	if err != nil {
		return State{}, err
	}
	for _, id := range ids {
		storage, err := store.Storage(id)
		if err != nil {
			return State{}, err
		}
		res.Instances[id] = storage
	}
	return res, nil
}

func (s State) Equal(other State) bool {
	return s.Balances.Equal(other.Balances) &&
		equalMapsIgnoringZero(s.Instances, other.Instances, Storage.Equal)
}

func (s State) Clone() State {
	res := State{
		Balances:  maps.Clone(s.Balances),
		Instances: make(map[appvault.ExecID]Storage, len(s.Instances)),
	}
	for id, storage := range s.Instances {
		res.Instances[id] = storage.Clone()
	}
	return res
}

func (s State) Diff(other State) []string {
	res := s.Balances.Diff("Balances/", other.Balances)
	return append(res, diffMaps("", s.Instances, other.Instances, func(id appvault.ExecID, a, b Storage) []string {
		return a.Diff(fmt.Sprintf("%v/", id), b)
	})...)
}

// Changes counts the storage slots that differ between two states.
func (s State) Changes(other State) int {
	res := 0
	diffMaps("", s.Instances, other.Instances, func(_ appvault.ExecID, a, b Storage) []string {
		res += len(a.Diff("", b))
		return nil
	})
	return res
}

// ----------------------------------------------------------------------------
// Balances
// ----------------------------------------------------------------------------

// Balances maps accounts to their native balance. Zero balances are ignored.
type Balances map[appvault.Address]appvault.Value

func (b Balances) Equal(other Balances) bool {
	return equalMapsIgnoringZero(b, other, func(x, y appvault.Value) bool {
		return x == y
	})
}

func (b Balances) Diff(prefix string, other Balances) []string {
	return diffMaps(prefix, b, other, func(address appvault.Address, x, y appvault.Value) []string {
		if x == y {
			return nil
		}
		return []string{fmt.Sprintf("different balance of %v: %v != %v", address, x, y)}
	})
}

// ----------------------------------------------------------------------------
// Storage
// ----------------------------------------------------------------------------

// Storage is the key space of one instance. Zero-valued entries are ignored.
type Storage map[appvault.Key]appvault.Word

func (s Storage) Equal(other Storage) bool {
	return equalMapsIgnoringZero(s, other, func(a, b appvault.Word) bool {
		return a == b
	})
}

func (s Storage) Clone() Storage {
	return maps.Clone(s)
}

func (s Storage) Diff(prefix string, other Storage) []string {
	return diffMaps(prefix, s, other, func(k appvault.Key, a, b appvault.Word) []string {
		if a == b {
			return nil
		}
		return []string{fmt.Sprintf("different value for key %v: %v != %v", k, a, b)}
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// equalMapsIgnoringZero compares two maps, ignoring zero-valued entries.
func equalMapsIgnoringZero[K comparable, V any](a, b map[K]V, equal func(V, V) bool) bool {
	for k, v := range a {
		if !equal(v, b[k]) {
			return false
		}
	}
	for k, v := range b {
		if !equal(v, a[k]) {
			return false
		}
	}
	return true
}

// diffMaps compares two maps and returns a list of differences.
func diffMaps[K comparable, V any](prefix string, a, b map[K]V, diff func(K, V, V) []string) []string {
	var diffs []string
	for k, v := range a {
		diffs = append(diffs, diff(k, v, b[k])...)
	}
	for k, v := range b {
		if _, overlap := a[k]; !overlap {
			diffs = append(diffs, diff(k, a[k], v)...)
		}
	}
	for i, diff := range diffs {
		diffs[i] = prefix + diff
	}
	return diffs
}
