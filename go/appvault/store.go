// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package appvault

//go:generate mockgen -source store.go -destination store_mock.go -package appvault

// KeyValueStore is the single authoritative store hosting every execution
// instance. Storage is addressed by (ExecID, Key); a slot written for one
// instance is never visible through another. Besides instance storage, the
// store keeps instance records, native balances used for payments, and the
// per-account nonces used to derive fresh exec ids.
//
// All modifications are buffered in a journal which can be snapshot and
// restored. Commit makes the buffered modifications durable. The store is
// mutated exclusively by the dispatcher and the instance manager.
type KeyValueStore interface {
	GetStorage(ExecID, Key) Word
	SetStorage(ExecID, Key, Word)

	GetInstance(ExecID) (Instance, bool)
	SetInstance(ExecID, Instance)

	GetBalance(Address) Value
	SetBalance(Address, Value)

	GetNonce(Address) uint64
	SetNonce(Address, uint64)

	CreateSnapshot() Snapshot
	RestoreSnapshot(Snapshot)

	// Commit flushes all modifications buffered since the last commit to the
	// backend as one atomic unit and discards the journal.
	Commit() error
}

// Snapshot is a type used to represent a snapshot of the store's journal.
type Snapshot int

// Instance is the record of an execution instance. It links the instance to
// the application version it was created from and carries a copy of the
// version's selector table, so dispatching never needs a registry lookup.
type Instance struct {
	Application Name
	Version     Name
	Provider    Address
	Registry    ExecID // the registry the version was resolved through, zero for registries
	Index       Address
	Selectors   []Selector
	Targets     []Address
	Executor    Address // the only account allowed to submit exec calls
	Admin       Address
	CreatedAt   uint64
}

// Target returns the address of the logic module bound to the given selector.
func (i *Instance) Target(selector Selector) (Address, bool) {
	for j, cur := range i.Selectors {
		if cur == selector {
			return i.Targets[j], true
		}
	}
	return Address{}, false
}

// IsTarget reports whether the given address is one of the logic modules of
// this instance.
func (i *Instance) IsTarget(address Address) bool {
	for _, cur := range i.Targets {
		if cur == address {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the instance record.
func (i *Instance) Clone() Instance {
	res := *i
	res.Selectors = append([]Selector(nil), i.Selectors...)
	res.Targets = append([]Address(nil), i.Targets...)
	return res
}

// View provides read access to the storage of a single execution instance.
type View interface {
	ExecID() ExecID
	Get(Key) Word
}

// StoreView returns a read-only View on the storage of the given instance.
func StoreView(store KeyValueStore, id ExecID) View {
	return storeView{store: store, id: id}
}

type storeView struct {
	store KeyValueStore
	id    ExecID
}

func (v storeView) ExecID() ExecID { return v.id }
func (v storeView) Get(key Key) Word { return v.store.GetStorage(v.id, key) }
