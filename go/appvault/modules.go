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

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
)

// This file provides a registry for the logic modules (targets and indexes)
// hosted by the store. Application versions reference modules by address;
// packages providing modules register them as part of their init code, so
// including a package makes its modules resolvable.

// Modules resolves module addresses referenced by instance records.
type Modules interface {
	Target(Address) (Target, bool)
	Index(Address) (Index, bool)
}

// ModuleTable is a Modules implementation backed by plain maps. The zero
// value is an empty table.
type ModuleTable struct {
	Targets map[Address]Target
	Indexes map[Address]Index
}

func (t ModuleTable) Target(address Address) (Target, bool) {
	res, found := t.Targets[address]
	return res, found
}

func (t ModuleTable) Index(address Address) (Index, bool) {
	res, found := t.Indexes[address]
	return res, found
}

// RegisterTarget binds a target implementation to the given address. An
// error is returned if the target is nil or the address is already in use.
func RegisterTarget(address Address, target Target) error {
	if target == nil {
		return fmt.Errorf("invalid initialization: cannot register nil target at %v", address)
	}
	moduleRegistryLock.Lock()
	defer moduleRegistryLock.Unlock()
	if err := checkFree(address); err != nil {
		return err
	}
	targetRegistry[address] = target
	return nil
}

// RegisterIndex binds an index implementation to the given address. An
// error is returned if the index is nil or the address is already in use.
func RegisterIndex(address Address, index Index) error {
	if index == nil {
		return fmt.Errorf("invalid initialization: cannot register nil index at %v", address)
	}
	moduleRegistryLock.Lock()
	defer moduleRegistryLock.Unlock()
	if err := checkFree(address); err != nil {
		return err
	}
	indexRegistry[address] = index
	return nil
}

func checkFree(address Address) error {
	_, isTarget := targetRegistry[address]
	_, isIndex := indexRegistry[address]
	if isTarget || isIndex {
		return fmt.Errorf("invalid initialization: multiple modules registered at %v", address)
	}
	return nil
}

// MustRegisterTarget is like RegisterTarget but panics on error.
func MustRegisterTarget(address Address, target Target) {
	if err := RegisterTarget(address, target); err != nil {
		panic(err)
	}
}

// MustRegisterIndex is like RegisterIndex but panics on error.
func MustRegisterIndex(address Address, index Index) {
	if err := RegisterIndex(address, index); err != nil {
		panic(err)
	}
}

// RegisteredModules returns a snapshot of all registered modules.
func RegisteredModules() ModuleTable {
	moduleRegistryLock.Lock()
	defer moduleRegistryLock.Unlock()
	return ModuleTable{
		Targets: maps.Clone(targetRegistry),
		Indexes: maps.Clone(indexRegistry),
	}
}

var (
	targetRegistry     = map[Address]Target{}
	indexRegistry      = map[Address]Index{}
	moduleRegistryLock sync.Mutex
)
