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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Args are the decoded arguments of a call. The accessors assume the types
// produced by the ABI decoder for the function's declared input types and
// panic on a mismatch, which is a programming error.
type Args []any

func (a Args) Address(i int) Address {
	return Address(a[i].(common.Address))
}

func (a Args) Addresses(i int) []Address {
	in := a[i].([]common.Address)
	res := make([]Address, len(in))
	for j, cur := range in {
		res[j] = Address(cur)
	}
	return res
}

func (a Args) Name(i int) Name {
	return Name(a[i].([32]byte))
}

func (a Args) Names(i int) []Name {
	in := a[i].([][32]byte)
	res := make([]Name, len(in))
	for j, cur := range in {
		res[j] = Name(cur)
	}
	return res
}

func (a Args) Selectors(i int) []Selector {
	in := a[i].([][4]byte)
	res := make([]Selector, len(in))
	for j, cur := range in {
		res[j] = Selector(cur)
	}
	return res
}

func (a Args) Bool(i int) bool {
	return a[i].(bool)
}

func (a Args) Bools(i int) []bool {
	return a[i].([]bool)
}

func (a Args) Uint8(i int) uint8 {
	return a[i].(uint8)
}

func (a Args) Uint8s(i int) []uint8 {
	return a[i].([]uint8)
}

func (a Args) Value(i int) Value {
	// uint256 inputs always fit into a Value.
	res, _ := ValueFromBig(a[i].(*big.Int))
	return res
}

func (a Args) Values(i int) []Value {
	in := a[i].([]*big.Int)
	res := make([]Value, len(in))
	for j, cur := range in {
		res[j], _ = ValueFromBig(cur)
	}
	return res
}

// Uint64 returns the i-th argument, which must be a uint256 fitting into 64
// bits.
func (a Args) Uint64(i int) (uint64, error) {
	in := a[i].(*big.Int)
	if !in.IsUint64() {
		return 0, fmt.Errorf("%w: argument %d exceeds 64 bits", ErrInvalidArgument, i)
	}
	return in.Uint64(), nil
}

func (a Args) Uint64s(i int) ([]uint64, error) {
	in := a[i].([]*big.Int)
	res := make([]uint64, len(in))
	for j, cur := range in {
		if !cur.IsUint64() {
			return nil, fmt.Errorf("%w: argument %d exceeds 64 bits", ErrInvalidArgument, i)
		}
		res[j] = cur.Uint64()
	}
	return res, nil
}

// Address conversions for ABI encoding.

func (a Address) Common() common.Address {
	return common.Address(a)
}

// CommonAddresses converts addresses into their ABI encodable form.
func CommonAddresses(in []Address) []common.Address {
	res := make([]common.Address, len(in))
	for i, cur := range in {
		res[i] = common.Address(cur)
	}
	return res
}

// NameBytes converts names into their ABI encodable form.
func NameBytes(in []Name) [][32]byte {
	res := make([][32]byte, len(in))
	for i, cur := range in {
		res[i] = cur
	}
	return res
}

// SelectorBytes converts selectors into their ABI encodable form.
func SelectorBytes(in []Selector) [][4]byte {
	res := make([][4]byte, len(in))
	for i, cur := range in {
		res[i] = cur
	}
	return res
}
