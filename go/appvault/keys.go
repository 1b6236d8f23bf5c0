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
	"encoding/binary"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// NewKey derives the storage location of a logical field within an
// instance's key space. Parts are concatenated after the field name, so
// mapping entries are addressed as NewKey("balances", owner[:]).
func NewKey(field string, parts ...[]byte) Key {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(field))
	for _, part := range parts {
		hasher.Write(part)
	}
	var res Key
	hasher.Sum(res[:0])
	return res
}

// Offset returns the location i slots after k. It is used to address the
// elements and struct members of list entries.
func (k Key) Offset(i uint64) Key {
	base := new(uint256.Int).SetBytes32(k[:])
	base.Add(base, uint256.NewInt(i))
	return base.Bytes32()
}

// Uint64Bytes returns the big-endian encoding of v, usable as a key part.
func Uint64Bytes(v uint64) []byte {
	var res [8]byte
	binary.BigEndian.PutUint64(res[:], v)
	return res[:]
}

func HashFromAddress(a Address) Hash {
	return Hash(WordFromAddress(a))
}

func HashFromUint64(v uint64) Hash {
	return Hash(WordFromUint64(v))
}
