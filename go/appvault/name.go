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
	"bytes"
	"fmt"
)

// Name is a short identifier (application, version, tier, token name) stored
// in a single 32-byte word, left aligned and zero padded.
type Name [32]byte

// NewName converts s into a Name. Empty strings and strings longer than 32
// bytes are rejected.
func NewName(s string) (Name, error) {
	var res Name
	if len(s) == 0 {
		return res, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}
	if len(s) > len(res) {
		return res, fmt.Errorf("%w: name %q exceeds %d bytes", ErrInvalidArgument, s, len(res))
	}
	copy(res[:], s)
	return res, nil
}

// MustName is like NewName but panics on invalid input. It is intended for
// constants and tests.
func MustName(s string) Name {
	res, err := NewName(s)
	if err != nil {
		panic(err)
	}
	return res
}

func (n Name) String() string {
	return string(bytes.TrimRight(n[:], "\x00"))
}

func (n Name) IsEmpty() bool {
	return n == Name{}
}

func (n Name) Word() Word {
	return Word(n)
}

func NameFromWord(w Word) Name {
	return Name(w)
}
